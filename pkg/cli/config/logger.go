package config

import (
	"log/slog"
	"os"

	"github.com/advisim-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// Logger holds CLI flags for logging configuration
type Logger struct {
	level  string
	format string
	output string
}

// Flags returns CLI flags for logging configuration
func (l *Logger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("MNEMOSYNE_LOG_LEVEL"),
			Destination: &l.level,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("MNEMOSYNE_LOG_FORMAT"),
			Destination: &l.format,
		},
		&cli.StringFlag{
			Name:        "log-output",
			Usage:       "Log output destination (-, stdout, stderr, or file path)",
			Value:       "-",
			Sources:     cli.EnvVars("MNEMOSYNE_LOG_OUTPUT"),
			Destination: &l.output,
		},
	}
}

// LogValue implements slog.LogValuer so the configuration can be logged
// at startup
func (l Logger) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("level", l.level),
		slog.String("format", l.format),
		slog.String("output", l.output),
	)
}

// Configure installs the default logger per the flags. The returned
// closer releases the log file when one was opened.
func (l *Logger) Configure() (func(), error) {
	level, err := l.parseLevel()
	if err != nil {
		return nil, err
	}

	format, err := l.parseFormat()
	if err != nil {
		return nil, err
	}

	closer := func() {}
	var w *os.File
	switch l.output {
	case "-", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(l.output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open log file", goerr.V("path", l.output))
		}
		w = f
		closer = func() {
			_ = f.Close()
		}
	}

	logging.SetDefault(logging.New(w, level, format))
	return closer, nil
}

func (l *Logger) parseLevel() (slog.Level, error) {
	switch l.level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, goerr.Wrap(ErrInvalidLogConfig, "unknown log level", goerr.V("level", l.level))
	}
}

func (l *Logger) parseFormat() (logging.Format, error) {
	switch l.format {
	case "console":
		return logging.FormatConsole, nil
	case "json":
		return logging.FormatJSON, nil
	default:
		return 0, goerr.Wrap(ErrInvalidLogConfig, "unknown log format", goerr.V("format", l.format))
	}
}
