package cli

import (
	"context"

	"github.com/advisim-lab/mnemosyne/pkg/cli/config"
	"github.com/advisim-lab/mnemosyne/pkg/utils/errutil"
	"github.com/advisim-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func Run(ctx context.Context, args []string, version string) error {
	var loggerCfg config.Logger
	var sentryCfg config.Sentry
	var closers []func()

	app := &cli.Command{
		Name:    "mnemosyne",
		Usage:   "Context retrieval engine for financial-guidance consultations",
		Version: version,
		Flags:   append(loggerCfg.Flags(), sentryCfg.Flags()...),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			closeLogger, err := loggerCfg.Configure()
			if err != nil {
				return ctx, err
			}
			closers = append(closers, closeLogger)

			closeSentry, err := sentryCfg.Configure(version)
			if err != nil {
				return ctx, err
			}
			closers = append(closers, closeSentry)

			logging.Default().Debug("Starting mnemosyne", "logger", loggerCfg)
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			for _, closer := range closers {
				closer()
			}
			return nil
		},
		Commands: []*cli.Command{
			cmdRetrieve(),
			cmdImport(),
			cmdMigrate(),
			cmdValidate(),
			cmdAssist(),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		return errutil.Handle(ctx, err, "failed to run app")
	}

	return nil
}
