package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/advisim-lab/mnemosyne/pkg/cli/config"
	"github.com/advisim-lab/mnemosyne/pkg/usecase"
	"github.com/advisim-lab/mnemosyne/pkg/utils/logging"
	"github.com/advisim-lab/mnemosyne/pkg/utils/safe"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdImport() *cli.Command {
	var repoCfg config.Repository
	var geminiCfg config.Gemini

	var flags []cli.Flag
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)

	return &cli.Command{
		Name:      "import",
		Aliases:   []string{"i"},
		Usage:     "Import record files into the repository",
		ArgsUsage: "FILE [FILE...]  (local path or gs://bucket/object)",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			files := c.Args().Slice()
			if len(files) == 0 {
				return goerr.New("at least one record file is required")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize Gemini client")
			}

			opts := []usecase.Option{usecase.WithEmbeddingDimension(repoCfg.Dimension())}
			if llmClient != nil {
				opts = append(opts, usecase.WithLLMClient(llmClient))
			}
			uc, err := usecase.New(repo, opts...)
			if err != nil {
				return err
			}

			var total usecase.IngestResult
			for _, file := range files {
				data, err := readRecordFile(ctx, file)
				if err != nil {
					return err
				}

				var records usecase.RecordFile
				if err := json.Unmarshal(data, &records); err != nil {
					return goerr.Wrap(err, "failed to parse record file", goerr.V("file", file))
				}

				result, err := uc.Record.Ingest(ctx, &records)
				if err != nil {
					return goerr.Wrap(err, "failed to import records", goerr.V("file", file))
				}

				fmt.Printf("%s: %d memories, %d cases, %d rules\n",
					file, result.Memories, result.Cases, result.Rules)
				total.Memories += result.Memories
				total.Cases += result.Cases
				total.Rules += result.Rules
			}

			sectionColor.Printf("Imported %d memories, %d cases, %d rules\n",
				total.Memories, total.Cases, total.Rules)
			return nil
		},
	}
}

func readRecordFile(ctx context.Context, path string) ([]byte, error) {
	if strings.HasPrefix(path, "gs://") {
		return readStorageObject(ctx, path)
	}

	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read record file", goerr.V("file", path))
	}
	return data, nil
}

func readStorageObject(ctx context.Context, url string) ([]byte, error) {
	bucket, object, ok := strings.Cut(strings.TrimPrefix(url, "gs://"), "/")
	if !ok || bucket == "" || object == "" {
		return nil, goerr.New("invalid gs:// URL", goerr.V("url", url))
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}
	defer safe.Close(ctx, client)

	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open storage object", goerr.V("url", url))
	}
	defer safe.Close(ctx, reader)

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read storage object", goerr.V("url", url))
	}
	return data, nil
}
