package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/markdave123-py/embedding-forge/internal/app"
	"github.com/markdave123-py/embedding-forge/internal/config"
	"github.com/markdave123-py/embedding-forge/internal/core"
)

func main() {
	cliApp := &cli.App{
		Name:   "backfill",
		Usage:  "Bulk operations on the vector index",
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Generate embeddings for every file already in a bucket",
				Action: backfillCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "bucket",
						Usage:    "Object storage bucket name",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "prefix",
						Usage: "Optional key prefix to filter objects",
					},
				},
			},
			{
				Name:   "purge",
				Usage:  "Delete all indexed vectors for a bucket",
				Action: purgeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "bucket",
						Usage:    "Object storage bucket name",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "file-type",
						Usage: "Only purge records of this file type (e.g. pdf)",
					},
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupLogger(c *cli.Context) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	return nil
}

func backfillCommand(c *cli.Context) error {
	ctx := context.Background()

	application, err := app.NewApp(ctx, config.LoadConfig())
	if err != nil {
		return err
	}
	defer application.Close()

	return application.Backfill.ProcessBucket(ctx, c.String("bucket"), c.String("prefix"))
}

func purgeCommand(c *cli.Context) error {
	ctx := context.Background()

	application, err := app.NewApp(ctx, config.LoadConfig())
	if err != nil {
		return err
	}
	defer application.Close()

	filter := core.RecordFilter{
		BucketName: c.String("bucket"),
		FileType:   c.String("file-type"),
	}
	if err := application.Store.DeleteByFilter(ctx, filter); err != nil {
		return err
	}

	slog.Info("purged vectors", "bucket", filter.BucketName, "file_type", filter.FileType)
	return nil
}
