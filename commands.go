package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"wikicite/providers/mediawiki"
	"wikicite/services"
	"wikicite/storage"
)

func processFileCommand() *cli.Command {
	return &cli.Command{
		Name:      "process-file",
		Usage:     "Process a single dump file",
		ArgsUsage: "PATH",
		Action: func(ctx context.Context, c *cli.Command) error {
			path := c.Args().First()
			if path == "" {
				return errors.New("process-file: PATH is required")
			}
			a, err := setup(ctx, c)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.ingest().ProcessFile(ctx, path)
			if res != nil {
				printJSON(res)
			}
			return orchestrationError(a.log, err)
		},
	}
}

func processDirCommand() *cli.Command {
	return &cli.Command{
		Name:      "process-dir",
		Usage:     "Process all dump files of a directory or an s3://bucket/prefix",
		ArgsUsage: "[DIR|s3://bucket/prefix]",
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := setup(ctx, c)
			if err != nil {
				return err
			}
			defer a.Close()

			source := c.Args().First()
			if source == "" {
				source = a.cfg.SourceDir
			}

			var run *services.RunResult
			if strings.HasPrefix(source, "s3://") {
				run, err = a.ingest().ProcessS3(ctx, source)
			} else {
				run, err = a.ingest().ProcessDirectory(ctx, source)
			}
			if run != nil {
				printJSON(run.Files)
			}
			return orchestrationError(a.log, err)
		},
	}
}

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch single articles from the MediaWiki API",
		ArgsUsage: "[TITLE...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "domain", Usage: "wiki domain, defaults to WIKI_DOMAIN"},
			&cli.StringFlag{Name: "articles", Usage: "YAML article list"},
			&cli.StringFlag{Name: "as-of", Usage: "RFC 3339 timestamp; latest revision at or before this time"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := setup(ctx, c)
			if err != nil {
				return err
			}
			defer a.Close()

			domain := c.String("domain")
			titles := c.Args().Slice()
			var asOf time.Time
			if path := c.String("articles"); path != "" {
				list, err := services.LoadArticleList(path)
				if err != nil {
					return err
				}
				titles = append(titles, list.Articles...)
				if domain == "" {
					domain = list.Domain
				}
				asOf = list.AsOf
			}
			if v := c.String("as-of"); v != "" {
				if asOf, err = time.Parse(time.RFC3339, v); err != nil {
					return fmt.Errorf("invalid --as-of: %w", err)
				}
			}
			if domain == "" {
				domain = a.cfg.WikiDomain
			}
			if len(titles) == 0 {
				return errors.New("fetch: no articles given")
			}

			remote := services.NewRemoteService(a.ingest(), mediawiki.NewFetcher(a.cfg, a.log), a.log)
			res, err := remote.FetchArticles(ctx, domain, titles, asOf)
			if res != nil {
				printJSON(res)
			}
			return orchestrationError(a.log, err)
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the read API; rescans SOURCE_DIR on CRON_SCHEDULE if set",
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := setup(ctx, c)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.CronSchedule != "" {
				ingest := a.ingest()
				cronScheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
				_, err := cronScheduler.AddFunc(a.cfg.CronSchedule, func() {
					a.log.Info("Running scheduled rescan...", zap.String("dir", a.cfg.SourceDir))
					run, err := ingest.ProcessDirectory(ctx, a.cfg.SourceDir)
					if err := orchestrationError(a.log, err); err != nil {
						a.log.Error("Cron job failed", zap.Error(err))
						return
					}
					a.log.Info("Cron job completed", zap.Int("citations", run.Citations()))
				})
				if err != nil {
					return fmt.Errorf("invalid CRON_SCHEDULE: %w", err)
				}
				cronScheduler.Start()
				defer cronScheduler.Stop()
			}

			srv := &http.Server{
				Addr:              ":" + a.cfg.HTTPPort,
				Handler:           newRouter(a.cfg, a.db, a.log),
				ReadTimeout:       30 * time.Second,
				ReadHeaderTimeout: 15 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.Info("Starting server", zap.String("port", a.cfg.HTTPPort))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				a.log.Info("Shutting down server")
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func purgeCommand() *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Drop and recreate all tables",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Usage: "confirm that all data is deleted"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if !c.Bool("yes") {
				return errors.New("purge deletes all data; pass --yes to confirm")
			}
			a, err := setup(ctx, c)
			if err != nil {
				return err
			}
			defer a.Close()

			a.log.Info("Dropping tables for fresh start.")
			if err := storage.DropAll(a.db); err != nil {
				return err
			}
			return storage.Migrate(a.db)
		},
	}
}

// orchestrationError blendet fehlgeschlagene Batches aus: sie sind protokolliert und
// werden beim nächsten Lauf erneut verarbeitet. Übrig bleiben nur Fehler des Ablaufs selbst.
func orchestrationError(log *zap.Logger, err error) error {
	if err == nil || !errors.Is(err, services.ErrBatchesFailed) {
		return err
	}
	log.Warn("Some batches failed and were discarded; rerun to reprocess them")

	var rest []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if !errors.Is(e, services.ErrBatchesFailed) {
				rest = append(rest, e)
			}
		}
	}
	return errors.Join(rest...)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
