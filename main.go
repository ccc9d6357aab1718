package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"wikicite/config"
	"wikicite/services"
	"wikicite/storage"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "wikicite",
		Usage: "Citation ledger for MediaWiki revision histories",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "development logging"},
		},
		Commands: []*cli.Command{
			processFileCommand(),
			processDirCommand(),
			fetchCommand(),
			serveCommand(),
			purgeCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, "wikicite:", err)
		os.Exit(1)
	}
}

// app bündelt die gemeinsam genutzten Verbindungen eines Kommandos.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *gorm.DB
	redis    *redis.Client
	s3Client *s3.Client
}

func setup(ctx context.Context, cmd *cli.Command) (*app, error) {
	var (
		logging *zap.Logger
		err     error
	)
	if cmd.Root().Bool("debug") {
		logging, err = zap.NewDevelopment()
	} else {
		logging, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("can't initialize zap logger: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config load error: %w", err)
	}

	db, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logging.Info("Successfully connected to database.", zap.String("driver", cfg.DBDriver))

	logging.Info("Running database auto-migration...")
	if err := storage.Migrate(db); err != nil {
		return nil, fmt.Errorf("auto-migration failed: %w", err)
	}

	a := &app{cfg: cfg, log: logging, db: db}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			// der gemeinsame Cache ist optional
			logging.Warn("Redis not reachable, continuing with worker-local caches", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			client.Close()
		} else {
			a.redis = client
		}
	}

	if cfg.S3Enabled() {
		a.s3Client, err = storage.NewS3Client(cfg)
		if err != nil {
			return nil, fmt.Errorf("s3 client creation failed: %w", err)
		}
	}
	return a, nil
}

func (a *app) ingest() *services.IngestService {
	var objects storage.ObjectAPI
	if a.s3Client != nil {
		objects = a.s3Client
	}
	return services.NewIngestService(a.cfg, a.db, a.redis, objects, a.log)
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	a.log.Sync()
}
