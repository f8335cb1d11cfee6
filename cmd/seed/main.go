// Command seed loads the category taxonomy into the configured store. Existing categories are
// updated in place, so the command can be rerun after editing the seed file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/friperie/api/internal/platform/config"
	pfirestore "github.com/friperie/api/internal/platform/firestore"
	"github.com/friperie/api/internal/platform/observability"
	ppostgres "github.com/friperie/api/internal/platform/postgres"
	"github.com/friperie/api/internal/repositories"
	rfirestore "github.com/friperie/api/internal/repositories/firestore"
	rpostgres "github.com/friperie/api/internal/repositories/postgres"
)

func main() {
	fileFlag := flag.String("file", "", "category tree file (defaults to API_SEED_FILE)")
	dryRun := flag.Bool("dry-run", false, "parse and print the categories without writing them")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *fileFlag, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string, dryRun bool) error {
	env, err := config.EnvironmentValues()
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(env["LOG_LEVEL"])
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if path == "" {
		path = cfg.Seed.File
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	categories, err := decodeCategories(f)
	if err != nil {
		return err
	}
	if dryRun {
		for _, c := range categories {
			fmt.Printf("%*s%s (%s, %s)\n", c.Level*2, "", c.Name, c.ID, c.SizeType)
		}
		return nil
	}

	registry, err := openRegistry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = registry.Close(closeCtx)
	}()

	if err := registry.Categories().Upsert(ctx, categories); err != nil {
		return fmt.Errorf("upsert categories: %w", err)
	}
	logger.Info("categories seeded", zap.Int("count", len(categories)), zap.String("store", cfg.Store.Driver), zap.String("file", path))
	return nil
}

func openRegistry(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.Registry, error) {
	if cfg.Store.Driver == config.StorePostgres {
		db, err := ppostgres.Open(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		db.AddQueryHook(ppostgres.QueryLogger{Logger: logger.Named("postgres")})
		if err := rpostgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return rpostgres.NewRegistry(db)
	}
	return rfirestore.NewRegistry(pfirestore.NewProvider(cfg.Firestore))
}
