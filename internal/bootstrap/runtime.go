// Package bootstrap wires the runtime dependencies shared by the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"psymatch/internal/cache"
	"psymatch/internal/config"
	"psymatch/internal/database"
	"psymatch/internal/middleware"
	"psymatch/internal/repository"
	"psymatch/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// Migrate forces schema migration; outside production Connect always migrates.
	Migrate bool
	// SeedFixtures is applied after connecting, except in production.
	SeedFixtures string
}

// InitRuntime connects to the database and Redis. The Redis client is nil when
// Redis is not configured or unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	if opts.Migrate && cfg.IsProduction() {
		if err := database.Migrate(db); err != nil {
			return nil, nil, err
		}
	}

	if opts.SeedFixtures != "" {
		if err := applyFixtures(ctx, cfg, db, opts.SeedFixtures); err != nil {
			return nil, nil, err
		}
	}

	return db, cache.InitRedis(cfg.RedisURL), nil
}

func applyFixtures(ctx context.Context, cfg *config.Config, db *gorm.DB, path string) error {
	if cfg.IsProduction() {
		middleware.Logger.Warn("ignoring seed fixtures in production", slog.String("path", path))
		return nil
	}
	fx, err := seed.LoadFixtureFile(path)
	if err != nil {
		return err
	}
	factory := seed.NewFactory(repository.NewProfileRepository(db), repository.NewLikeRepository(db), seed.Options{})
	if _, err := seed.NewSeeder(factory).ApplyFixtures(ctx, fx); err != nil {
		return fmt.Errorf("apply fixtures %s: %w", path, err)
	}
	return nil
}
