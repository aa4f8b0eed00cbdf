// Command admin inspects and maintains psymatch data.
package main

import (
	"fmt"
	"os"

	"psymatch/internal/bootstrap"
	"psymatch/internal/config"
	"psymatch/internal/conversation"
	"psymatch/internal/middleware"
	"psymatch/internal/notifications"
	"psymatch/internal/repository"
	"psymatch/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd(loadDeps).Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDeps connects to the configured database and Redis.
func loadDeps(cmd *cobra.Command) (*deps, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	db, rdb, err := bootstrap.InitRuntime(cmd.Context(), cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	return newDeps(db, rdb, cfg), nil
}

func newDeps(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *deps {
	profiles := repository.NewProfileRepository(db)
	likes := repository.NewLikeRepository(db)

	var sessions conversation.SessionStore = conversation.NewMemorySessionStore(cfg.SessionTTL)
	if rdb != nil {
		sessions = conversation.NewRedisSessionStore(rdb, cfg.SessionTTL)
	}
	messenger := notifications.NewMessenger(
		notifications.NewLogGateway(middleware.Logger),
		notifications.MessengerConfig{},
		middleware.Logger,
	)

	return &deps{
		db:       db,
		redis:    rdb,
		profiles: profiles,
		matches:  service.NewMatchService(profiles, likes, messenger),
		deck:     service.NewDeck(profiles, likes, repository.NewViewedRepository(db)),
		engine:   conversation.NewEngine(profiles, sessions, messenger),
	}
}
