package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/contentreview/internal/config"
	"github.com/contentreview/internal/queue"
	"github.com/contentreview/internal/store"
)

// loadConfig reads and validates configuration for a command.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	setupLogging(cfg.Log.Level)
	return cfg, nil
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// connect opens the Postgres pool and prepares the schema for both the
// review store and the queue transport.
func connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, *store.PostgresStore, *queue.PostgresTransport, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	st := store.NewPostgresStore(pool)
	if err := st.EnsureSchema(connectCtx); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	transport := queue.NewPostgresTransport(pool, queue.PostgresConfig{
		Queue:      cfg.Queue.Name,
		Visibility: cfg.Visibility(),
		MaxReceive: cfg.Queue.MaxReceiveCount,
	})
	if err := transport.EnsureSchema(connectCtx); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	return pool, st, transport, nil
}
