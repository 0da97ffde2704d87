package cmd

import (
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/contentreview/internal/api"
)

// ServeCommand returns the API server command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API for submitting and fetching reviews",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Override the listen address",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if addr := c.String("addr"); addr != "" {
		cfg.API.Addr = addr
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, st, transport, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	log.Info().Str("addr", cfg.API.Addr).Str("queue", cfg.Queue.Name).Msg("starting API server")
	return api.NewServer(cfg.API.Addr, st, transport).Start(ctx)
}
