package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/contentreview/internal/contentsource"
	"github.com/contentreview/internal/inference"
	"github.com/contentreview/internal/queue"
	"github.com/contentreview/internal/review"
)

// WorkerCommand returns the worker command
func WorkerCommand() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Run the review worker loop",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"n"},
				Usage:   "Number of concurrent worker loops",
				Value:   1,
			},
		},
		Action: runWorker,
	}
}

func runWorker(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, st, transport, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	fetcher, err := contentsource.NewGCSFetcher(ctx)
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}
	defer fetcher.Close()

	model, err := inference.NewGoogleAIClient(ctx, cfg.Model.APIKey, cfg.Model.Name, cfg.Model.Temperature)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}

	orchestrator := review.New(st, contentsource.NewResolver(fetcher, cfg.Storage.Bucket), model)
	workerCfg := queue.WorkerConfig{
		BatchSize:    cfg.Queue.BatchSize,
		ReceiveLimit: rate.Limit(cfg.Queue.ReceivesPerSecond),
	}

	concurrency := c.Int("concurrency")
	if concurrency < 1 {
		concurrency = 1
	}
	log.Info().
		Str("queue", cfg.Queue.Name).
		Str("model", cfg.Model.Name).
		Int("concurrency", concurrency).
		Msg("starting review workers")

	errCh := make(chan error, concurrency)
	for i := 0; i < concurrency; i++ {
		w := queue.NewWorker(transport, orchestrator, workerCfg)
		go func() { errCh <- w.Run(ctx) }()
	}

	// A critical transport error in any loop brings the process down;
	// otherwise wait for all loops to drain after the signal.
	var firstErr error
	for i := 0; i < concurrency; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			stop()
		}
	}
	return firstErr
}
