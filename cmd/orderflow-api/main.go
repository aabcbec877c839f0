package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/orderflow/pkg/cmd"
	"github.com/dukex/orderflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort     = 9091
	shutdownTimeout = 30 * time.Second
)

func main() {
	logger := log.WithModule("api")

	if err := cmd.LoadEnv(); err != nil {
		logger.Error("Failed to load .env", "error", err)
	}

	flags := append(cmd.RuntimeFlags(),
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:    "seed-file",
			Usage:   "YAML file of workflows to create at startup when their id is not stored yet",
			Sources: cli.EnvVars("SEED_FILE"),
		},
		&cli.BoolFlag{
			Name:    "embedded-worker",
			Usage:   "Also consume trigger events and run the scheduler in this process",
			Sources: cli.EnvVars("EMBEDDED_WORKER"),
		},
		cmd.SchedulerIntervalFlag(),
	)

	command := &cli.Command{
		Name:                  "orderflow-api",
		Usage:                 "Create and manage workflows",
		EnableShellCompletion: true,
		Flags:                 flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing Orderflow API")

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			runtime, err := cmd.NewRuntime(ctx, logger, cmd.RuntimeConfigFrom(command, "orderflow-api"))
			if err != nil {
				return err
			}

			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				if err := runtime.Close(shutdownCtx); err != nil {
					logger.ErrorContext(shutdownCtx, "Failed to shut down cleanly", "error", err)
				}
			}()

			api := NewAPI(logger, runtime)

			if seedFile := command.String("seed-file"); seedFile != "" {
				if err := api.Seed(ctx, seedFile); err != nil {
					return err
				}
			}

			if command.Bool("embedded-worker") {
				sched, err := runtime.StartWorker(ctx, command.Duration("scheduler-interval"))
				if err != nil {
					return err
				}

				defer func() { _ = sched.Stop(context.Background()) }()
			}

			return api.Start(ctx, command.Int("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		logger.Error("API stopped with error", "error", err)
		os.Exit(1)
	}
}
