package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/orderflow/pkg/cmd"
	"github.com/dukex/orderflow/pkg/log"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := log.WithModule("worker")

	if err := cmd.LoadEnv(); err != nil {
		logger.Error("Failed to load .env", "error", err)
	}

	flags := append(cmd.RuntimeFlags(),
		&cli.StringFlag{
			Name:    "worker-id",
			Aliases: []string{"id"},
			Usage:   "Custom worker ID (auto-generated if not provided)",
			Sources: cli.EnvVars("WORKER_ID"),
		},
		cmd.SchedulerIntervalFlag(),
	)

	command := &cli.Command{
		Name:                  "orderflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Consume trigger events and run workflows",
		Flags:                 flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("worker").With("workerId", workerID)

			logger.InfoContext(ctx, "Initializing Orderflow Worker")

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			runtime, err := cmd.NewRuntime(ctx, logger, cmd.RuntimeConfigFrom(command, "orderflow-worker"))
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

			sched, err := runtime.StartWorker(ctx, command.Duration("scheduler-interval"))
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Worker started")

			<-ctx.Done()

			logger.InfoContext(context.WithoutCancel(ctx), "Shutting down worker")

			return sched.Stop(context.WithoutCancel(ctx))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
}
