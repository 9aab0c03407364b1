package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background jobs that keep receipt state consistent.`,
}

var reconcileWorkerCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Fail receipts stuck in processing",
	Long:  `Periodically mark receipts that stayed in processing longer than ingestion.stale_after as failed.`,
	Run: func(cmd *cobra.Command, args []string) {
		startReconcileWorker()
	},
}

var (
	reconcileOnce  bool
	sweepInterval  time.Duration
	staleAfterFlag time.Duration
)

func startReconcileWorker() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	log := deps.Logger
	interval := getDurationFlag(sweepInterval, deps.Config.Ingestion.SweepInterval)
	staleAfter := getDurationFlag(staleAfterFlag, deps.Config.Ingestion.StaleAfter)

	sweep := func() {
		n, err := deps.Receipts.ReconcileStale(ctx, staleAfter)
		if err != nil {
			log.Error("reconcile sweep failed", "error", err)
			return
		}
		log.Info("reconcile sweep finished", "failed_receipts", n)
	}

	log.Info("starting reconcile worker",
		"interval", interval,
		"stale_after", staleAfter,
		"once", reconcileOnce)

	sweep()
	if reconcileOnce {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("received signal, shutting down reconcile worker")
			return
		case <-ticker.C:
			sweep()
		}
	}
}

func getDurationFlag(flagValue, configValue time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	reconcileWorkerCmd.Flags().BoolVar(&reconcileOnce, "once", false, "Run a single sweep and exit")
	reconcileWorkerCmd.Flags().DurationVar(&sweepInterval, "interval", 0, "Sweep interval (overrides config)")
	reconcileWorkerCmd.Flags().DurationVar(&staleAfterFlag, "stale-after", 0, "Processing age considered stuck (overrides config)")

	workerCmd.AddCommand(reconcileWorkerCmd)
}
