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
	Long:  `Start and manage background workers like withdrawal reconciliation.`,
}

// Reconcile worker command
var reconcileWorkerCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Start the withdrawal reconcile worker",
	Long:  `Periodically resolves withdrawals whose provider outcome never arrived via webhook`,
	Run: func(cmd *cobra.Command, args []string) {
		startReconcileWorker()
	},
}

var reconcileInterval time.Duration

func startReconcileWorker() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	lg := deps.Logger

	lg.Info("starting reconcile worker", "interval", reconcileInterval.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	// One pass on startup so a restart does not wait a full interval.
	if err := deps.WithdrawalService.ReconcileStale(ctx); err != nil {
		lg.Error("reconcile pass failed", "error", err)
	}

	for {
		select {
		case <-ticker.C:
			if err := deps.WithdrawalService.ReconcileStale(ctx); err != nil {
				lg.Error("reconcile pass failed", "error", err)
			}
		case sig := <-sigChan:
			lg.Info("received signal, shutting down reconcile worker", "signal", sig)
			cancel()
			if err := deps.DB.Close(); err != nil {
				lg.Error("database close error", "error", err)
			}
			lg.Info("reconcile worker stopped")
			return
		}
	}
}

func init() {
	reconcileWorkerCmd.Flags().DurationVar(&reconcileInterval, "interval", 5*time.Minute, "How often to run a reconcile pass")

	workerCmd.AddCommand(reconcileWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
