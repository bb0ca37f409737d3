package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	paymentpkg "github.com/frahmantamala/pix-deposit/internal/payment"
	paymentrepo "github.com/frahmantamala/pix-deposit/internal/payment/postgres"
	"github.com/frahmantamala/pix-deposit/internal/reconcile"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers that keep the payment ledger in step with the provider.`,
}

var reconcileWorkerCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Resolve payments left pending in the ledger",
	Long:  `Watch every PENDING ledger row with a bounded worker pool until the provider resolves it.`,
	Run: func(cmd *cobra.Command, args []string) {
		startReconcileWorker()
	},
}

var (
	maxWorkers     int
	jobQueueSize   int
	workerPoolSize int
	batchSize      int
	minAge         time.Duration
	watchTimeout   time.Duration
	every          time.Duration
)

func startReconcileWorker() {
	config, log, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	db, sqlDB, driverName, err := initDB(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	core, err := newPaymentCore(config, db, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize payments: %v\n", err)
		os.Exit(1)
	}

	// Use command line flags if provided, otherwise use config values
	reconcileConfig := reconcile.Config{
		Pool: reconcile.PoolConfig{
			MaxWorkers:     getIntFlag(maxWorkers, config.Worker.MaxWorkers),
			JobQueueSize:   getIntFlag(jobQueueSize, config.Worker.JobQueueSize),
			WorkerPoolSize: getIntFlag(workerPoolSize, config.Worker.WorkerPoolSize),
		},
		BatchSize:    getIntFlag(batchSize, config.Worker.BatchSize),
		MinAge:       minAge,
		WatchTimeout: watchTimeout,
	}

	log.Info("starting reconcile worker",
		"max_workers", reconcileConfig.Pool.MaxWorkers,
		"job_queue_size", reconcileConfig.Pool.JobQueueSize,
		"batch_size", reconcileConfig.BatchSize,
		"min_age", minAge,
		"every", every)

	service := paymentpkg.NewService(nil, nil, core.Gateway, core.Hub, log)
	reconciler := reconcile.New(paymentrepo.NewPendingReader(sqlDB, driverName), service, reconcileConfig, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if _, err := reconciler.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("reconcile pass failed", "error", err)
		}
		if every <= 0 || ctx.Err() != nil {
			break
		}
		select {
		case <-time.After(every):
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	core.Close(shutdownCtx)
	log.Info("reconcile worker stopped")
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	reconcileWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of payments watched at once (overrides config)")
	reconcileWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Job queue buffer size (overrides config)")
	reconcileWorkerCmd.Flags().IntVar(&workerPoolSize, "worker-pool-size", 0, "Worker pool channel size (overrides config)")
	reconcileWorkerCmd.Flags().IntVar(&batchSize, "batch-size", 0, "Ledger rows read per query (overrides config)")
	reconcileWorkerCmd.Flags().DurationVar(&minAge, "min-age", 2*time.Minute, "Skip rows younger than this")
	reconcileWorkerCmd.Flags().DurationVar(&watchTimeout, "watch-timeout", 10*time.Minute, "Give up on a payment after this long")
	reconcileWorkerCmd.Flags().DurationVar(&every, "every", 0, "Repeat the pass at this interval; zero runs once")

	workerCmd.AddCommand(reconcileWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
