package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dagrun-io/dagrun/internal/application/executor"
	"github.com/dagrun-io/dagrun/internal/application/orchestrator"
	"github.com/dagrun-io/dagrun/internal/config"
)

func runCmd() *cobra.Command {
	var (
		file        string
		workers     int
		nodeTime    time.Duration
		failureRate float64
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a workflow file locally with the in-process executor pool",
		Long:  "Loads a workflow definition from a YAML or JSON file and drives it to completion with simulated node work. Useful for previewing scheduling, branching, and retry behavior.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocal(file, workers, nodeTime, failureRate, logLevel)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the workflow file (required)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Executor pool size (defaults to EXECUTOR_POOL_SIZE)")
	cmd.Flags().DurationVar(&nodeTime, "node-time", 100*time.Millisecond, "Simulated duration of each node")
	cmd.Flags().Float64Var(&failureRate, "failure-rate", 0, "Probability in [0,1) that a node fails")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// poolSettings resolves the executor pool knobs: an explicit --workers flag
// wins, otherwise the EXECUTOR_* environment configuration applies.
func poolSettings(flagWorkers int) (int, time.Duration, error) {
	cfg, err := config.Load()
	if err != nil {
		return 0, 0, err
	}
	workers := cfg.Executor.PoolSize
	if flagWorkers > 0 {
		workers = flagWorkers
	}
	return workers, cfg.Executor.HealthCheckInterval, nil
}

func runLocal(file string, workers int, nodeTime time.Duration, failureRate float64, logLevel string) error {
	logger := initLogger(logLevel)
	defer logger.Sync()

	workers, healthInterval, err := poolSettings(workers)
	if err != nil {
		return err
	}

	def, err := orchestrator.LoadDefinition(file)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(def, uuid.New().String(), logger)
	if err != nil {
		return err
	}

	done := make(chan *orchestrator.Execution, 1)
	orch.On(func(ev orchestrator.Event) {
		switch ev.Type {
		case orchestrator.EventWorkflowCompleted, orchestrator.EventWorkflowFailed:
			done <- ev.Execution
		}
	})

	pool := executor.NewPool(workers, orch, func(ctx context.Context, node *orchestrator.DAGNode) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(nodeTime):
		}
		if failureRate > 0 && rand.Float64() < failureRate {
			return fmt.Errorf("simulated failure")
		}
		return nil
	}, nil, logger, healthInterval)

	if err := pool.Start(); err != nil {
		return err
	}

	if err := orch.Start(); err != nil {
		return err
	}

	exec := <-done

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Warn("executor pool shutdown", zap.Error(err))
	}

	fmt.Printf("workflow %s finished: %s (%d/%d completed, %d failed)\n",
		def.ID, exec.Status, exec.CompletedNodes, exec.TotalNodes, exec.FailedNodes)
	for _, id := range orchestrator.TopologicalSort(def.Nodes) {
		st := exec.Nodes[id]
		fmt.Printf("  %-20s %s\n", id, st.Status)
	}

	if exec.Status != orchestrator.WorkflowStatusCompleted {
		return fmt.Errorf("workflow finished with status %s", exec.Status)
	}
	return nil
}
