package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dagrun-io/dagrun/internal/application/orchestrator"
	"github.com/dagrun-io/dagrun/pkg/ports"
)

// RunFunc performs the actual work of a node. The orchestrator core places
// no constraints on what the work is or how long it takes.
type RunFunc func(ctx context.Context, node *orchestrator.DAGNode) error

// Target is the callback surface the pool drives. *orchestrator.Orchestrator
// satisfies it.
type Target interface {
	On(fn orchestrator.Listener) func()
	MarkNodeRunning(nodeID, executorRef string) error
	MarkNodeCompleted(nodeID string, success bool) error
}

// Pool is an in-process executor: a fixed set of worker goroutines that
// consume node:ready notifications from one orchestrator, run the node work,
// and report the outcome back. It plays the external-executor role for local
// runs and tests; remote executors use the HTTP callback endpoints instead.
type Pool struct {
	size    int
	target  Target
	run     RunFunc
	metrics ports.MetricsCollector
	logger  *zap.Logger
	health  *HealthMonitor

	// Unbounded ready queue. The orchestrator emits node:ready while
	// holding its own lock, so the listener must never block.
	qmu    sync.Mutex
	queue  []*orchestrator.DAGNode
	notify chan struct{}

	workers     []*worker
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
}

// worker represents a single worker goroutine.
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates an executor pool bound to one orchestrator.
func NewPool(
	size int,
	target Target,
	run RunFunc,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:    size,
		target:  target,
		run:     run,
		metrics: metrics,
		logger:  logger,
		notify:  make(chan struct{}, 1),
		workers: make([]*worker, size),
		ctx:     ctx,
		cancel:  cancel,
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start subscribes to the orchestrator and starts the workers.
func (p *Pool) Start() error {
	p.logger.Info("starting executor pool", zap.Int("size", p.size))

	p.unsubscribe = p.target.On(func(ev orchestrator.Event) {
		if ev.Type != orchestrator.EventNodeReady || ev.Node == nil {
			return
		}
		p.enqueue(ev.Node)
	})

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("executor-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.runLoop(p.ctx)
	}

	p.health.Start()

	p.logger.Info("executor pool started", zap.Int("workers", p.size))
	return nil
}

// Shutdown gracefully stops the pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down executor pool")

	p.health.Stop()
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("executor pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// GetStatus returns the status of all workers.
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

func (p *Pool) enqueue(node *orchestrator.DAGNode) {
	p.qmu.Lock()
	p.queue = append(p.queue, node)
	p.qmu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *Pool) dequeue() *orchestrator.DAGNode {
	p.qmu.Lock()
	defer p.qmu.Unlock()
	if len(p.queue) == 0 {
		return nil
	}
	node := p.queue[0]
	p.queue = p.queue[1:]
	return node
}

// runLoop is the main worker loop.
func (w *worker) runLoop(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.logger.Info("executor worker started", zap.String("worker_id", w.id))

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.status = WorkerStatusStopped
			w.mu.Unlock()
			w.pool.logger.Info("executor worker stopped", zap.String("worker_id", w.id))
			return
		case <-w.pool.notify:
			for {
				node := w.pool.dequeue()
				if node == nil {
					break
				}
				w.execute(ctx, node)
			}
		}
	}
}

// execute runs one node and reports its outcome back to the orchestrator.
func (w *worker) execute(ctx context.Context, node *orchestrator.DAGNode) {
	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.lastJob = time.Now()
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.status = WorkerStatusIdle
		w.mu.Unlock()
	}()

	if err := w.pool.target.MarkNodeRunning(node.ID, w.id); err != nil {
		// The node was skipped or the workflow ended before pickup.
		w.pool.logger.Debug("node no longer runnable",
			zap.String("worker_id", w.id),
			zap.String("node_id", node.ID),
			zap.Error(err))
		return
	}

	w.pool.logger.Info("executing node",
		zap.String("worker_id", w.id),
		zap.String("node_id", node.ID),
		zap.String("label", node.Label))

	startTime := time.Now()
	runErr := w.pool.run(ctx, node)
	duration := time.Since(startTime)

	status := string(orchestrator.NodeStatusCompleted)
	if runErr != nil {
		status = string(orchestrator.NodeStatusFailed)
		w.pool.logger.Warn("node work failed",
			zap.String("worker_id", w.id),
			zap.String("node_id", node.ID),
			zap.Error(runErr))
	}
	if w.pool.metrics != nil {
		w.pool.metrics.RecordNodeExecuted(status, duration)
	}

	if err := w.pool.target.MarkNodeCompleted(node.ID, runErr == nil); err != nil {
		w.pool.logger.Error("failed to report node completion",
			zap.String("worker_id", w.id),
			zap.String("node_id", node.ID),
			zap.Error(err))
		return
	}

	w.pool.logger.Info("node execution reported",
		zap.String("worker_id", w.id),
		zap.String("node_id", node.ID),
		zap.String("status", status),
		zap.Duration("duration", duration))
}
