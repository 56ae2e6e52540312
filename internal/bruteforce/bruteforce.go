// Package bruteforce implements the credentialed-login Brute-Force
// Engine (spec §4.7): a task registry plus a driver goroutine per
// running task that fans out username×password attempts to a bounded
// pool, dispatching each attempt to a per-protocol ProtocolAdapter.
package bruteforce

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rshield/rshield/internal/model"
	"github.com/rshield/rshield/internal/store"
)

// Outcome is one attempt's classification. Only OutcomeSuccess is ever
// persisted (spec §8: "success == true" is the only row shape stored).
// OutcomeTransportError is retried (up to a protocol-specific cap,
// currently only honored by the SSH adapter per spec §4.7);
// OutcomeAuthFailed is expected and never retried.
type Outcome int

const (
	OutcomeAuthFailed Outcome = iota
	OutcomeSuccess
	OutcomeTransportError
)

// ProtocolAdapter attempts one username/password pair against a task's
// target and classifies the result.
type ProtocolAdapter interface {
	Attempt(ctx context.Context, task model.BruteForceTask, username, password string) (Outcome, error)
}

// Engine is the task registry + driver. One Start call spawns one
// driver goroutine per task; the driver re-reads the task's status
// before every attempt and stops fanning out new work the moment it
// observes stopped (or cannot read the status) (spec §4.7, §5
// cancellation).
type Engine struct {
	store    *store.Store
	adapters map[model.BruteForceProtocol]ProtocolAdapter

	mu      sync.Mutex
	running map[int64]context.CancelFunc
}

// NewEngine constructs an Engine backed by st, dispatching to adapters
// keyed by protocol.
func NewEngine(st *store.Store, adapters map[model.BruteForceProtocol]ProtocolAdapter) *Engine {
	return &Engine{
		store:    st,
		adapters: adapters,
		running:  make(map[int64]context.CancelFunc),
	}
}

// CreateTask persists a new campaign in pending status.
func (e *Engine) CreateTask(t model.BruteForceTask) (int64, error) {
	return e.store.CreateBruteForceTask(t)
}

// Tasks returns every campaign.
func (e *Engine) Tasks() ([]model.BruteForceTask, error) {
	return e.store.GetBruteForceTasks()
}

// Results returns every successful credential pair found for a task.
func (e *Engine) Results(taskID int64) ([]model.BruteForceResult, error) {
	return e.store.GetBruteForceResults(taskID)
}

// DeleteTask stops a running campaign (if any) and removes it.
func (e *Engine) DeleteTask(taskID int64) error {
	_ = e.Stop(taskID)
	return e.store.DeleteBruteForceTask(taskID)
}

// Start transitions a task to running and spawns its driver goroutine.
func (e *Engine) Start(ctx context.Context, taskID int64) error {
	e.mu.Lock()
	if _, ok := e.running[taskID]; ok {
		e.mu.Unlock()
		return fmt.Errorf("bruteforce task %d already running", taskID)
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.running[taskID] = cancel
	e.mu.Unlock()

	if err := e.store.SetBruteForceStatus(taskID, model.BruteForceRunning); err != nil {
		e.mu.Lock()
		delete(e.running, taskID)
		e.mu.Unlock()
		return err
	}

	go e.drive(runCtx, taskID)
	return nil
}

// Stop transitions a task to stopped and cancels its driver. The
// driver observes the status field, not just ctx cancellation — a
// caller that stops a task via a different Engine instance (e.g.
// after a restart) still takes effect on the next status re-read.
func (e *Engine) Stop(taskID int64) error {
	e.mu.Lock()
	cancel, ok := e.running[taskID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return e.store.SetBruteForceStatus(taskID, model.BruteForceStopped)
}

func (e *Engine) drive(ctx context.Context, taskID int64) {
	defer func() {
		e.mu.Lock()
		delete(e.running, taskID)
		e.mu.Unlock()
	}()

	task, err := e.store.GetBruteForceTask(taskID)
	if err != nil || task == nil {
		return
	}

	adapter, ok := e.adapters[task.Protocol]
	if !ok {
		e.store.SetBruteForceStatus(taskID, model.BruteForceFailed)
		return
	}

	threads := task.Threads
	if threads < 1 {
		threads = 1
	}
	sem := semaphore.NewWeighted(int64(threads))

	var wg sync.WaitGroup
	var stopped atomic.Bool

	for _, username := range task.Usernames {
		if e.shouldStop(taskID, &stopped) {
			break
		}
		for _, password := range task.Passwords {
			if e.shouldStop(taskID, &stopped) {
				break
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				stopped.Store(true)
				break
			}
			wg.Add(1)
			go func(username, password string) {
				defer wg.Done()
				defer sem.Release(1)
				e.attempt(ctx, *task, adapter, username, password)
			}(username, password)
		}
	}
	wg.Wait()

	status, err := e.store.GetBruteForceStatus(taskID)
	if err == nil && status != model.BruteForceStopped {
		e.store.SetBruteForceStatus(taskID, model.BruteForceCompleted)
	}
}

// shouldStop re-reads the shared status row, the mechanism spec §4.7
// and §5 call for instead of relying on ctx cancellation alone.
func (e *Engine) shouldStop(taskID int64, cached *atomic.Bool) bool {
	if cached.Load() {
		return true
	}
	status, err := e.store.GetBruteForceStatus(taskID)
	if err != nil || status == model.BruteForceStopped {
		cached.Store(true)
		return true
	}
	return false
}

func (e *Engine) attempt(ctx context.Context, task model.BruteForceTask, adapter ProtocolAdapter, username, password string) {
	timeout := time.Duration(task.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	outcome, _ := adapter.Attempt(attemptCtx, task, username, password)
	elapsed := time.Since(start)

	if outcome != OutcomeSuccess {
		return
	}
	e.store.AddBruteForceResult(model.BruteForceResult{
		TaskID:      task.ID,
		Target:      task.Target,
		Protocol:    task.Protocol,
		Username:    username,
		Password:    password,
		Success:     true,
		TimeTakenMs: elapsed.Milliseconds(),
	})
}
