package orchestrator

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rshield/rshield/internal/model"
)

// taskControl is the in-memory control record for one ScanTask (spec
// §4.1: "{running_status, next_run_epoch}" kept outside the DB so
// reads never block on a writer transaction).
type taskControl struct {
	status      model.ScanTaskStatus
	nextRunUnix int64
	monitored   bool
	stop        chan struct{}
	stopped     chan struct{}
}

// registry tracks every known task's in-memory control record, shaped
// like the teacher's AgentRegistry (single map guarded by one mutex;
// rshield's task count is small enough that a secondary index is
// unneeded).
type registry struct {
	mu    sync.RWMutex
	tasks map[int64]*taskControl
}

func newRegistry() *registry {
	return &registry{tasks: make(map[int64]*taskControl)}
}

func (r *registry) register(id int64, monitored bool) *taskControl {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tasks[id]; ok {
		existing.monitored = monitored
		return existing
	}
	tc := &taskControl{
		status:    model.StatusWait,
		monitored: monitored,
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	r.tasks[id] = tc
	return tc
}

func (r *registry) unregister(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}

func (r *registry) get(id int64) (*taskControl, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tc, ok := r.tasks[id]
	return tc, ok
}

func (r *registry) setStatus(id int64, status model.ScanTaskStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tc, ok := r.tasks[id]; ok {
		tc.status = status
	}
}

func (r *registry) status(id int64) (model.ScanTaskStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tc, ok := r.tasks[id]
	if !ok {
		return "", false
	}
	return tc.status, true
}

func (r *registry) setNextRun(id int64, unix int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tc, ok := r.tasks[id]; ok {
		tc.nextRunUnix = unix
	}
}

func (r *registry) ids() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int64, 0, len(r.tasks))
	for id := range r.tasks {
		out = append(out, id)
	}
	return out
}

// jitteredInterval returns a duration uniformly distributed within
// [minSecs, maxSecs] (spec §4.1: "randomised within a configurable
// band; default 20-40 seconds in development").
func jitteredInterval(minSecs, maxSecs int) time.Duration {
	if maxSecs <= minSecs {
		return time.Duration(minSecs) * time.Second
	}
	span := maxSecs - minSecs
	return time.Duration(minSecs+rand.Intn(span+1)) * time.Second
}
