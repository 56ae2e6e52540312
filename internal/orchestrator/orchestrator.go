// Package orchestrator schedules and drives per-task reconnaissance
// pipelines: root-domain discovery, subdomain enumeration, resolution,
// port scanning, web fingerprinting, API extraction, and vulnerability
// risk scanning (spec §4.1).
package orchestrator

import (
	"context"
	"log"
	"time"

	"github.com/rshield/rshield/internal/model"
	"github.com/rshield/rshield/internal/store"
)

// Orchestrator owns one driver goroutine per monitored task.
type Orchestrator struct {
	store *store.Store
	caps  Capabilities
	reg   *registry

	minIntervalSecs int
	maxIntervalSecs int
}

// New constructs an Orchestrator. minIntervalSecs/maxIntervalSecs set
// the jitter band for each task's wake interval (spec §4.1).
func New(st *store.Store, caps Capabilities, minIntervalSecs, maxIntervalSecs int) *Orchestrator {
	if minIntervalSecs <= 0 {
		minIntervalSecs = 20
	}
	if maxIntervalSecs <= minIntervalSecs {
		maxIntervalSecs = minIntervalSecs + 20
	}
	return &Orchestrator{
		store:           st,
		caps:            caps,
		reg:             newRegistry(),
		minIntervalSecs: minIntervalSecs,
		maxIntervalSecs: maxIntervalSecs,
	}
}

// Start loads every monitored task from the store and begins its
// driver goroutine. Safe to call once at startup.
func (o *Orchestrator) Start(ctx context.Context) error {
	tasks, err := o.store.GetMonitoredTasks()
	if err != nil {
		return err
	}
	for _, t := range tasks {
		o.startTask(ctx, t.ID)
	}
	return nil
}

// Stop signals every driver goroutine to exit and waits for them.
func (o *Orchestrator) Stop() {
	for _, id := range o.reg.ids() {
		o.stopTask(id)
	}
}

// AddTask begins driving a newly created or newly monitored task.
func (o *Orchestrator) AddTask(ctx context.Context, taskID int64) {
	o.startTask(ctx, taskID)
}

// RemoveTask stops driving a task (e.g. it was deleted or
// unmonitored).
func (o *Orchestrator) RemoveTask(taskID int64) {
	o.stopTask(taskID)
}

// Status returns a task's current in-memory running status.
func (o *Orchestrator) Status(taskID int64) (model.ScanTaskStatus, bool) {
	return o.reg.status(taskID)
}

// RunNow runs one pipeline pass for taskID immediately, outside its
// normal tick interval — used by the "run_scan" command surface
// operation.
func (o *Orchestrator) RunNow(ctx context.Context, taskID int64) error {
	cfg, err := o.store.GetConfig()
	if err != nil {
		return err
	}
	tc, ok := o.reg.get(taskID)
	if !ok {
		tc = o.reg.register(taskID, false)
	}
	_ = tc
	p := &pipeline{taskID: taskID, store: o.store, caps: o.caps, cfg: *cfg, reg: o.reg}
	p.run(ctx)
	return nil
}

func (o *Orchestrator) startTask(ctx context.Context, taskID int64) {
	if _, ok := o.reg.get(taskID); ok {
		return
	}
	tc := o.reg.register(taskID, true)

	go o.drive(ctx, taskID, tc)
}

func (o *Orchestrator) stopTask(taskID int64) {
	tc, ok := o.reg.get(taskID)
	if !ok {
		return
	}
	close(tc.stop)
	<-tc.stopped
	o.reg.unregister(taskID)
}

// drive is the per-task loop: wait a jittered interval, then run one
// pipeline pass, persisting next_run_time before and after each cycle
// (spec §4.1 "driver sleeps ... between cycles").
func (o *Orchestrator) drive(ctx context.Context, taskID int64, tc *taskControl) {
	defer close(tc.stopped)

	for {
		interval := jitteredInterval(o.minIntervalSecs, o.maxIntervalSecs)
		nextRun := time.Now().Add(interval).Unix()
		o.reg.setNextRun(taskID, nextRun)
		if err := o.store.SaveNextRunTime(taskID, nextRun, time.Now().Unix()); err != nil {
			log.Printf("[orchestrator] task %d: save next run time: %v", taskID, err)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-tc.stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		cfg, err := o.store.GetConfig()
		if err != nil {
			log.Printf("[orchestrator] task %d: load config: %v", taskID, err)
			continue
		}
		p := &pipeline{taskID: taskID, store: o.store, caps: o.caps, cfg: *cfg, reg: o.reg}
		p.run(ctx)
	}
}
