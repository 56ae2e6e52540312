// Package passivescan runs the built-in vulnerability scanners and
// enabled plugins over every request/response pair the proxy observes,
// the worker pool behind spec §10's Passive Scanner Engine.
package passivescan

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rshield/rshield/internal/model"
	"github.com/rshield/rshield/internal/pluginrt"
	"github.com/rshield/rshield/internal/proxy"
	"github.com/rshield/rshield/internal/scanners"
	"github.com/rshield/rshield/internal/store"
)

// Status is the engine's observable state, per spec §10.
type Status struct {
	Running        bool
	TaskCount      int64
	CompletedCount int64
	ErrorCount     int64
	LastScanTime   int64
}

// Engine is a bounded worker pool draining a proxy.TrafficPair channel,
// dispatching each pair to the built-in scanners plus enabled
// vulnerability plugins, and persisting matches as model.Risk rows.
type Engine struct {
	store       *store.Store
	plugins     *pluginrt.Manager
	builtins    []scanners.Scanner
	concurrency int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	taskCount      int64
	completedCount int64
	errorCount     int64
	lastScanTime   int64
}

// NewEngine constructs an Engine. level gates the RCE scanner's payload
// catalogue; concurrency bounds the worker pool (defaults to 4).
func NewEngine(st *store.Store, plugins *pluginrt.Manager, level, concurrency int) *Engine {
	if concurrency < 1 {
		concurrency = 4
	}
	return &Engine{
		store:       st,
		plugins:     plugins,
		builtins:    scanners.Builtins(level),
		concurrency: concurrency,
	}
}

// Start launches the worker pool against traffic, scoped to taskID.
// Returns an error if the engine is already running (spec §5's
// cooperative start/stop contract — starting twice is a caller bug,
// not a silent no-op).
func (e *Engine) Start(ctx context.Context, traffic <-chan proxy.TrafficPair, taskID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("passive scanner already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true

	for i := 0; i < e.concurrency; i++ {
		e.wg.Add(1)
		go e.worker(runCtx, traffic, taskID)
	}
	return nil
}

// Stop cooperatively halts the worker pool and waits for in-flight
// scans to finish. Counters are left intact.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	e.running = false
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
}

// Status returns a snapshot of the engine's counters.
func (e *Engine) Status() Status {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	return Status{
		Running:        running,
		TaskCount:      atomic.LoadInt64(&e.taskCount),
		CompletedCount: atomic.LoadInt64(&e.completedCount),
		ErrorCount:     atomic.LoadInt64(&e.errorCount),
		LastScanTime:   atomic.LoadInt64(&e.lastScanTime),
	}
}

// ClearVulnerabilities implements clear_scan_vulnerabilities: drops
// every persisted finding for taskID but leaves the scan counters
// untouched.
func (e *Engine) ClearVulnerabilities(taskID int64) error {
	if e.store == nil {
		return nil
	}
	return e.store.DeleteRisks(taskID)
}

// ResetStatistics implements reset_scan_statistics: clears findings
// and zeroes every counter.
func (e *Engine) ResetStatistics(taskID int64) error {
	if err := e.ClearVulnerabilities(taskID); err != nil {
		return err
	}
	atomic.StoreInt64(&e.taskCount, 0)
	atomic.StoreInt64(&e.completedCount, 0)
	atomic.StoreInt64(&e.errorCount, 0)
	atomic.StoreInt64(&e.lastScanTime, 0)
	return nil
}

// ReloadPlugins is a no-op beyond documenting intent: pluginrt.Manager
// reads enabled plugins from the store fresh on every Analyze/Enabled
// call, so there is no in-memory plugin cache here to invalidate. It
// is an engine-level entry point; no command.Surface method calls it.
func (e *Engine) ReloadPlugins() error {
	return nil
}

func (e *Engine) worker(ctx context.Context, traffic <-chan proxy.TrafficPair, taskID int64) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case pair, ok := <-traffic:
			if !ok {
				return
			}
			e.scanPair(ctx, taskID, pair)
		}
	}
}

func (e *Engine) scanPair(ctx context.Context, taskID int64, pair proxy.TrafficPair) {
	atomic.AddInt64(&e.taskCount, 1)
	atomic.StoreInt64(&e.lastScanTime, time.Now().Unix())

	ok := true
	for _, sc := range e.builtins {
		for _, r := range sc.Scan(pair.Request, pair.Response) {
			if !r.Matched {
				continue
			}
			if err := e.persist(taskID, r.RiskName, r.RiskType, r.Level, r.Description, r.Evidence, sc.Name()); err != nil {
				ok = false
			}
		}
	}

	if e.plugins != nil {
		enabled, err := e.plugins.Enabled(model.PluginVulnerability)
		if err != nil {
			ok = false
		} else {
			for _, p := range enabled {
				e.runPlugin(ctx, taskID, p, pair, &ok)
			}
		}
	}

	if ok {
		atomic.AddInt64(&e.completedCount, 1)
	} else {
		atomic.AddInt64(&e.errorCount, 1)
	}
}

func (e *Engine) runPlugin(ctx context.Context, taskID int64, p model.Plugin, pair proxy.TrafficPair, ok *bool) {
	req := pair.Request
	resp := pair.Response
	results, err := e.plugins.Analyze(ctx, model.PluginVulnerability, p.Name, pluginrt.AnalyzeInput{
		Target:   req.URL,
		Request:  &req,
		Response: &resp,
	})
	if err != nil {
		*ok = false
		return
	}
	for _, r := range results {
		if !r.Matched {
			continue
		}
		if err := e.persist(taskID, p.Name, "plugin", r.RiskLevel, r.Description, evidenceString(r.Evidence), p.Name); err != nil {
			*ok = false
		}
	}
}

func (e *Engine) persist(taskID int64, name, riskType string, level model.RiskLevel, detail, snippet, sourceTag string) error {
	if e.store == nil {
		return nil
	}
	_, err := e.store.AddRisk(model.Risk{
		TaskID:          taskID,
		RiskName:        name,
		RiskType:        riskType,
		Level:           level,
		Detail:          detail,
		ResponseSnippet: snippet,
		SourceTag:       sourceTag,
	})
	return err
}

func evidenceString(m map[string]string) string {
	var b strings.Builder
	for k, v := range m {
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(v)
	}
	return b.String()
}
