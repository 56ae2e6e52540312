package proxy

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rshield/rshield/internal/model"
)

// GuardWindow bounds how long a connection waits for an operator
// verdict before the gate fails open and forwards unmodified (spec
// §4.3).
const GuardWindow = 30 * time.Second

// Verdict is the operator's decision for one pending interception.
type Verdict struct {
	Drop bool

	// Forward overrides, all optional.
	Method  string
	URL     string
	Headers map[string]string
	Body    string
	Status  int
}

// pendingEntry is one in-flight gate awaiting a verdict.
type pendingEntry struct {
	verdict chan Verdict
}

// Gate manages one family of synchronous interception decisions
// (request or response). Both the proxy's request gate and its
// response gate are built from this same shape (spec §4.3).
type Gate struct {
	mu      sync.Mutex
	pending map[string]*pendingEntry

	// Events fires once per new interception, carrying the full
	// intercepted payload (a model.InterceptedRequest or
	// model.InterceptedResponse) for the host to relay to the UI shell
	// over the matching event channel — the gate id alone is not
	// enough for an operator to decide forward vs. drop.
	Events chan any
}

// NewGate constructs an empty gate with a bounded event channel
// (capacity 100, matching the proxy→scanner backpressure budget in
// spec §5).
func NewGate() *Gate {
	return &Gate{
		pending: make(map[string]*pendingEntry),
		Events:  make(chan any, 100),
	}
}

// Open registers a new pending interception under a fresh UUID, hands
// that id to build so the caller can stamp it onto the intercepted
// payload, publishes the built payload on Events, and returns a
// function that blocks (up to GuardWindow) for the operator's verdict,
// fail-open on timeout or a closed gate.
func (g *Gate) Open(build func(id string) any) (id string, await func() Verdict) {
	id = uuid.NewString()
	entry := &pendingEntry{verdict: make(chan Verdict, 1)}

	g.mu.Lock()
	g.pending[id] = entry
	g.mu.Unlock()

	payload := build(id)
	select {
	case g.Events <- payload:
	default:
		log.Printf("[proxy] gate event channel full, dropping notification for %s", id)
	}

	await = func() Verdict {
		defer func() {
			g.mu.Lock()
			delete(g.pending, id)
			g.mu.Unlock()
		}()
		select {
		case v, ok := <-entry.verdict:
			if !ok {
				return Verdict{} // forward unmodified
			}
			return v
		case <-time.After(GuardWindow):
			log.Printf("[proxy] gate %s: guard window elapsed, forwarding unmodified", id)
			return Verdict{}
		}
	}
	return id, await
}

// Decide delivers a verdict for a pending interception. Returns false
// if no such interception is pending (already decided or unknown id).
func (g *Gate) Decide(id string, v Verdict) bool {
	g.mu.Lock()
	entry, ok := g.pending[id]
	g.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case entry.verdict <- v:
	default:
	}
	return true
}

// DrainAsDrop responds drop to every currently pending interception —
// used when the proxy is stopping (spec §4.3 lifecycle).
func (g *Gate) DrainAsDrop() {
	g.mu.Lock()
	ids := make([]string, 0, len(g.pending))
	for id := range g.pending {
		ids = append(ids, id)
	}
	g.mu.Unlock()

	for _, id := range ids {
		g.Decide(id, Verdict{Drop: true})
	}
}

// toInterceptedRequest adapts a facts+body pair into the UI-facing
// InterceptedRequest shape.
func toInterceptedRequest(id, method, url string, headers map[string]string, body string) model.InterceptedRequest {
	return model.InterceptedRequest{ID: id, Method: method, URL: url, Headers: headers, Body: body}
}

// toInterceptedResponse adapts a facts+body pair into the UI-facing
// InterceptedResponse shape. id is the response's own identifier —
// always distinct from relatedRequestID, the request it answers (spec
// §9's design note).
func toInterceptedResponse(id, relatedRequestID string, status int, headers map[string]string, body string) model.InterceptedResponse {
	return model.InterceptedResponse{
		ID:               id,
		RelatedRequestID: relatedRequestID,
		Status:           status,
		Headers:          headers,
		Body:             body,
	}
}
