package proxy

import (
	"testing"
	"time"

	"github.com/rshield/rshield/internal/model"
)

func TestGateOpenAndDecide(t *testing.T) {
	g := NewGate()

	id2, await := g.Open(func(id string) any {
		return toInterceptedRequest(id, "GET", "https://example.com", nil, "")
	})

	select {
	case ev := <-g.Events:
		ireq, ok := ev.(model.InterceptedRequest)
		if !ok {
			t.Fatalf("expected event payload to be InterceptedRequest, got %T", ev)
		}
		if ireq.ID != id2 {
			t.Fatalf("event id %s did not match returned id %s", ireq.ID, id2)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an event notification")
	}

	done := make(chan Verdict, 1)
	go func() { done <- await() }()

	if !g.Decide(id2, Verdict{Method: "PUT"}) {
		t.Fatal("expected Decide to find the pending entry")
	}

	select {
	case v := <-done:
		if v.Method != "PUT" {
			t.Fatalf("unexpected verdict: %+v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("await() did not return after Decide")
	}
}

func TestGateDecideUnknownIDReturnsFalse(t *testing.T) {
	g := NewGate()
	if g.Decide("no-such-id", Verdict{}) {
		t.Fatal("expected Decide to fail for unknown id")
	}
}

func TestGateDrainAsDrop(t *testing.T) {
	g := NewGate()

	build := func(id string) any { return toInterceptedRequest(id, "GET", "https://example.com", nil, "") }
	_, await1 := g.Open(build)
	_, await2 := g.Open(build)

	done1 := make(chan Verdict, 1)
	done2 := make(chan Verdict, 1)
	go func() { done1 <- await1() }()
	go func() { done2 <- await2() }()

	g.DrainAsDrop()

	for _, done := range []chan Verdict{done1, done2} {
		select {
		case v := <-done:
			if !v.Drop {
				t.Fatal("expected drained verdict to be Drop")
			}
		case <-time.After(time.Second):
			t.Fatal("await() did not return after DrainAsDrop")
		}
	}
}

func TestToInterceptedResponseIDDistinctFromRequest(t *testing.T) {
	r1 := toInterceptedResponse("resp-1", "req-1", 200, nil, "")
	r2 := toInterceptedResponse("resp-2", "req-1", 200, nil, "")
	if r1.ID != "resp-1" || r2.ID != "resp-2" {
		t.Fatalf("expected response ids to be passed through, got %q and %q", r1.ID, r2.ID)
	}
	if r1.ID == r1.RelatedRequestID {
		t.Fatal("expected response id to be distinct from the related request id")
	}
	if r1.RelatedRequestID != "req-1" || r2.RelatedRequestID != "req-1" {
		t.Fatalf("unexpected related request id: %s, %s", r1.RelatedRequestID, r2.RelatedRequestID)
	}
}
