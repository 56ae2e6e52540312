package rsubdomain

import (
	"testing"
	"time"
)

func TestSlotTableAcquireReleaseRoundTrip(t *testing.T) {
	table := newSlotTable(4)
	var slots []int
	for i := 0; i < 4; i++ {
		slot, ok := table.acquire(&pending{Domain: "a.example.com"})
		if !ok {
			t.Fatalf("expected acquire to succeed while capacity remains")
		}
		slots = append(slots, slot)
	}
	if _, ok := table.acquire(&pending{Domain: "overflow.example.com"}); ok {
		t.Fatalf("expected acquire to fail once the table is full")
	}
	if table.len() != 4 {
		t.Fatalf("expected len 4, got %d", table.len())
	}

	table.release(slots[0])
	if table.len() != 3 {
		t.Fatalf("expected len 3 after release, got %d", table.len())
	}
	if _, ok := table.acquire(&pending{Domain: "reuse.example.com"}); !ok {
		t.Fatalf("expected acquire to succeed after a release")
	}
}

func TestSlotTableExpired(t *testing.T) {
	table := newSlotTable(8)
	slot, _ := table.acquire(&pending{Domain: "old.example.com", SentAt: time.Now().Add(-2 * time.Second)})
	_, _ = table.acquire(&pending{Domain: "fresh.example.com", SentAt: time.Now()})

	expired := table.expired(time.Now(), time.Second, 10)
	if len(expired) != 1 || expired[0] != slot {
		t.Fatalf("expected only the old slot to be expired, got %v", expired)
	}
}

func TestSweepOnceReleasesAfterMaxRetries(t *testing.T) {
	table := newSlotTable(4)
	slot, _ := table.acquire(&pending{
		Domain:  "stale.example.com",
		SentAt:  time.Now().Add(-2 * time.Second),
		Retries: maxRetries,
	})

	s := &sender{resolvers: defaultResolvers, table: table}
	sweepOnce(table, s)

	if _, ok := table.get(slot); ok {
		t.Fatalf("expected slot to be released once retries reached the cap")
	}
	if table.len() != 0 {
		t.Fatalf("expected table to be empty, got len %d", table.len())
	}
}

func TestSweepOnceRetriesBeforeCap(t *testing.T) {
	table := newSlotTable(4)
	slot, _ := table.acquire(&pending{
		Domain: "pending.example.com",
		SentAt: time.Now().Add(-2 * time.Second),
	})

	s := &sender{resolvers: defaultResolvers, handle: nil, table: table}
	sweepOnce(table, s)

	p, ok := table.get(slot)
	if !ok {
		t.Fatalf("expected slot to remain in flight")
	}
	if p.Retries != 1 {
		t.Fatalf("expected Retries incremented to 1, got %d", p.Retries)
	}
}

func TestBuildWordlistLevel3(t *testing.T) {
	existing := []string{"www.acme.test", "api.acme.test", "staging.acme.test"}
	got := buildWordlist([]string{"acme.test"}, existing, []string{"vpn"}, 3)

	want := map[string]bool{
		"api.acme.test":     true,
		"staging.acme.test": true,
		"vpn.acme.test":     true,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %v", len(want), got)
	}
	for _, c := range got {
		if !want[c] {
			t.Fatalf("unexpected candidate: %s", c)
		}
	}
}

func TestBuildWordlistLevel4ComposesDepths(t *testing.T) {
	existing := []string{"api.acme.test", "v1.api.acme.test"}
	got := buildWordlist([]string{"acme.test"}, existing, nil, 4)

	found := false
	for _, c := range got {
		if c == "v1.api.acme.test" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected v1.api.acme.test among level-4 candidates, got %v", got)
	}
}

func TestBuildWordlistRejectsInvalidLevel(t *testing.T) {
	if got := buildWordlist([]string{"acme.test"}, nil, []string{"vpn"}, 6); got != nil {
		t.Fatalf("expected nil for an out-of-range level, got %v", got)
	}
}

func TestToDomainModelsGroupsByDomain(t *testing.T) {
	records := []Record{
		{Domain: "api.acme.test", Type: "A", Value: "1.2.3.4"},
		{Domain: "api.acme.test", Type: "A", Value: "1.2.3.5"},
		{Domain: "api.acme.test", Type: "CNAME", Value: "edge.acme.test"},
		{Domain: "www.acme.test", Type: "A", Value: "1.2.3.6"},
	}
	domains := toDomainModels(records)
	if len(domains) != 2 {
		t.Fatalf("expected 2 grouped domains, got %d", len(domains))
	}

	byName := make(map[string]int)
	for i, d := range domains {
		byName[d.Domain] = i
	}
	api := domains[byName["api.acme.test"]]
	if len(api.A) != 2 || len(api.CNAME) != 1 {
		t.Fatalf("unexpected grouping for api.acme.test: %+v", api)
	}
}
