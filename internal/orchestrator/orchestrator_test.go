package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rshield/rshield/internal/model"
	"github.com/rshield/rshield/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type fakeDNSCollector struct{ hosts []string }

func (f fakeDNSCollector) Collect(ctx context.Context, root string) ([]string, error) {
	return f.hosts, nil
}

type fakeResolver struct{ ip string }

func (f fakeResolver) Resolve(ctx context.Context, host string) (model.Domain, error) {
	return model.Domain{Domain: host, A: []string{f.ip}}, nil
}

type fakeWebProber struct{}

func (fakeWebProber) Probe(ctx context.Context, targetURL string) (model.Website, error) {
	return model.Website{URL: targetURL, BaseURL: targetURL, StatusCode: 200, Title: "test"}, nil
}

func TestPipelineRunPersistsDiscoveredDomainsAndWebsites(t *testing.T) {
	s := openTestStore(t)
	taskID, err := s.CreateTask("acme", true)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := s.AddRootDomain(taskID, "acme.test", "acme"); err != nil {
		t.Fatalf("AddRootDomain: %v", err)
	}

	caps := Capabilities{
		DNSCollectors: []DNSCollector{fakeDNSCollector{hosts: []string{"www.acme.test"}}},
		Resolver:      fakeResolver{ip: "93.184.216.34"},
		WebProbe:      fakeWebProber{},
	}

	orch := New(s, caps, 1, 2)
	reg := newRegistry()
	orch.reg = reg
	reg.register(taskID, true)

	cfg, err := s.GetConfig()
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	p := &pipeline{taskID: taskID, store: s, caps: caps, cfg: *cfg, reg: reg}
	p.run(context.Background())

	domains, err := s.GetDomains(taskID)
	if err != nil {
		t.Fatalf("GetDomains: %v", err)
	}
	if len(domains) != 1 || domains[0].Domain != "www.acme.test" {
		t.Fatalf("unexpected domains: %+v", domains)
	}

	ips, err := s.GetIPs(taskID)
	if err != nil {
		t.Fatalf("GetIPs: %v", err)
	}
	if len(ips) != 1 || ips[0].IPAddr != "93.184.216.34" {
		t.Fatalf("unexpected ips: %+v", ips)
	}

	websites, err := s.GetWebsites(taskID)
	if err != nil {
		t.Fatalf("GetWebsites: %v", err)
	}
	if len(websites) == 0 {
		t.Fatal("expected at least one website persisted")
	}

	status, ok := reg.status(taskID)
	if !ok || status != model.StatusWait {
		t.Fatalf("expected final status wait, got %s (ok=%v)", status, ok)
	}
}

func TestPipelineNoRootDomainsEndsInWait(t *testing.T) {
	s := openTestStore(t)
	taskID, _ := s.CreateTask("empty", true)

	reg := newRegistry()
	reg.register(taskID, true)
	cfg, _ := s.GetConfig()
	p := &pipeline{taskID: taskID, store: s, cfg: *cfg, reg: reg}
	p.run(context.Background())

	status, _ := reg.status(taskID)
	if status != model.StatusWait {
		t.Fatalf("expected wait status for task with no root domains, got %s", status)
	}
}

func TestOrchestratorAddAndRemoveTask(t *testing.T) {
	s := openTestStore(t)
	taskID, _ := s.CreateTask("acme", true)
	if _, err := s.AddRootDomain(taskID, "acme.test", "acme"); err != nil {
		t.Fatalf("AddRootDomain: %v", err)
	}

	orch := New(s, Capabilities{}, 60, 90)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch.AddTask(ctx, taskID)
	time.Sleep(20 * time.Millisecond)

	if _, ok := orch.Status(taskID); !ok {
		t.Fatal("expected task to be registered after AddTask")
	}

	orch.RemoveTask(taskID)
	if _, ok := orch.Status(taskID); ok {
		t.Fatal("expected task to be unregistered after RemoveTask")
	}
}

func TestRunPoolRecoversPanics(t *testing.T) {
	items := []int{1, 2, 3}
	var ran int
	runPool(items, 2, func(i int) {
		ran++
		if i == 2 {
			panic("boom")
		}
	})
	if ran != 3 {
		t.Fatalf("expected all 3 items to run despite a panic, got %d", ran)
	}
}

func TestRunPoolCollect(t *testing.T) {
	items := []int{1, 2, 3, 4}
	out := runPoolCollect(items, 2, func(i int) []int {
		if i%2 == 0 {
			return []int{i * 10}
		}
		return nil
	})
	if len(out) != 2 {
		t.Fatalf("expected 2 collected results, got %d: %v", len(out), out)
	}
}
