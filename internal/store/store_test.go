package store

import (
	"path/filepath"
	"testing"

	"github.com/rshield/rshield/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateTaskDefaultsToWait(t *testing.T) {
	s := openTestStore(t)

	id, err := s.CreateTask("acme", true)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	tasks, err := s.GetTaskList()
	if err != nil {
		t.Fatalf("GetTaskList: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if tasks[0].ID != id || tasks[0].Name != "acme" {
		t.Fatalf("unexpected task: %+v", tasks[0])
	}
	if tasks[0].RunningStatus != model.StatusWait {
		t.Fatalf("expected wait status, got %s", tasks[0].RunningStatus)
	}
	if !tasks[0].MonitorEnabled {
		t.Fatal("expected monitor_enabled=true")
	}
}

func TestUpsertDomainsIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	taskID, _ := s.CreateTask("acme", true)

	domains := []model.Domain{
		{TaskID: taskID, Domain: "www.acme.test", SourceTag: "crtsh", A: []string{"1.2.3.4"}},
		{TaskID: taskID, Domain: "api.acme.test", SourceTag: "crtsh"},
	}

	if err := s.UpsertDomains(taskID, domains); err != nil {
		t.Fatalf("UpsertDomains: %v", err)
	}
	if err := s.UpsertDomains(taskID, domains); err != nil {
		t.Fatalf("UpsertDomains (second run): %v", err)
	}

	got, err := s.GetDomains(taskID)
	if err != nil {
		t.Fatalf("GetDomains: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 domains after duplicate upsert, got %d", len(got))
	}
}

func TestSetTaskStatusTransitions(t *testing.T) {
	s := openTestStore(t)
	id, _ := s.CreateTask("acme", true)

	sequence := []model.ScanTaskStatus{
		model.StatusCollectingDomain,
		model.StatusCollectingIPs,
		model.StatusScanningPorts,
		model.StatusScanningWebsites,
		model.StatusScanningRisks,
		model.StatusWait,
	}
	for _, status := range sequence {
		if err := s.SetTaskStatus(id, status); err != nil {
			t.Fatalf("SetTaskStatus(%s): %v", status, err)
		}
		tasks, err := s.GetTaskList()
		if err != nil {
			t.Fatalf("GetTaskList: %v", err)
		}
		if tasks[0].RunningStatus != status {
			t.Fatalf("expected status %s, got %s", status, tasks[0].RunningStatus)
		}
	}
}

func TestAPIResponseCaptureTruncated(t *testing.T) {
	s := openTestStore(t)
	taskID, _ := s.CreateTask("acme", true)

	huge := make([]byte, model.MaxCapturedBodyBytes*2)
	for i := range huge {
		huge[i] = 'a'
	}

	id, err := s.UpsertAPI(model.API{TaskID: taskID, URI: "/x", UFrom: "http://acme.test/", GetResponse: string(huge)})
	if err != nil {
		t.Fatalf("UpsertAPI: %v", err)
	}

	apis, err := s.GetAPIs(taskID, "")
	if err != nil {
		t.Fatalf("GetAPIs: %v", err)
	}
	if len(apis) != 1 || apis[0].ID != id {
		t.Fatalf("unexpected apis: %+v", apis)
	}
	if len(apis[0].GetResponse) != model.MaxCapturedBodyBytes {
		t.Fatalf("expected capture truncated to %d, got %d", model.MaxCapturedBodyBytes, len(apis[0].GetResponse))
	}
}

func TestGetPortsForIP(t *testing.T) {
	s := openTestStore(t)
	taskID, _ := s.CreateTask("acme", true)

	ipID, err := s.UpsertIP(model.IP{TaskID: taskID, IPAddr: "10.0.0.5"})
	if err != nil {
		t.Fatalf("UpsertIP: %v", err)
	}

	ports := []model.Port{
		{Port: 80, Service: "http"},
		{Port: 443, Service: "https"},
	}
	if err := s.UpsertPorts(taskID, ipID, ports); err != nil {
		t.Fatalf("UpsertPorts: %v", err)
	}

	got, err := s.GetPortsForIP(ipID)
	if err != nil {
		t.Fatalf("GetPortsForIP: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 ports, got %d", len(got))
	}
	if got[0].Port != 80 || got[1].Port != 443 {
		t.Fatalf("unexpected port ordering: %+v", got)
	}
}

func TestBruteForceResultsOnlyStoreSuccesses(t *testing.T) {
	s := openTestStore(t)
	id, _ := s.CreateBruteForceTask(model.BruteForceTask{Name: "t", Target: "10.0.0.1", Port: 22, Protocol: model.ProtoSSH, Threads: 4, Timeout: 5})

	if err := s.AddBruteForceResult(model.BruteForceResult{TaskID: id, Target: "10.0.0.1", Protocol: model.ProtoSSH, Username: "root", Password: "toor", TimeTakenMs: 120}); err != nil {
		t.Fatalf("AddBruteForceResult: %v", err)
	}

	results, err := s.GetBruteForceResults(id)
	if err != nil {
		t.Fatalf("GetBruteForceResults: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !results[0].Success {
		t.Fatal("expected Success == true for every stored result")
	}
}
