package bruteforce

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rshield/rshield/internal/model"
	"github.com/rshield/rshield/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

type fakeAdapter struct {
	attempts int64
	wantUser string
	wantPass string
}

func (f *fakeAdapter) Attempt(_ context.Context, _ model.BruteForceTask, username, password string) (Outcome, error) {
	atomic.AddInt64(&f.attempts, 1)
	if username == f.wantUser && password == f.wantPass {
		return OutcomeSuccess, nil
	}
	return OutcomeAuthFailed, nil
}

func TestEngineFindsCorrectCredential(t *testing.T) {
	st := openTestStore(t)
	adapter := &fakeAdapter{wantUser: "admin", wantPass: "hunter2"}
	e := NewEngine(st, map[model.BruteForceProtocol]ProtocolAdapter{
		model.ProtoSSH: adapter,
	})

	taskID, err := e.CreateTask(model.BruteForceTask{
		Name:      "t1",
		Target:    "127.0.0.1",
		Port:      22,
		Protocol:  model.ProtoSSH,
		Usernames: []string{"root", "admin"},
		Passwords: []string{"wrong", "hunter2"},
		Threads:   2,
		Timeout:   5,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if err := e.Start(context.Background(), taskID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var status model.BruteForceStatus
	for time.Now().Before(deadline) {
		status, _ = st.GetBruteForceStatus(taskID)
		if status == model.BruteForceCompleted {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status != model.BruteForceCompleted {
		t.Fatalf("expected task completed, got %s", status)
	}

	results, err := e.Results(taskID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 successful result, got %d", len(results))
	}
	if results[0].Username != "admin" || results[0].Password != "hunter2" {
		t.Errorf("unexpected result: %+v", results[0])
	}
	if atomic.LoadInt64(&adapter.attempts) != 4 {
		t.Errorf("expected 4 attempts (2 users x 2 passwords), got %d", adapter.attempts)
	}
}

func TestEngineStopHaltsAttempts(t *testing.T) {
	st := openTestStore(t)
	adapter := &fakeAdapter{wantUser: "nobody", wantPass: "nothing"}
	e := NewEngine(st, map[model.BruteForceProtocol]ProtocolAdapter{
		model.ProtoSSH: adapter,
	})

	usernames := make([]string, 0, 50)
	passwords := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		usernames = append(usernames, "user")
		passwords = append(passwords, "pass")
	}

	taskID, err := e.CreateTask(model.BruteForceTask{
		Name:      "t2",
		Target:    "127.0.0.1",
		Protocol:  model.ProtoSSH,
		Usernames: usernames,
		Passwords: passwords,
		Threads:   1,
		Timeout:   5,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if err := e.Start(context.Background(), taskID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := e.Stop(taskID); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	status, err := st.GetBruteForceStatus(taskID)
	if err != nil {
		t.Fatalf("GetBruteForceStatus: %v", err)
	}
	if status != model.BruteForceStopped {
		t.Fatalf("expected stopped, got %s", status)
	}

	results, _ := e.Results(taskID)
	if len(results) != 0 {
		t.Errorf("expected no successful results, got %d", len(results))
	}
}

func TestEngineUnknownProtocolFails(t *testing.T) {
	st := openTestStore(t)
	e := NewEngine(st, map[model.BruteForceProtocol]ProtocolAdapter{})

	taskID, err := e.CreateTask(model.BruteForceTask{
		Name:      "t3",
		Target:    "127.0.0.1",
		Protocol:  model.ProtoSSH,
		Usernames: []string{"x"},
		Passwords: []string{"y"},
		Threads:   1,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if err := e.Start(context.Background(), taskID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	var status model.BruteForceStatus
	for time.Now().Before(deadline) {
		status, _ = st.GetBruteForceStatus(taskID)
		if status == model.BruteForceFailed {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status != model.BruteForceFailed {
		t.Fatalf("expected failed status for unsupported protocol, got %s", status)
	}
}
