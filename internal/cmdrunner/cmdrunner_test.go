package cmdrunner

import (
	"context"
	"testing"
)

type fakeRunner struct {
	calls []string
	err   error
	res   Result
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	f.calls = append(f.calls, name)
	return f.res, f.err
}

func TestExecRunnerCapturesOutputAndExitCode(t *testing.T) {
	r := ExecRunner{}
	res, err := r.Run(context.Background(), "sh", "-c", "echo hello; exit 3")
	if err == nil {
		t.Fatalf("expected non-zero exit to surface as an error")
	}
	if res.Stdout != "hello\n" {
		t.Fatalf("unexpected stdout: %q", res.Stdout)
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
}

func TestExecRunnerSuccess(t *testing.T) {
	r := ExecRunner{}
	res, err := r.Run(context.Background(), "echo", "ok")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stdout != "ok\n" {
		t.Fatalf("unexpected stdout: %q", res.Stdout)
	}
}

func TestAllowlistRejectsUnknownKey(t *testing.T) {
	a := Allowlist{Runner: &fakeRunner{}, Commands: map[string][]string{
		"disk_usage": {"df", "-h"},
	}}
	if _, err := a.Run(context.Background(), "rm_rf_root"); err == nil {
		t.Fatalf("expected unregistered command to be rejected")
	}
}

func TestAllowlistDispatchesMappedBinary(t *testing.T) {
	fr := &fakeRunner{res: Result{Stdout: "done"}}
	a := Allowlist{Runner: fr, Commands: map[string][]string{
		"disk_usage": {"df", "-h"},
	}}
	res, err := a.Run(context.Background(), "disk_usage", "/")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stdout != "done" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(fr.calls) != 1 || fr.calls[0] != "df" {
		t.Fatalf("expected df to be invoked, got %v", fr.calls)
	}
}
