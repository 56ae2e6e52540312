package errs

import (
	"errors"
	"testing"
)

func TestWrapNilIsNil(t *testing.T) {
	if Wrap(Config, "op", nil) != nil {
		t.Fatal("expected Wrap(nil) to return nil")
	}
}

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	base := errors.New("boom")
	wrapped := Wrap(Script, "analyze()", base)

	if !Is(wrapped, Script) {
		t.Fatal("expected Is(wrapped, Script) to be true")
	}
	if Is(wrapped, IO) {
		t.Fatal("expected Is(wrapped, IO) to be false")
	}
	if !errors.Is(wrapped, base) {
		t.Fatal("expected errors.Is to see through the wrapper to the base error")
	}
}

func TestErrorStringIncludesKindAndOp(t *testing.T) {
	err := Wrap(Persistence, "open writer", errors.New("disk full"))
	got := err.Error()
	if got != "persistence: open writer: disk full" {
		t.Fatalf("unexpected error string: %q", got)
	}
}
