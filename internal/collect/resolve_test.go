package collect

import (
	"context"
	"testing"
)

func TestStdResolverResolvesLocalhost(t *testing.T) {
	d, err := StdResolver{}.Resolve(context.Background(), "localhost")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(d.A) == 0 {
		t.Fatal("expected at least one A record for localhost")
	}
	if d.Domain != "localhost" {
		t.Errorf("expected Domain to echo the queried host, got %q", d.Domain)
	}
}
