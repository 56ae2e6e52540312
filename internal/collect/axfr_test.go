package collect

import (
	"context"
	"testing"

	"github.com/miekg/dns"
)

func TestAXFROwnerNamesExcludesZoneApex(t *testing.T) {
	rrs := []dns.RR{
		&dns.SOA{Hdr: dns.RR_Header{Name: "acme.test."}},
		&dns.A{Hdr: dns.RR_Header{Name: "www.acme.test."}},
		&dns.A{Hdr: dns.RR_Header{Name: "API.acme.test."}},
		&dns.NS{Hdr: dns.RR_Header{Name: "acme.test."}},
	}

	names := axfrOwnerNames(rrs, "acme.test")

	want := map[string]bool{"www.acme.test": true, "api.acme.test": true}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %v", len(want), names)
	}
	for _, n := range names {
		if !want[n] {
			t.Fatalf("unexpected owner name in results: %s", n)
		}
	}
}

func TestAXFRCollectorErrorsWithoutNameservers(t *testing.T) {
	_, err := AXFRCollector{}.Collect(context.Background(), "invalid.test.nonexistent-tld-for-axfr-test")
	if err == nil {
		t.Fatal("expected an error when NS records can't be resolved")
	}
}
