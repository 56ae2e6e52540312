package collect

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const axfrTimeout = 10 * time.Second

// AXFRCollector attempts a DNS zone transfer (AXFR) against each
// authoritative nameserver of a root domain. Most nameservers refuse
// unauthenticated transfers, but a misconfigured one hands back the
// entire zone in one shot — a classic, entirely passive ASM check
// that the stdlib resolver has no way to perform (it exposes no raw
// query primitive, only the canned Lookup* helpers), hence a real DNS
// client library here instead of net.Resolver.
type AXFRCollector struct{}

// Collect implements orchestrator.DNSCollector. It never returns an
// error for a refused transfer (the overwhelmingly common case); it
// only errors if the root domain's own NS records can't be resolved
// at all, since that means there was nothing to even attempt.
func (AXFRCollector) Collect(ctx context.Context, domain string) ([]string, error) {
	nameservers, err := net.DefaultResolver.LookupNS(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("axfr: resolve NS for %s: %w", domain, err)
	}

	seen := make(map[string]struct{})
	for _, ns := range nameservers {
		host := strings.TrimSuffix(ns.Host, ".")
		names, err := transfer(domain, host)
		if err != nil {
			continue // refused/timed out; try the next nameserver
		}
		for _, n := range names {
			seen[n] = struct{}{}
		}
	}

	hosts := make([]string, 0, len(seen))
	for h := range seen {
		hosts = append(hosts, h)
	}
	return hosts, nil
}

// transfer performs one AXFR attempt against a single nameserver and
// returns every owner name seen in the zone, lowercased and with the
// trailing root dot stripped.
func transfer(zone, nameserver string) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetAxfr(dns.Fqdn(zone))

	tx := &dns.Transfer{
		DialTimeout: axfrTimeout,
		ReadTimeout: axfrTimeout,
	}
	envelopes, err := tx.In(msg, net.JoinHostPort(nameserver, "53"))
	if err != nil {
		return nil, err
	}

	var names []string
	for env := range envelopes {
		if env.Error != nil {
			return names, env.Error
		}
		names = append(names, axfrOwnerNames(env.RR, zone)...)
	}
	return names, nil
}

// axfrOwnerNames extracts owner names from a set of zone-transfer RRs,
// lowercased with the trailing root dot stripped, excluding the zone
// apex itself (the SOA/NS records for the zone root carry no new
// subdomain information).
func axfrOwnerNames(rrs []dns.RR, zone string) []string {
	zone = strings.ToLower(strings.TrimSuffix(zone, "."))
	var names []string
	for _, rr := range rrs {
		name := strings.ToLower(strings.TrimSuffix(rr.Header().Name, "."))
		if name != "" && name != zone {
			names = append(names, name)
		}
	}
	return names
}
