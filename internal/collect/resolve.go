package collect

import (
	"context"
	"net"

	"github.com/rshield/rshield/internal/model"
)

// StdResolver resolves a hostname's A, CNAME, NS and MX records using
// the stdlib resolver, independent of the raw-socket bruteforcer
// (internal/rsubdomain), which already performs its own resolution
// inline for the hosts it guesses.
type StdResolver struct{}

// Resolve implements orchestrator.Resolver.
func (StdResolver) Resolve(ctx context.Context, host string) (model.Domain, error) {
	d := model.Domain{Domain: host, SourceTag: "dns"}

	if ips, err := net.DefaultResolver.LookupHost(ctx, host); err == nil {
		d.A = ips
	}
	if cname, err := net.DefaultResolver.LookupCNAME(ctx, host); err == nil && cname != "" {
		d.CNAME = []string{cname}
	}
	if ns, err := net.DefaultResolver.LookupNS(ctx, host); err == nil {
		for _, rec := range ns {
			d.NS = append(d.NS, rec.Host)
		}
	}
	if mx, err := net.DefaultResolver.LookupMX(ctx, host); err == nil {
		for _, rec := range mx {
			d.MX = append(d.MX, rec.Host)
		}
	}
	return d, nil
}
