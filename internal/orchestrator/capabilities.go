package orchestrator

import (
	"context"

	"github.com/rshield/rshield/internal/model"
)

// The pipeline talks to every other subsystem through small
// interfaces, the same way the teacher's daemon depends on
// healing.ActionExecutor rather than reaching into a concrete
// executor type. cmd/rshield-daemon wires concrete implementations
// from internal/collect, internal/rsubdomain, internal/activescan,
// internal/pluginrt and internal/passivescan into these at startup;
// tests substitute fakes.

// DNSCollector returns subdomains it discovered for a root domain,
// e.g. a certificate-transparency or passive-DNS scraper.
type DNSCollector interface {
	Collect(ctx context.Context, rootDomain string) ([]string, error)
}

// Bruteforcer is the packet DNS bruteforce engine's pipeline-facing
// surface (internal/rsubdomain). Returns resolved records directly
// rather than raw subdomains, since the bruteforcer already performs
// its own resolution inline.
type Bruteforcer interface {
	Enabled() bool
	Run(ctx context.Context, rootDomains []string, dictionary []string, level int) ([]model.Domain, error)
}

// DomainPluginRunner runs every enabled dns_collection plugin against
// a root domain and returns discovered hostnames.
type DomainPluginRunner interface {
	RunDNSPlugins(ctx context.Context, rootDomain string) ([]string, error)
}

// Resolver resolves a hostname to A records (and CNAME/NS/MX, where
// available) without going through the packet bruteforcer.
type Resolver interface {
	Resolve(ctx context.Context, host string) (model.Domain, error)
}

// PortScanner shells out to (or otherwise drives) a port scanner
// against one IP and returns discovered open ports.
type PortScanner interface {
	Scan(ctx context.Context, ip string) ([]model.Port, error)
}

// PortPluginRunner runs enabled port_scan plugins against one IP.
type PortPluginRunner interface {
	RunPortPlugins(ctx context.Context, ip string) ([]model.Port, error)
}

// WebProber fetches one host:port as a website and returns its
// captured observation (status, headers, title, favicon, body,
// screenshot, TLS peer cert info).
type WebProber interface {
	Probe(ctx context.Context, targetURL string) (model.Website, error)
}

// FingerprintPluginRunner runs fingerprint plugins against a website
// and returns detected components.
type FingerprintPluginRunner interface {
	RunFingerprintPlugins(ctx context.Context, w model.Website) ([]model.WebComponent, error)
}

// APIExtractor extracts API endpoints referenced by a website's body
// and returns probe results for each.
type APIExtractor interface {
	Extract(ctx context.Context, w model.Website) ([]model.API, error)
}

// RiskScanner runs vulnerability plugins (and built-in scanners)
// against a website/API surface and returns discovered risks.
type RiskScanner interface {
	ScanWebsite(ctx context.Context, w model.Website) ([]model.Risk, error)
	ScanAPI(ctx context.Context, a model.API) ([]model.Risk, error)
}

// Capabilities bundles every optional subsystem the pipeline can call
// into. A nil field means that stage's corresponding sub-step is
// skipped entirely — the pipeline degrades gracefully rather than
// failing the whole task (mirrors §9's "raw-socket subsystem
// privileges" and "plugin runtime unavailable" degrade notes).
type Capabilities struct {
	DNSCollectors []DNSCollector
	Bruteforce    Bruteforcer
	DNSPlugins    DomainPluginRunner
	Resolver      Resolver
	PortScan      PortScanner
	PortPlugins   PortPluginRunner
	WebProbe      WebProber
	FingerprintP  FingerprintPluginRunner
	APIExtract    APIExtractor
	Risk          RiskScanner
}
