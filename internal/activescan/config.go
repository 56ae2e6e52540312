package activescan

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rshield/rshield/internal/model"
)

// ScanType selects which stage sequence an ad-hoc active scan runs
// (spec §4.5), independent of the continuous-monitoring pipeline
// orchestrator.Orchestrator drives per task.
type ScanType string

const (
	ScanFull   ScanType = "full"   // port scan + web probe + nuclei
	ScanQuick  ScanType = "quick"  // port scan + web probe only
	ScanCustom ScanType = "custom" // DetailedScanOptions picks the stages
	ScanNuclei ScanType = "nuclei" // nuclei only
)

// TargetType classifies one configured scan target string.
type TargetType string

const (
	TargetWebsite TargetType = "website"
	TargetIP      TargetType = "ip"
	TargetIPRange TargetType = "ip_range"
	TargetDomain  TargetType = "domain"
	TargetUnknown TargetType = "unknown"
)

const (
	minThreads     = 1
	maxThreads     = 100
	minTimeoutSecs = 1
	maxTimeoutSecs = 300

	defaultThreads     = 10
	defaultTimeoutSecs = 30
)

// DetailedScanOptions narrows a ScanCustom run to specific stages.
// Ignored for every other ScanType.
type DetailedScanOptions struct {
	PortScan bool
	WebProbe bool
	Nuclei   bool
}

// ScanConfig is the start_active_scan configuration contract (spec
// §4.5): one or more targets of mixed type, a scan strategy, and
// resource/output controls.
type ScanConfig struct {
	Targets             []string
	ScanType            ScanType
	Threads             int
	TimeoutSecs         int
	SaveResults         bool
	ResultsPath         string
	DetailedScanOptions DetailedScanOptions
}

// Normalize defaults non-positive Threads/TimeoutSecs and clamps both
// to spec §8's boundary invariant (threads [1,100], timeout [1,300]s).
func (c *ScanConfig) Normalize() {
	if c.Threads <= 0 {
		c.Threads = defaultThreads
	}
	c.Threads = clampInt(c.Threads, minThreads, maxThreads)

	if c.TimeoutSecs <= 0 {
		c.TimeoutSecs = defaultTimeoutSecs
	}
	c.TimeoutSecs = clampInt(c.TimeoutSecs, minTimeoutSecs, maxTimeoutSecs)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClassifyTarget buckets one configured target into the taxonomy the
// active-scan engine dispatches on.
func ClassifyTarget(target string) TargetType {
	t := strings.TrimSpace(target)
	if t == "" {
		return TargetUnknown
	}
	if strings.Contains(t, "://") {
		return TargetWebsite
	}
	if host := t; strings.Contains(host, "/") {
		if _, _, err := net.ParseCIDR(host); err == nil {
			return TargetIPRange
		}
		return TargetUnknown
	}
	if strings.Contains(t, "-") {
		bounds := strings.SplitN(t, "-", 2)
		if len(bounds) == 2 && net.ParseIP(strings.TrimSpace(bounds[0])) != nil {
			return TargetIPRange
		}
	}
	if net.ParseIP(t) != nil {
		return TargetIP
	}
	if looksLikeDomain(t) {
		return TargetDomain
	}
	return TargetUnknown
}

func looksLikeDomain(s string) bool {
	if !strings.Contains(s, ".") {
		return false
	}
	for _, label := range strings.Split(s, ".") {
		if label == "" {
			return false
		}
		for _, r := range label {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-') {
				return false
			}
		}
	}
	return true
}

// expandIPRange enumerates every address a CIDR or "start-end" range
// names. Bounded ranges only — an unbounded or malformed range yields
// no addresses rather than erroring the whole scan.
func expandIPRange(target string) []string {
	if ip, ipnet, err := net.ParseCIDR(target); err == nil {
		var ips []string
		for cur := ip.Mask(ipnet.Mask); ipnet.Contains(cur); incIP(cur) {
			ips = append(ips, cur.String())
			if len(ips) > 65536 {
				break
			}
		}
		return ips
	}

	bounds := strings.SplitN(target, "-", 2)
	if len(bounds) != 2 {
		return nil
	}
	start := net.ParseIP(strings.TrimSpace(bounds[0])).To4()
	end := net.ParseIP(strings.TrimSpace(bounds[1])).To4()
	if start == nil || end == nil {
		return nil
	}
	var ips []string
	for cur := append(net.IP{}, start...); ; incIP(cur) {
		ips = append(ips, cur.String())
		if cur.Equal(end) || len(ips) > 65536 {
			break
		}
	}
	return ips
}

func timeoutContext(ctx context.Context, secs int) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(secs)*time.Second)
}

func incIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			return
		}
	}
}

// Report collects every observation an ad-hoc active scan produced
// across its configured targets.
type Report struct {
	Ports    map[string][]model.Port  // keyed by IP
	Websites []model.Website
	Risks    []model.Risk
}

// Engine runs ScanConfig-driven ad-hoc active scans against arbitrary
// operator-supplied targets, dispatching each classified target to the
// matching concrete scanner (spec §4.5). This is distinct from
// orchestrator.Orchestrator's per-task continuous monitoring pipeline,
// which always runs its full collect→resolve→port-scan→fingerprint→
// extract→risk-scan chain against a task's known inventory.
type Engine struct {
	PortScan *PortScanner
	WebProbe *WebProber
	Nuclei   *NucleiScanner
}

// Run classifies and clamps cfg, then fans each target out to the
// stages ScanType selects, bounded to cfg.Threads concurrent targets.
func (e *Engine) Run(ctx context.Context, cfg ScanConfig) (Report, error) {
	cfg.Normalize()

	report := Report{Ports: make(map[string][]model.Port)}
	var mu sync.Mutex
	sem := semaphore.NewWeighted(int64(cfg.Threads))
	var wg sync.WaitGroup

	runPortScan, runWebProbe, runNuclei := e.stagesFor(cfg)

	for _, target := range cfg.Targets {
		kind := ClassifyTarget(target)
		ips := []string{target}
		if kind == TargetIPRange {
			ips = expandIPRange(target)
		}

		for _, ip := range ips {
			if err := sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return report, fmt.Errorf("activescan: acquire worker slot: %w", err)
			}
			wg.Add(1)
			go func(target, ip string, kind TargetType) {
				defer wg.Done()
				defer sem.Release(1)
				e.scanOne(ctx, cfg, target, ip, kind, runPortScan, runWebProbe, runNuclei, &mu, &report)
			}(target, ip, kind)
		}
	}
	wg.Wait()
	return report, nil
}

func (e *Engine) stagesFor(cfg ScanConfig) (portScan, webProbe, nuclei bool) {
	switch cfg.ScanType {
	case ScanQuick:
		return true, true, false
	case ScanNuclei:
		return false, false, true
	case ScanCustom:
		o := cfg.DetailedScanOptions
		return o.PortScan, o.WebProbe, o.Nuclei
	default: // ScanFull and unrecognized values default to everything
		return true, true, true
	}
}

func (e *Engine) scanOne(
	ctx context.Context,
	cfg ScanConfig,
	target, ip string,
	kind TargetType,
	runPortScan, runWebProbe, runNuclei bool,
	mu *sync.Mutex,
	report *Report,
) {
	ctx, cancel := timeoutContext(ctx, cfg.TimeoutSecs)
	defer cancel()

	if runPortScan && e.PortScan != nil && (kind == TargetIP || kind == TargetIPRange) {
		if ports, err := e.PortScan.Scan(ctx, ip); err == nil {
			mu.Lock()
			report.Ports[ip] = ports
			mu.Unlock()
		}
	}

	probeURL := target
	if kind == TargetDomain {
		probeURL = "http://" + target
	}
	if runWebProbe && e.WebProbe != nil && (kind == TargetWebsite || kind == TargetDomain) {
		if w, err := e.WebProbe.Probe(ctx, probeURL); err == nil {
			mu.Lock()
			report.Websites = append(report.Websites, w)
			mu.Unlock()
		}
	}

	if runNuclei && e.Nuclei != nil && (kind == TargetWebsite || kind == TargetDomain || kind == TargetIP) {
		nucleiTarget := target
		if kind == TargetDomain {
			nucleiTarget = probeURL
		}
		if risks, err := e.Nuclei.ScanNuclei(ctx, nucleiTarget); err == nil {
			mu.Lock()
			report.Risks = append(report.Risks, risks...)
			mu.Unlock()
		}
	}
}
