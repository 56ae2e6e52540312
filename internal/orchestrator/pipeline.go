package orchestrator

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"

	"github.com/rshield/rshield/internal/model"
	"github.com/rshield/rshield/internal/store"
)

// pipeline drives the 12-stage reconnaissance pipeline (spec §4.1) for
// one ScanTask. One pipeline value is constructed per tick; it holds
// no state across runs.
type pipeline struct {
	taskID int64
	store  *store.Store
	caps   Capabilities
	cfg    model.CoreConfig
	reg    *registry
}

func (p *pipeline) setStatus(status model.ScanTaskStatus) {
	p.reg.setStatus(p.taskID, status)
	if err := p.store.SetTaskStatus(p.taskID, status); err != nil {
		log.Printf("[orchestrator] task %d: persist status %s: %v", p.taskID, status, err)
	}
}

// run executes every stage in order. A failure inside one stage is
// logged and that stage's persistence step is simply skipped — the
// pipeline continues to the next stage (spec §4.1 contract). The one
// exception is stage 1: if the root domains cannot be loaded, the run
// is logged and ends there.
func (p *pipeline) run(ctx context.Context) {
	// Stage 1: load root domains under the registry lock boundary; the
	// lock itself is the store's own connection pool (already a
	// snapshot-then-release by construction — no network I/O is
	// performed while any in-memory mutex is held).
	roots, err := p.store.GetRootDomains(p.taskID)
	if err != nil {
		log.Printf("[orchestrator] task %d: load root domains: %v", p.taskID, err)
		return
	}
	if len(roots) == 0 {
		p.setStatus(model.StatusWait)
		return
	}
	rootNames := make([]string, 0, len(roots))
	for _, r := range roots {
		rootNames = append(rootNames, r.Domain)
	}

	discovered := p.stageCollectDomains(ctx, rootNames)
	p.setStatus(model.StatusCollectingIPs)
	ips := p.stageResolveIPs(ctx, discovered)

	p.setStatus(model.StatusScanningPorts)
	p.stageScanPorts(ctx, ips)

	p.setStatus(model.StatusScanningWebsites)
	websites := p.stageScanWebsites(ctx, ips)

	p.stageFingerprint(ctx, websites)
	p.stageExtractAPIs(ctx, websites)

	p.setStatus(model.StatusScanningRisks)
	p.stageScanRisks(ctx, websites)

	p.setStatus(model.StatusWait)
}

// stageCollectDomains implements stages 2-5: external collectors,
// optional packet bruteforce, optional dns_collection plugins, then a
// single batched upsert.
func (p *pipeline) stageCollectDomains(ctx context.Context, rootNames []string) []model.Domain {
	p.setStatus(model.StatusCollectingDomain)

	found := make(map[string]model.Domain)
	addHost := func(host, source string) {
		host = strings.ToLower(strings.TrimSuffix(host, "."))
		if host == "" {
			return
		}
		if existing, ok := found[host]; ok {
			_ = existing
			return
		}
		found[host] = model.Domain{TaskID: p.taskID, Domain: host, SourceTag: source}
	}

	for _, root := range rootNames {
		for _, collector := range p.caps.DNSCollectors {
			hosts, err := collector.Collect(ctx, root)
			if err != nil {
				log.Printf("[orchestrator] task %d: dns collector failed for %s: %v", p.taskID, root, err)
				continue
			}
			for _, h := range hosts {
				addHost(h, "collector")
			}
		}
	}

	if p.cfg.DNSBruteEnabled && p.caps.Bruteforce != nil && p.caps.Bruteforce.Enabled() {
		dict := strings.Fields(p.cfg.SubdomainDict)
		records, err := p.caps.Bruteforce.Run(ctx, rootNames, dict, p.cfg.SubdomainLevel)
		if err != nil {
			log.Printf("[orchestrator] task %d: packet bruteforce failed: %v", p.taskID, err)
		}
		for _, d := range records {
			d.TaskID = p.taskID
			d.SourceTag = "bruteforce"
			found[strings.ToLower(d.Domain)] = d
		}
	}

	if p.cfg.DNSPluginEnabled && p.caps.DNSPlugins != nil {
		for _, root := range rootNames {
			hosts, err := p.caps.DNSPlugins.RunDNSPlugins(ctx, root)
			if err != nil {
				log.Printf("[orchestrator] task %d: dns plugins failed for %s: %v", p.taskID, root, err)
				continue
			}
			for _, h := range hosts {
				addHost(h, "plugin")
			}
		}
	}

	domains := make([]model.Domain, 0, len(found))
	for _, d := range found {
		domains = append(domains, d)
	}
	if len(domains) > 0 {
		if err := p.store.UpsertDomains(p.taskID, domains); err != nil {
			log.Printf("[orchestrator] task %d: persist domains: %v", p.taskID, err)
		}
	}
	return domains
}

// stageResolveIPs implements stage 6: resolve each subdomain with
// exactly one A record to a single IP.
func (p *pipeline) stageResolveIPs(ctx context.Context, domains []model.Domain) []model.IP {
	threads := threadCount(p.cfg.ThreadNum)

	resolved := runPoolCollect(domains, threads, func(d model.Domain) []model.IP {
		a := d.A
		if len(a) == 0 && p.caps.Resolver != nil {
			if rec, err := p.caps.Resolver.Resolve(ctx, d.Domain); err == nil {
				a = rec.A
			}
		}
		if len(a) != 1 {
			return nil
		}
		ip := net.ParseIP(a[0])
		if ip == nil {
			return nil
		}
		return []model.IP{{TaskID: p.taskID, IPAddr: ip.String()}}
	})

	out := make([]model.IP, 0, len(resolved))
	for _, ip := range resolved {
		id, err := p.store.UpsertIP(ip)
		if err != nil {
			log.Printf("[orchestrator] task %d: persist ip %s: %v", p.taskID, ip.IPAddr, err)
			continue
		}
		ip.ID = id
		out = append(out, ip)
	}
	return out
}

// stageScanPorts implements stage 7.
func (p *pipeline) stageScanPorts(ctx context.Context, ips []model.IP) {
	if p.caps.PortScan == nil && p.caps.PortPlugins == nil {
		return
	}
	threads := threadCount(p.cfg.ThreadNum)

	runPool(ips, threads, func(ip model.IP) {
		var ports []model.Port
		if p.caps.PortScan != nil {
			found, err := p.caps.PortScan.Scan(ctx, ip.IPAddr)
			if err != nil {
				log.Printf("[orchestrator] task %d: port scan %s: %v", p.taskID, ip.IPAddr, err)
			} else {
				ports = append(ports, found...)
			}
		}
		if p.cfg.PortScanPluginEnabled && p.caps.PortPlugins != nil {
			found, err := p.caps.PortPlugins.RunPortPlugins(ctx, ip.IPAddr)
			if err != nil {
				log.Printf("[orchestrator] task %d: port plugins %s: %v", p.taskID, ip.IPAddr, err)
			} else {
				ports = append(ports, found...)
			}
		}
		if len(ports) == 0 {
			return
		}
		for i := range ports {
			ports[i].TaskID = p.taskID
			ports[i].IPID = ip.ID
		}
		if err := p.store.UpsertPorts(p.taskID, ip.ID, ports); err != nil {
			log.Printf("[orchestrator] task %d: persist ports for %s: %v", p.taskID, ip.IPAddr, err)
		}
	})
}

// stageScanWebsites implements stage 8.
func (p *pipeline) stageScanWebsites(ctx context.Context, ips []model.IP) []model.Website {
	if p.caps.WebProbe == nil {
		return nil
	}

	ports, err := p.allOpenPorts(ips)
	if err != nil {
		log.Printf("[orchestrator] task %d: load ports for website stage: %v", p.taskID, err)
		return nil
	}

	threads := threadCount(p.cfg.ThreadNum)
	websites := runPoolCollect(ports, threads, func(target string) []model.Website {
		w, err := p.caps.WebProbe.Probe(ctx, target)
		if err != nil {
			log.Printf("[orchestrator] task %d: probe %s: %v", p.taskID, target, err)
			return nil
		}
		w.TaskID = p.taskID
		id, err := p.store.UpsertWebsite(w)
		if err != nil {
			log.Printf("[orchestrator] task %d: persist website %s: %v", p.taskID, target, err)
			return nil
		}
		w.ID = id
		return []model.Website{w}
	})
	return websites
}

// allOpenPorts expands each IP's discovered ports into scannable
// targets, falling back to the default web ports when none were
// recorded (e.g. the port-scan stage was skipped).
func (p *pipeline) allOpenPorts(ips []model.IP) ([]string, error) {
	var targets []string
	for _, ip := range ips {
		ports, err := p.store.GetPortsForIP(ip.ID)
		if err != nil {
			return nil, err
		}
		if len(ports) == 0 {
			targets = append(targets, fmt.Sprintf("http://%s/", ip.IPAddr), fmt.Sprintf("https://%s/", ip.IPAddr))
			continue
		}
		for _, port := range ports {
			scheme := "http"
			if port.Port == 443 || port.Port == 8443 {
				scheme = "https"
			}
			targets = append(targets, fmt.Sprintf("%s://%s:%d/", scheme, ip.IPAddr, port.Port))
		}
	}
	return targets, nil
}

// stageFingerprint implements stage 9.
func (p *pipeline) stageFingerprint(ctx context.Context, websites []model.Website) {
	if !p.cfg.FingerprintPluginEnabled || p.caps.FingerprintP == nil {
		return
	}
	threads := threadCount(p.cfg.ThreadNum)
	runPool(websites, threads, func(w model.Website) {
		comps, err := p.caps.FingerprintP.RunFingerprintPlugins(ctx, w)
		if err != nil {
			log.Printf("[orchestrator] task %d: fingerprint %s: %v", p.taskID, w.URL, err)
			return
		}
		for _, c := range comps {
			c.TaskID = p.taskID
			c.Website = w.URL
			if err := p.store.UpsertWebComponent(c); err != nil {
				log.Printf("[orchestrator] task %d: persist component for %s: %v", p.taskID, w.URL, err)
			}
		}
	})
}

// stageExtractAPIs implements stage 10.
func (p *pipeline) stageExtractAPIs(ctx context.Context, websites []model.Website) {
	if p.caps.APIExtract == nil {
		return
	}
	threads := threadCount(p.cfg.ThreadNum)
	runPool(websites, threads, func(w model.Website) {
		apis, err := p.caps.APIExtract.Extract(ctx, w)
		if err != nil {
			log.Printf("[orchestrator] task %d: extract apis %s: %v", p.taskID, w.URL, err)
			return
		}
		for _, a := range apis {
			a.TaskID = p.taskID
			if a.HandleStatus == "" {
				a.HandleStatus = model.APIUntriaged
			}
			if _, err := p.store.UpsertAPI(a); err != nil {
				log.Printf("[orchestrator] task %d: persist api %s: %v", p.taskID, a.URL, err)
			}
		}
	})
}

// stageScanRisks implements stage 11.
func (p *pipeline) stageScanRisks(ctx context.Context, websites []model.Website) {
	if !p.cfg.RiskScanPluginEnabled || p.caps.Risk == nil {
		return
	}
	threads := threadCount(p.cfg.ThreadNum)
	runPool(websites, threads, func(w model.Website) {
		risks, err := p.caps.Risk.ScanWebsite(ctx, w)
		if err != nil {
			log.Printf("[orchestrator] task %d: risk scan %s: %v", p.taskID, w.URL, err)
			return
		}
		for _, r := range risks {
			r.TaskID = p.taskID
			if _, err := p.store.AddRisk(r); err != nil {
				log.Printf("[orchestrator] task %d: persist risk for %s: %v", p.taskID, w.URL, err)
			}
		}
	})

	apis, err := p.store.GetAPIs(p.taskID, "")
	if err != nil {
		log.Printf("[orchestrator] task %d: load apis for risk scan: %v", p.taskID, err)
		return
	}
	runPool(apis, threads, func(a model.API) {
		risks, err := p.caps.Risk.ScanAPI(ctx, a)
		if err != nil {
			log.Printf("[orchestrator] task %d: api risk scan %s: %v", p.taskID, a.URL, err)
			return
		}
		for _, r := range risks {
			r.TaskID = p.taskID
			if _, err := p.store.AddRisk(r); err != nil {
				log.Printf("[orchestrator] task %d: persist risk for api %s: %v", p.taskID, a.URL, err)
			}
		}
	})
}

func threadCount(n int) int {
	if n <= 0 {
		return 10
	}
	return n
}
