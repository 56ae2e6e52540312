package pluginrt

import (
	"context"
	"strconv"

	"github.com/rshield/rshield/internal/model"
)

// The three adapters below satisfy the orchestrator's
// DomainPluginRunner/PortPluginRunner/FingerprintPluginRunner
// interfaces by running every enabled plugin of the matching type
// against one target and translating each matched AnalyzeResult's
// Evidence map into the pipeline's native shape. A plugin that wants
// to report a discovered hostname/port/component sets the
// corresponding Evidence key; anything else is ignored for that
// runner so one plugin can, in principle, carry fields useful to more
// than one stage without conflicting.

// DNSPluginRunner runs dns_collection plugins for the orchestrator's
// DomainPluginRunner stage.
type DNSPluginRunner struct{ Manager *Manager }

// RunDNSPlugins implements orchestrator.DomainPluginRunner.
func (r DNSPluginRunner) RunDNSPlugins(ctx context.Context, rootDomain string) ([]string, error) {
	plugins, err := r.Manager.Enabled(model.PluginDNSCollection)
	if err != nil {
		return nil, err
	}
	var hosts []string
	for _, p := range plugins {
		results, err := r.Manager.Analyze(ctx, model.PluginDNSCollection, p.Name, AnalyzeInput{Target: rootDomain})
		if err != nil {
			continue
		}
		for _, res := range results {
			if !res.Matched {
				continue
			}
			if host := res.Evidence["hostname"]; host != "" {
				hosts = append(hosts, host)
			}
		}
	}
	return hosts, nil
}

// PortPluginRunner runs port_scan plugins for the orchestrator's
// PortPluginRunner stage.
type PortPluginRunner struct{ Manager *Manager }

// RunPortPlugins implements orchestrator.PortPluginRunner.
func (r PortPluginRunner) RunPortPlugins(ctx context.Context, ip string) ([]model.Port, error) {
	plugins, err := r.Manager.Enabled(model.PluginPortScan)
	if err != nil {
		return nil, err
	}
	var ports []model.Port
	for _, p := range plugins {
		results, err := r.Manager.Analyze(ctx, model.PluginPortScan, p.Name, AnalyzeInput{Target: ip})
		if err != nil {
			continue
		}
		for _, res := range results {
			if !res.Matched {
				continue
			}
			portNum, err := strconv.Atoi(res.Evidence["port"])
			if err != nil {
				continue
			}
			ports = append(ports, model.Port{
				Port:    portNum,
				Service: res.Evidence["service"],
			})
		}
	}
	return ports, nil
}

// FingerprintPluginRunner runs fingerprint plugins for the
// orchestrator's FingerprintPluginRunner stage.
type FingerprintPluginRunner struct{ Manager *Manager }

// RunFingerprintPlugins implements orchestrator.FingerprintPluginRunner.
func (r FingerprintPluginRunner) RunFingerprintPlugins(ctx context.Context, w model.Website) ([]model.WebComponent, error) {
	plugins, err := r.Manager.Enabled(model.PluginFingerprint)
	if err != nil {
		return nil, err
	}
	var comps []model.WebComponent
	for _, p := range plugins {
		results, err := r.Manager.Analyze(ctx, model.PluginFingerprint, p.Name, AnalyzeInput{Target: w.URL})
		if err != nil {
			continue
		}
		for _, res := range results {
			if !res.Matched {
				continue
			}
			name := res.Evidence["name"]
			if name == "" {
				continue
			}
			confidence, _ := strconv.Atoi(res.Evidence["confidence"])
			comps = append(comps, model.WebComponent{
				Website:    w.URL,
				CompName:   name,
				CompVer:    res.Evidence["version"],
				CType:      res.Evidence["type"],
				Category:   res.Evidence["category"],
				Confidence: confidence,
			})
		}
	}
	return comps, nil
}
