package pluginrt

import (
	"context"
	"testing"

	"github.com/rshield/rshield/internal/model"
)

const dnsPluginScript = `
function get_manifest() {
	return {
		name: "static_subdomain_guess",
		type: "dns_collection",
		version: "1.0.0",
		description: "test dns plugin",
		author: "rshield",
		severity: "",
		references: [],
		params: [],
		result_fields: ["hostname"]
	};
}

function analyze(input) {
	return { matched: true, evidence: { hostname: "vpn." + input.Target } };
}
`

func TestDNSPluginRunnerCollectsHostnames(t *testing.T) {
	st := openTestStore(t)
	m := NewManager(st)
	if _, err := m.Upload(context.Background(), dnsPluginScript, "rshield", ""); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	runner := DNSPluginRunner{Manager: m}
	hosts, err := runner.RunDNSPlugins(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("RunDNSPlugins: %v", err)
	}
	if len(hosts) != 1 || hosts[0] != "vpn.example.com" {
		t.Fatalf("expected [vpn.example.com], got %+v", hosts)
	}
}

const portPluginScript = `
function get_manifest() {
	return {
		name: "static_port_guess",
		type: "port_scan",
		version: "1.0.0",
		description: "test port plugin",
		author: "rshield",
		severity: "",
		references: [],
		params: [],
		result_fields: ["port"]
	};
}

function analyze(input) {
	return { matched: true, evidence: { port: "8443", service: "https-alt" } };
}
`

func TestPortPluginRunnerCollectsPorts(t *testing.T) {
	st := openTestStore(t)
	m := NewManager(st)
	if _, err := m.Upload(context.Background(), portPluginScript, "rshield", ""); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	runner := PortPluginRunner{Manager: m}
	ports, err := runner.RunPortPlugins(context.Background(), "10.0.0.5")
	if err != nil {
		t.Fatalf("RunPortPlugins: %v", err)
	}
	if len(ports) != 1 || ports[0].Port != 8443 || ports[0].Service != "https-alt" {
		t.Fatalf("unexpected ports: %+v", ports)
	}
}

const fingerprintPluginScript = `
function get_manifest() {
	return {
		name: "static_component_guess",
		type: "fingerprint",
		version: "1.0.0",
		description: "test fingerprint plugin",
		author: "rshield",
		severity: "",
		references: [],
		params: [],
		result_fields: ["name"]
	};
}

function analyze(input) {
	return { matched: true, evidence: { name: "nginx", version: "1.25.0", category: "webserver" } };
}
`

func TestFingerprintPluginRunnerCollectsComponents(t *testing.T) {
	st := openTestStore(t)
	m := NewManager(st)
	if _, err := m.Upload(context.Background(), fingerprintPluginScript, "rshield", ""); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	runner := FingerprintPluginRunner{Manager: m}
	comps, err := runner.RunFingerprintPlugins(context.Background(), model.Website{URL: "https://target.example"})
	if err != nil {
		t.Fatalf("RunFingerprintPlugins: %v", err)
	}
	if len(comps) != 1 || comps[0].CompName != "nginx" || comps[0].CompVer != "1.25.0" {
		t.Fatalf("unexpected components: %+v", comps)
	}
}
