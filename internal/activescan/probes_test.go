package activescan

import (
	"strings"
	"testing"
)

const sampleProbes = `
# sample nmap-service-probes fragment
Probe TCP NULL q||
rarity 1
ports 21,22,23
match ftp m|^220.*FTP| p/FTP server/
match ssh m|^SSH-([\d.]+)-| p/OpenSSH/ v/$1/

Probe TCP GetRequest q|GET / HTTP/1.0\r\n\r\n|
rarity 3
ports 80,8080
sslports 443
totalwaitms 5000
tcpwrappedms 3000
fallback NULL
softmatch http m|^HTTP/1\.[01] \d\d\d| p/generic http/
`

func TestParseServiceProbes(t *testing.T) {
	sp, err := ParseServiceProbes(strings.NewReader(sampleProbes))
	if err != nil {
		t.Fatalf("ParseServiceProbes: %v", err)
	}
	if len(sp.probes) != 2 {
		t.Fatalf("expected 2 probes, got %d", len(sp.probes))
	}
	null := sp.probes[0]
	if null.name != "NULL" || null.rarity != 1 || len(null.matches) != 2 {
		t.Fatalf("unexpected NULL probe: %+v", null)
	}

	getReq := sp.probes[1]
	if getReq.totalWaitMS != 5000 || getReq.tcpWrappedMS != 3000 || getReq.fallback != "NULL" {
		t.Fatalf("unexpected GetRequest probe: %+v", getReq)
	}
	if len(getReq.sslPorts) != 1 || getReq.sslPorts[0] != 443 {
		t.Fatalf("expected sslports [443], got %v", getReq.sslPorts)
	}
	if !strings.Contains(string(getReq.payload), "GET / HTTP/1.0") {
		t.Fatalf("expected probe payload to contain the GET request, got %q", getReq.payload)
	}
}

func TestMatchAgainstCapturesVersion(t *testing.T) {
	sp, err := ParseServiceProbes(strings.NewReader(sampleProbes))
	if err != nil {
		t.Fatalf("ParseServiceProbes: %v", err)
	}
	m := matchAgainst(sp.probes[0].matches, "SSH-2.0-OpenSSH_9.6\r\n")
	if m == nil {
		t.Fatalf("expected a match")
	}
	if m.Service != "ssh" || m.Product != "OpenSSH" || m.Version != "2.0" {
		t.Fatalf("unexpected match: %+v", m)
	}
}

func TestMatchAgainstFallsBackToSoftmatch(t *testing.T) {
	sp, err := ParseServiceProbes(strings.NewReader(sampleProbes))
	if err != nil {
		t.Fatalf("ParseServiceProbes: %v", err)
	}
	// Only the softmatch directive is attached to the GetRequest probe.
	m := matchAgainst(sp.probes[1].matches, "HTTP/1.1 200 OK\r\n")
	if m == nil || m.Product != "generic http" {
		t.Fatalf("expected softmatch fallback, got %+v", m)
	}
}

func TestParsePortList(t *testing.T) {
	got := parsePortList("80,443,8000-8002")
	want := []int{80, 443, 8000, 8001, 8002}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestParsePortScanOutput(t *testing.T) {
	stdout := "1.2.3.4:80\n1.2.3.4:443\n8080/tcp open http-proxy\n\n"
	ports := parsePortScanOutput(stdout)
	if len(ports) != 3 {
		t.Fatalf("expected 3 ports, got %v", ports)
	}
	if ports[0].Port != 80 || ports[1].Port != 443 || ports[2].Port != 8080 {
		t.Fatalf("unexpected port values: %+v", ports)
	}
	if ports[2].Service != "http-proxy" {
		t.Fatalf("expected service field from the third column, got %q", ports[2].Service)
	}
}

func TestParseNucleiOutput(t *testing.T) {
	stdout := `{"template-id":"exposed-panel","info":{"name":"Exposed Admin Panel","severity":"high"},"matched-at":"https://example.test/admin"}
not-json
{"template-id":"weak-tls","info":{"name":"Weak TLS Config","severity":"medium"},"matched-at":"https://example.test"}`
	risks := parseNucleiOutput(stdout)
	if len(risks) != 2 {
		t.Fatalf("expected 2 risks (bad line skipped), got %d", len(risks))
	}
	if risks[0].Level != "high" || risks[0].RiskName != "Exposed Admin Panel" {
		t.Fatalf("unexpected first risk: %+v", risks[0])
	}
}

func TestExtractTitle(t *testing.T) {
	got := extractTitle("<html><head><TITLE>  Acme Corp  </TITLE></head></html>")
	if got != "Acme Corp" {
		t.Fatalf("expected trimmed title, got %q", got)
	}
	if extractTitle("<html></html>") != "" {
		t.Fatalf("expected empty title when absent")
	}
}
