package activescan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rshield/rshield/internal/cmdrunner"
	"github.com/rshield/rshield/internal/model"
)

func TestClassifyTarget(t *testing.T) {
	cases := []struct {
		target string
		want   TargetType
	}{
		{"https://example.test/path", TargetWebsite},
		{"http://example.test", TargetWebsite},
		{"10.0.0.1", TargetIP},
		{"10.0.0.0/24", TargetIPRange},
		{"10.0.0.1-10.0.0.10", TargetIPRange},
		{"example.test", TargetDomain},
		{"sub.example.test", TargetDomain},
		{"", TargetUnknown},
		{"not a target!!", TargetUnknown},
	}
	for _, tc := range cases {
		if got := ClassifyTarget(tc.target); got != tc.want {
			t.Errorf("ClassifyTarget(%q) = %s, want %s", tc.target, got, tc.want)
		}
	}
}

func TestScanConfigNormalizeClampsThreadsAndTimeout(t *testing.T) {
	cases := []struct {
		name        string
		in          ScanConfig
		wantThreads int
		wantTimeout int
	}{
		{"zero values default", ScanConfig{}, defaultThreads, defaultTimeoutSecs},
		{"negative values default", ScanConfig{Threads: -5, TimeoutSecs: -1}, defaultThreads, defaultTimeoutSecs},
		{"above maximum clamps down", ScanConfig{Threads: 1000, TimeoutSecs: 10000}, maxThreads, maxTimeoutSecs},
		{"in range passes through", ScanConfig{Threads: 50, TimeoutSecs: 60}, 50, 60},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.in
			cfg.Normalize()
			if cfg.Threads != tc.wantThreads {
				t.Errorf("Threads = %d, want %d", cfg.Threads, tc.wantThreads)
			}
			if cfg.TimeoutSecs != tc.wantTimeout {
				t.Errorf("TimeoutSecs = %d, want %d", cfg.TimeoutSecs, tc.wantTimeout)
			}
		})
	}
}

func TestExpandIPRangeCIDR(t *testing.T) {
	ips := expandIPRange("192.0.2.0/30")
	want := []string{"192.0.2.0", "192.0.2.1", "192.0.2.2", "192.0.2.3"}
	if len(ips) != len(want) {
		t.Fatalf("expected %d addresses, got %d: %v", len(want), len(ips), ips)
	}
	for i := range want {
		if ips[i] != want[i] {
			t.Errorf("ips[%d] = %s, want %s", i, ips[i], want[i])
		}
	}
}

func TestExpandIPRangeDashed(t *testing.T) {
	ips := expandIPRange("192.0.2.1-192.0.2.3")
	want := []string{"192.0.2.1", "192.0.2.2", "192.0.2.3"}
	if len(ips) != len(want) {
		t.Fatalf("expected %d addresses, got %d: %v", len(want), len(ips), ips)
	}
	for i := range want {
		if ips[i] != want[i] {
			t.Errorf("ips[%d] = %s, want %s", i, ips[i], want[i])
		}
	}
}

type fakeRunner struct {
	stdout string
}

func (f fakeRunner) Run(ctx context.Context, name string, args ...string) (cmdrunner.Result, error) {
	return cmdrunner.Result{Stdout: f.stdout}, nil
}

func TestEngineRunDispatchesWebsiteToWebProbeOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><title>ok</title></html>"))
	}))
	defer srv.Close()

	e := &Engine{
		PortScan: &PortScanner{Runner: fakeRunner{stdout: "80/tcp open http"}},
		WebProbe: &WebProber{Client: srv.Client()},
	}
	cfg := ScanConfig{Targets: []string{srv.URL}, ScanType: ScanQuick}
	report, err := e.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Websites) != 1 {
		t.Fatalf("expected 1 website result, got %d", len(report.Websites))
	}
	if len(report.Ports) != 0 {
		t.Errorf("expected no port scan results for a website target, got %v", report.Ports)
	}
}

func TestEngineRunDispatchesIPToPortScanOnly(t *testing.T) {
	e := &Engine{
		PortScan: &PortScanner{Runner: fakeRunner{stdout: "22/tcp open ssh\n80/tcp open http"}},
		WebProbe: &WebProber{},
	}
	cfg := ScanConfig{Targets: []string{"198.51.100.5"}, ScanType: ScanQuick}
	report, err := e.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	ports, ok := report.Ports["198.51.100.5"]
	if !ok || len(ports) != 2 {
		t.Fatalf("expected 2 ports for 198.51.100.5, got %+v", report.Ports)
	}
	if len(report.Websites) != 0 {
		t.Errorf("expected no web probe results for an IP target, got %v", report.Websites)
	}
}

func TestEngineRunExpandsIPRange(t *testing.T) {
	e := &Engine{
		PortScan: &PortScanner{Runner: fakeRunner{stdout: "80/tcp open http"}},
	}
	cfg := ScanConfig{Targets: []string{"198.51.100.0/30"}, ScanType: ScanQuick, Threads: 4}
	report, err := e.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Ports) != 4 {
		t.Fatalf("expected 4 scanned addresses, got %d: %+v", len(report.Ports), report.Ports)
	}
}

func TestEngineRunNucleiOnlyScanType(t *testing.T) {
	nucleiJSON := `{"template-id":"t1","info":{"name":"Test Finding","severity":"high"},"matched-at":"https://x"}`
	e := &Engine{
		PortScan: &PortScanner{Runner: fakeRunner{stdout: "80/tcp open http"}},
		Nuclei:   &NucleiScanner{Runner: fakeRunner{stdout: nucleiJSON}},
	}
	cfg := ScanConfig{Targets: []string{"https://x.test"}, ScanType: ScanNuclei}
	report, err := e.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Risks) != 1 || report.Risks[0].Level != model.RiskHigh {
		t.Fatalf("expected 1 high risk finding, got %+v", report.Risks)
	}
	if len(report.Ports) != 0 {
		t.Errorf("expected nuclei-only scan type to skip port scan, got %v", report.Ports)
	}
}

func TestEngineRunCustomScanTypeRespectsDetailedOptions(t *testing.T) {
	e := &Engine{
		PortScan: &PortScanner{Runner: fakeRunner{stdout: "80/tcp open http"}},
	}
	cfg := ScanConfig{
		Targets:             []string{"198.51.100.9"},
		ScanType:            ScanCustom,
		DetailedScanOptions: DetailedScanOptions{PortScan: false, WebProbe: false, Nuclei: false},
	}
	report, err := e.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Ports) != 0 {
		t.Fatalf("expected no stages to run when DetailedScanOptions disables everything, got %+v", report.Ports)
	}
}
