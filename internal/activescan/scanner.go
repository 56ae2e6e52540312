package activescan

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rshield/rshield/internal/cmdrunner"
	"github.com/rshield/rshield/internal/errs"
	"github.com/rshield/rshield/internal/model"
)

// PortScanner delegates port scanning to an external fast-scanner
// binary (e.g. naabu/masscan-style) through cmdrunner.Runner, per spec
// §4.5's "delegated to an external fast scanner binary". Output is
// expected one port per line ("1.2.3.4:80", "80", or "80/tcp open
// http", the service taken from the third column) — the concrete binary's
// exact flags are a deployment concern, not this package's.
type PortScanner struct {
	Runner  cmdrunner.Runner
	Binary  string // defaults to "naabu" if empty
	Args    []string
	Probes  *ServiceProbes // optional nmap-service-probes directives for version capture
	Timeout time.Duration
}

// Scan implements orchestrator.PortScanner.
func (s PortScanner) Scan(ctx context.Context, ip string) ([]model.Port, error) {
	binary := s.Binary
	if binary == "" {
		binary = "naabu"
	}
	args := append(append([]string{}, s.Args...), "-host", ip, "-silent")

	res, err := s.Runner.Run(ctx, binary, args...)
	if err != nil && res.Stdout == "" {
		return nil, fmt.Errorf("activescan: port scan %s: %w", ip, err)
	}

	ports := parsePortScanOutput(res.Stdout)
	if s.Probes != nil {
		for i := range ports {
			if match := s.Probes.Identify(ctx, ip, ports[i].Port, s.Timeout); match != nil {
				ports[i].Service = match.Service
				ports[i].Version = match.VersionInfo
			}
		}
	}
	return ports, nil
}

func parsePortScanOutput(stdout string) []model.Port {
	var ports []model.Port
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// Accept "1.2.3.4:80", "80", or "80/tcp open http".
		fields := strings.Fields(line)
		portField := fields[0]
		if idx := strings.LastIndex(portField, ":"); idx >= 0 {
			portField = portField[idx+1:]
		}
		portField = strings.SplitN(portField, "/", 2)[0]
		port, err := strconv.Atoi(portField)
		if err != nil {
			continue
		}
		service := ""
		if len(fields) >= 3 {
			service = fields[2]
		}
		ports = append(ports, model.Port{Port: port, Service: service})
	}
	return ports
}

// WebProber implements orchestrator.WebProber with a plain HTTP(S)
// GET: status, headers, title (crude tag scrape), and a best-effort
// SSLInfo summary for TLS targets.
type WebProber struct {
	Client        *http.Client
	Fingerprinter *Fingerprinter // optional; nil disables the built-in tech guess
}

// Probe implements orchestrator.WebProber.
func (p WebProber) Probe(ctx context.Context, targetURL string) (model.Website, error) {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return model.Website{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return model.Website{}, errs.Wrap(errs.IO, fmt.Sprintf("probe %s", targetURL), err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	w := model.Website{
		URL:          targetURL,
		BaseURL:      targetURL,
		StatusCode:   resp.StatusCode,
		Title:        extractTitle(string(body)),
		Headers:      headers,
		Fingerprints: p.Fingerprinter.Fingerprint(resp.Header, body),
	}
	if resp.TLS != nil {
		w.SSLInfo = summarizeTLS(resp.TLS)
	}
	return w, nil
}

func extractTitle(body string) string {
	lower := strings.ToLower(body)
	start := strings.Index(lower, "<title>")
	if start < 0 {
		return ""
	}
	start += len("<title>")
	end := strings.Index(lower[start:], "</title>")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(body[start : start+end])
}

func summarizeTLS(state *tls.ConnectionState) string {
	if len(state.PeerCertificates) == 0 {
		return ""
	}
	cert := state.PeerCertificates[0]
	return fmt.Sprintf("subject=%s issuer=%s notAfter=%s", cert.Subject, cert.Issuer, cert.NotAfter.Format("2006-01-02"))
}

// NucleiScanner shells out to a nuclei-style runner and parses its
// JSON-lines output into Risk rows, per spec §4.5's
// "for scan_type=nuclei the engine shells out to a nuclei-style
// runner and parses its JSON output into Risk rows".
type NucleiScanner struct {
	Runner cmdrunner.Runner
	Binary string // defaults to "nuclei"
	Args   []string
}

type nucleiFinding struct {
	TemplateID string `json:"template-id"`
	Info       struct {
		Name     string `json:"name"`
		Severity string `json:"severity"`
	} `json:"info"`
	MatchedAt  string `json:"matched-at"`
	ExtractedResults []string `json:"extracted-results"`
}

// ScanNuclei runs the configured nuclei binary against target and
// returns its findings as Risk rows.
func (n NucleiScanner) ScanNuclei(ctx context.Context, target string) ([]model.Risk, error) {
	binary := n.Binary
	if binary == "" {
		binary = "nuclei"
	}
	args := append(append([]string{}, n.Args...), "-target", target, "-jsonl", "-silent")

	res, err := n.Runner.Run(ctx, binary, args...)
	if err != nil && res.Stdout == "" {
		return nil, fmt.Errorf("activescan: nuclei scan %s: %w", target, err)
	}
	return parseNucleiOutput(res.Stdout), nil
}

func parseNucleiOutput(stdout string) []model.Risk {
	var risks []model.Risk
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var finding nucleiFinding
		if err := json.Unmarshal([]byte(line), &finding); err != nil {
			continue
		}
		detail := finding.MatchedAt
		if len(finding.ExtractedResults) > 0 {
			detail = detail + " " + strings.Join(finding.ExtractedResults, ", ")
		}
		risks = append(risks, model.Risk{
			RiskName:  finding.Info.Name,
			RiskType:  finding.TemplateID,
			Level:     mapNucleiSeverity(finding.Info.Severity),
			Status:    model.RiskOpen,
			Detail:    detail,
			SourceTag: "nuclei",
		})
	}
	return risks
}

func mapNucleiSeverity(severity string) model.RiskLevel {
	switch strings.ToLower(severity) {
	case "critical":
		return model.RiskCritical
	case "high":
		return model.RiskHigh
	case "medium":
		return model.RiskMedium
	case "low":
		return model.RiskLow
	default:
		return model.RiskInfo
	}
}
