// Package collect implements external DNS and certificate-transparency
// collectors: non-fatal HTTP scrapers that return candidate hostnames
// for a root domain (spec §4.1 stage 2).
package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	crtshURLFormat  = "https://crt.sh/?q=%%25.%s&output=json"
	crtshTimeout    = 30 * time.Second
	crtshMaxBody    = 50 * 1024 * 1024
	crtshRetryDelay = 3 * time.Second
)

// CrtshCollector queries crt.sh's Certificate Transparency log search
// for subdomains of a root domain.
type CrtshCollector struct {
	UserAgent string
}

type crtshEntry struct {
	NameValue string `json:"name_value"`
}

// Collect implements orchestrator.DNSCollector.
func (c CrtshCollector) Collect(ctx context.Context, domain string) ([]string, error) {
	ua := c.UserAgent
	if ua == "" {
		ua = "rshield"
	}
	url := fmt.Sprintf(crtshURLFormat, domain)

	body, err := crtshFetch(ctx, url, ua)
	if err != nil {
		return nil, fmt.Errorf("crt.sh fetch for %s: %w", domain, err)
	}

	var entries []crtshEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("crt.sh JSON parse for %s: %w", domain, err)
	}
	return extractCrtshHosts(entries, domain), nil
}

// extractCrtshHosts filters and dedupes the name_value fields of a
// crt.sh response down to subdomains of domain, stripping wildcards.
func extractCrtshHosts(entries []crtshEntry, domain string) []string {
	seen := make(map[string]bool)
	var hosts []string
	for _, entry := range entries {
		for _, name := range strings.Split(entry.NameValue, "\n") {
			name = strings.TrimSpace(strings.ToLower(name))
			if name == "" {
				continue
			}
			name = strings.TrimPrefix(name, "*.")
			if !strings.HasSuffix(name, "."+domain) && name != domain {
				continue
			}
			if !seen[name] {
				seen[name] = true
				hosts = append(hosts, name)
			}
		}
	}
	return hosts
}

func crtshFetch(ctx context.Context, url, userAgent string) ([]byte, error) {
	body, err := crtshDoRequest(ctx, url, userAgent)
	if err == nil {
		return body, nil
	}
	if strings.Contains(err.Error(), "429") {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(crtshRetryDelay):
	}
	return crtshDoRequest(ctx, url, userAgent)
}

func crtshDoRequest(ctx context.Context, url, userAgent string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, crtshTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("crt.sh rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crt.sh returned status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, crtshMaxBody))
}
