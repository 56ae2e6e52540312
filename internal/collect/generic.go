package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GenericJSONCollector composes a new DNS collection source without
// touching the orchestrator: it fetches a URL built from the domain
// and hands the decoded JSON body to Extract, which pulls out
// whatever hostnames the response carries. Used for one-off or
// user-configured sources that don't warrant their own file.
type GenericJSONCollector struct {
	Name      string
	URLFormat string // passed through fmt.Sprintf(URLFormat, domain)
	Extract   func(body any) []string
	Timeout   time.Duration
}

// Collect implements orchestrator.DNSCollector.
func (g GenericJSONCollector) Collect(ctx context.Context, domain string) ([]string, error) {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf(g.URLFormat, domain)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s fetch for %s: %w", g.Name, domain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", g.Name, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", g.Name, err)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%s JSON parse: %w", g.Name, err)
	}

	return g.Extract(decoded), nil
}
