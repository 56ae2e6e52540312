package activescan

import (
	"net/http"
	"sort"

	wappalyzer "github.com/projectdiscovery/wappalyzergo"
)

// Fingerprinter wraps wappalyzergo's signature database to produce a
// quick tech-stack guess (Website.Fingerprints) directly from the
// response headers and body captured during the website probe, ahead
// of and independent from the fingerprint plugin pass in pipeline
// stage 9 — the same "built-in detector plus plugin detector" split
// internal/scanners and internal/passivescan use for vulnerabilities.
type Fingerprinter struct {
	client *wappalyzer.Wappalyze
}

// NewFingerprinter loads wappalyzergo's bundled signature set once;
// the returned client is safe for concurrent use across probes.
func NewFingerprinter() (*Fingerprinter, error) {
	c, err := wappalyzer.New()
	if err != nil {
		return nil, err
	}
	return &Fingerprinter{client: c}, nil
}

// Fingerprint returns the sorted set of technology names wappalyzergo
// detected in the response. A nil receiver (no signature DB loaded)
// returns nil rather than panicking, so callers can leave it unset.
func (f *Fingerprinter) Fingerprint(headers http.Header, body []byte) []string {
	if f == nil || f.client == nil {
		return nil
	}
	matches := f.client.Fingerprint(headers, body)
	if len(matches) == 0 {
		return nil
	}
	names := make([]string, 0, len(matches))
	for name := range matches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
