package activescan

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rshield/rshield/internal/model"
)

// apiPathPattern is a static regex extractor (spec §4.1 stage 10:
// "static regex + optional plugins") for quoted string literals in
// HTML/JS that look like API endpoints: an absolute path starting
// with /api, /v<N>, /rest or /graphql.
var apiPathPattern = regexp.MustCompile(`["'](/(?:api|v[0-9]+|rest|graphql)[a-zA-Z0-9_\-/.]*)["']`)

// APIExtractor implements orchestrator.APIExtractor: it scrapes a
// website's already-fetched body for candidate endpoint paths with a
// static regex, then issues a GET (and, for paths that look like
// mutation endpoints, a POST) probe against each to capture a
// truncated response body for triage.
type APIExtractor struct {
	Client *http.Client
}

// Extract implements orchestrator.APIExtractor.
func (e APIExtractor) Extract(ctx context.Context, w model.Website) ([]model.API, error) {
	client := e.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	body, err := fetchBody(ctx, client, w.URL)
	if err != nil {
		return nil, err
	}

	paths := dedupePaths(apiPathPattern.FindAllStringSubmatch(body, -1))
	if len(paths) == 0 {
		return nil, nil
	}

	base, err := url.Parse(w.BaseURL)
	if err != nil {
		base, err = url.Parse(w.URL)
		if err != nil {
			return nil, err
		}
	}

	var apis []model.API
	for _, path := range paths {
		ref, err := url.Parse(path)
		if err != nil {
			continue
		}
		full := base.ResolveReference(ref).String()

		a := model.API{
			Method:       http.MethodGet,
			URI:          path,
			URL:          full,
			UFrom:        w.URL,
			HandleStatus: model.APIUntriaged,
		}

		if status, respBody, err := probe(ctx, client, http.MethodGet, full); err == nil {
			a.HTTPStatus = status
			a.GetResponse = respBody
			a.GetBodyLength = len(respBody)
		}
		if looksLikeMutationEndpoint(path) {
			if status, respBody, err := probe(ctx, client, http.MethodPost, full); err == nil {
				if a.HTTPStatus == 0 {
					a.HTTPStatus = status
				}
				a.PostResponse = respBody
				a.PostBodyLength = len(respBody)
			}
		}
		apis = append(apis, a)
	}
	return apis, nil
}

func fetchBody(ctx context.Context, client *http.Client, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	return string(b), nil
}

func probe(ctx context.Context, client *http.Client, method, target string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, model.MaxCapturedBodyBytes))
	return resp.StatusCode, string(b), nil
}

func looksLikeMutationEndpoint(path string) bool {
	lower := strings.ToLower(path)
	for _, marker := range []string{"create", "update", "delete", "submit", "login", "register"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func dedupePaths(matches [][]string) []string {
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		if len(m) < 2 || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		out = append(out, m[1])
	}
	return out
}
