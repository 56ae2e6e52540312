package passivescan

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rshield/rshield/internal/model"
	"github.com/rshield/rshield/internal/pluginrt"
)

// ScanWebsite implements orchestrator.RiskScanner for the pipeline's
// on-demand risk-scanning stage (distinct from the live traffic-pair
// worker pool started by Start): it re-fetches the site once to obtain
// a body to scan, since model.Website itself doesn't retain one.
func (e *Engine) ScanWebsite(ctx context.Context, w model.Website) ([]model.Risk, error) {
	target := w.URL
	if target == "" {
		target = w.BaseURL
	}
	if target == "" {
		return nil, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpResp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch website: %w", err)
	}
	defer httpResp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(httpResp.Body, model.MaxCapturedBodyBytes))

	req := model.InterceptedRequest{Method: http.MethodGet, URL: target}
	resp := model.InterceptedResponse{Status: httpResp.StatusCode, Body: string(body)}

	return e.scanOnce(ctx, w.TaskID, req, resp)
}

// ScanAPI implements orchestrator.RiskScanner against an already
// captured API probe, since model.API retains GetResponse/PostResponse
// bodies from the extraction stage.
func (e *Engine) ScanAPI(ctx context.Context, a model.API) ([]model.Risk, error) {
	body := a.GetResponse
	if body == "" {
		body = a.PostResponse
	}
	req := model.InterceptedRequest{Method: a.Method, URL: a.URL}
	resp := model.InterceptedResponse{Status: a.HTTPStatus, Body: body}

	return e.scanOnce(ctx, a.TaskID, req, resp)
}

// scanOnce runs the built-in scanners plus enabled plugins against one
// (request, response) pair and returns every matched finding as a
// model.Risk, without persisting it — the pipeline caller decides
// whether/how to store results, unlike the live worker pool which
// always persists via Store.
func (e *Engine) scanOnce(ctx context.Context, taskID int64, req model.InterceptedRequest, resp model.InterceptedResponse) ([]model.Risk, error) {
	var risks []model.Risk

	for _, sc := range e.builtins {
		for _, r := range sc.Scan(req, resp) {
			if !r.Matched {
				continue
			}
			risks = append(risks, model.Risk{
				TaskID:          taskID,
				RiskName:        r.RiskName,
				RiskType:        r.RiskType,
				Level:           r.Level,
				Status:          model.RiskOpen,
				Detail:          r.Description,
				ResponseSnippet: r.Evidence,
				SourceTag:       sc.Name(),
			})
		}
	}

	if e.plugins == nil {
		return risks, nil
	}
	enabled, err := e.plugins.Enabled(model.PluginVulnerability)
	if err != nil {
		return risks, err
	}
	for _, p := range enabled {
		results, err := e.plugins.Analyze(ctx, model.PluginVulnerability, p.Name, pluginrt.AnalyzeInput{
			Target:   req.URL,
			Request:  &req,
			Response: &resp,
		})
		if err != nil {
			continue
		}
		for _, r := range results {
			if !r.Matched {
				continue
			}
			risks = append(risks, model.Risk{
				TaskID:          taskID,
				RiskName:        p.Name,
				RiskType:        "plugin",
				Level:           r.RiskLevel,
				Status:          model.RiskOpen,
				Detail:          r.Description,
				ResponseSnippet: evidenceString(r.Evidence),
				SourceTag:       p.Name,
			})
		}
	}
	return risks, nil
}
