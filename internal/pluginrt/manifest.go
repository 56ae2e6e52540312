// Package pluginrt runs user-authored scanner plugins in a sandboxed
// JavaScript runtime. Each plugin is a manifest (name, type, declared
// parameters) plus a script exposing get_manifest() and analyze().
package pluginrt

import (
	"fmt"

	"github.com/rshield/rshield/internal/model"
)

// Manifest is the declared shape of a plugin, as returned by its
// script's get_manifest() call.
type Manifest struct {
	Name         string              `json:"name"`
	Type         model.PluginType    `json:"type"`
	Version      string              `json:"version"`
	Description  string              `json:"description"`
	Author       string              `json:"author"`
	Severity     string              `json:"severity"`
	References   []string            `json:"references"`
	Params       []model.PluginParam `json:"params"`
	ResultFields []string            `json:"result_fields"`
}

func (m Manifest) validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest missing name")
	}
	switch m.Type {
	case model.PluginDNSCollection, model.PluginPortScan, model.PluginFingerprint, model.PluginVulnerability:
	default:
		return fmt.Errorf("manifest has unknown type %q", m.Type)
	}
	return nil
}

// AnalyzeInput is the argument passed to a plugin's analyze() function.
// Its shape depends on the plugin's declared Type, but Target and
// Params are always present.
type AnalyzeInput struct {
	Target string            `json:"target"`
	Params map[string]string `json:"params"`

	// Populated only for vulnerability/fingerprint plugins observing
	// proxy traffic.
	Request  *model.InterceptedRequest  `json:"request,omitempty"`
	Response *model.InterceptedResponse `json:"response,omitempty"`
}

// AnalyzeResult is one finding a plugin's analyze() call reported.
type AnalyzeResult struct {
	Matched     bool              `json:"matched"`
	RiskLevel   model.RiskLevel   `json:"risk_level,omitempty"`
	Description string            `json:"description,omitempty"`
	Evidence    map[string]string `json:"evidence,omitempty"`
}

func toModelPlugin(m Manifest, script string, status model.PluginStatus) model.Plugin {
	return model.Plugin{
		Name:         m.Name,
		Type:         m.Type,
		Version:      m.Version,
		Description:  m.Description,
		Author:       m.Author,
		Severity:     m.Severity,
		References:   m.References,
		Params:       m.Params,
		ResultFields: m.ResultFields,
		Script:       script,
		Status:       status,
	}
}
