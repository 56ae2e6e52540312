package pluginrt

import (
	"context"
	"fmt"

	"github.com/rshield/rshield/internal/model"
	"github.com/rshield/rshield/internal/store"
)

// Manager owns the plugin catalogue: validating and persisting
// uploads, listing/toggling/deleting plugins, and running a plugin's
// analyze() against one target.
type Manager struct {
	store    *store.Store
	engine   *Engine
	verifier *ScriptVerifier
}

// NewManager constructs a Manager backed by store for persistence. A
// ScriptVerifier is created empty (no trusted authors) — call
// Verifier().TrustAuthor to opt into signature checking.
func NewManager(st *store.Store) *Manager {
	return &Manager{
		store:    st,
		engine:   NewEngine(),
		verifier: NewScriptVerifier(),
	}
}

// Verifier exposes the manager's script signature verifier so the
// command surface can register trusted author keys.
func (m *Manager) Verifier() *ScriptVerifier {
	return m.verifier
}

// Upload validates script's manifest and persists it. If
// signatureHex is non-empty, the script's signature is checked against
// author's trusted key first, and the upload is rejected on mismatch.
func (m *Manager) Upload(ctx context.Context, script, author, signatureHex string) (model.Plugin, error) {
	if signatureHex != "" {
		if err := m.verifier.VerifyScript(author, script, signatureHex); err != nil {
			return model.Plugin{}, fmt.Errorf("signature check failed: %w", err)
		}
	}

	manifest, err := m.engine.LoadManifest(ctx, script)
	if err != nil {
		return model.Plugin{}, fmt.Errorf("invalid plugin manifest: %w", err)
	}
	if manifest.Author == "" {
		manifest.Author = author
	}

	p := toModelPlugin(manifest, script, model.PluginEnabled)
	id, err := m.store.UpsertPlugin(p)
	if err != nil {
		return model.Plugin{}, fmt.Errorf("save plugin: %w", err)
	}
	p.ID = id
	return p, nil
}

// List returns every plugin of pluginType (empty type = all).
func (m *Manager) List(pluginType model.PluginType) ([]model.Plugin, error) {
	return m.store.ListPlugins(pluginType)
}

// Get returns one plugin by (type, name).
func (m *Manager) Get(pluginType model.PluginType, name string) (*model.Plugin, error) {
	return m.store.GetPlugin(pluginType, name)
}

// SetEnabled toggles a plugin's participation in scans.
func (m *Manager) SetEnabled(pluginType model.PluginType, name string, enabled bool) error {
	p, err := m.store.GetPlugin(pluginType, name)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("plugin %s/%s not found", pluginType, name)
	}
	if enabled {
		p.Status = model.PluginEnabled
	} else {
		p.Status = model.PluginDisabled
	}
	_, err = m.store.UpsertPlugin(*p)
	return err
}

// Delete removes a plugin from the catalogue.
func (m *Manager) Delete(pluginType model.PluginType, name string) error {
	return m.store.DeletePlugin(pluginType, name)
}

// Analyze runs one enabled plugin's analyze() against input. Disabled
// or missing plugins are reported as an error rather than silently
// skipped — the caller (the scanner dispatch loop) decides whether
// that's fatal for the batch.
func (m *Manager) Analyze(ctx context.Context, pluginType model.PluginType, name string, input AnalyzeInput) ([]AnalyzeResult, error) {
	p, err := m.store.GetPlugin(pluginType, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("plugin %s/%s not found", pluginType, name)
	}
	if p.Status != model.PluginEnabled {
		return nil, fmt.Errorf("plugin %s/%s is disabled", pluginType, name)
	}
	return m.engine.Analyze(ctx, p.Script, input)
}

// Enabled returns every enabled plugin of pluginType, for the scanner
// dispatch loop to iterate without re-checking status per call.
func (m *Manager) Enabled(pluginType model.PluginType) ([]model.Plugin, error) {
	all, err := m.store.ListPlugins(pluginType)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.Status == model.PluginEnabled {
			out = append(out, p)
		}
	}
	return out, nil
}
