package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rshield/rshield/internal/model"
	"github.com/rshield/rshield/internal/pluginrt"
)

// The UI shell exposes one family of operations per plugin type
// (dns_collection/port_scan/fingerprint/vulnerability), all named
// list_*_plugins / get_*_plugin / etc. Rather than generate four
// near-identical method sets, the surface takes pluginType as a
// parameter; callers bind it (e.g. ListPlugins(model.PluginVulnerability, ...))
// the way the UI shell's per-family buttons already do.

// ListPlugins implements list_*_plugins.
func (s *Surface) ListPlugins(pluginType model.PluginType) ([]model.Plugin, error) {
	if s.Plugins == nil {
		return nil, errNoPlugins
	}
	return s.Plugins.List(pluginType)
}

// GetPlugin implements get_*_plugin.
func (s *Surface) GetPlugin(pluginType model.PluginType, name string) (*model.Plugin, error) {
	if s.Plugins == nil {
		return nil, errNoPlugins
	}
	return s.Plugins.Get(pluginType, name)
}

// LoadPlugins implements load_*_plugins: reads every *.rhai file under
// dir (the plugins/<type>/ directory of the persisted filesystem
// layout) and uploads each as a catalogue entry, skipping files whose
// manifest fails validation rather than aborting the whole directory.
func (s *Surface) LoadPlugins(ctx context.Context, dir string) ([]model.Plugin, []error) {
	if s.Plugins == nil {
		return nil, []error{errNoPlugins}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("read plugin dir %s: %w", dir, err)}
	}

	var loaded []model.Plugin
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".rhai") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		script, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		p, err := s.Plugins.Upload(ctx, string(script), "", "")
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		loaded = append(loaded, p)
	}
	return loaded, errs
}

// UploadPluginContent implements upload_*_plugin_content.
func (s *Surface) UploadPluginContent(ctx context.Context, script, author, signatureHex string) (model.Plugin, error) {
	if s.Plugins == nil {
		return model.Plugin{}, errNoPlugins
	}
	return s.Plugins.Upload(ctx, script, author, signatureHex)
}

// UpdatePlugin implements update_*_plugin. A plugin is keyed by
// (type, name), so re-uploading a script with the same declared name
// overwrites the existing catalogue entry in place.
func (s *Surface) UpdatePlugin(ctx context.Context, script, author, signatureHex string) (model.Plugin, error) {
	return s.UploadPluginContent(ctx, script, author, signatureHex)
}

// DeletePlugin implements delete_*_plugin.
func (s *Surface) DeletePlugin(pluginType model.PluginType, name string) error {
	if s.Plugins == nil {
		return errNoPlugins
	}
	return s.Plugins.Delete(pluginType, name)
}

// ExecutePlugin implements execute_*_plugin: runs a saved, enabled
// plugin's analyze() against one ad hoc target from the UI shell
// (distinct from the scanner dispatch loop's automatic invocation
// during a pipeline run).
func (s *Surface) ExecutePlugin(ctx context.Context, pluginType model.PluginType, name, target string, params map[string]string) ([]pluginrt.AnalyzeResult, error) {
	if s.Plugins == nil {
		return nil, errNoPlugins
	}
	return s.Plugins.Analyze(ctx, pluginType, name, pluginrt.AnalyzeInput{Target: target, Params: params})
}

// TestPlugin implements test_*_plugin: runs an unsaved script's
// analyze() against one target, for the plugin editor's "try it"
// action. It runs in a throwaway engine rather than through the
// catalogue since the script under test may not be persisted yet.
func (s *Surface) TestPlugin(ctx context.Context, script, target string, params map[string]string) ([]pluginrt.AnalyzeResult, error) {
	engine := pluginrt.NewEngine()
	return engine.Analyze(ctx, script, pluginrt.AnalyzeInput{Target: target, Params: params})
}

// ValidateScanPlugin implements validate_scan_plugin: checks that a
// script declares a well-formed manifest (name, known type, required
// entry points) without running analyze() against any target.
func (s *Surface) ValidateScanPlugin(ctx context.Context, script string) (pluginrt.Manifest, error) {
	engine := pluginrt.NewEngine()
	return engine.LoadManifest(ctx, script)
}
