package command

import (
	"context"
	"fmt"

	"github.com/rshield/rshield/internal/model"
	"github.com/rshield/rshield/internal/passivescan"
	"github.com/rshield/rshield/internal/proxy"
)

var errNoPassiveScanEngine = fmt.Errorf("passive scan engine is not configured")

// StartPassiveScan implements start_passive_scan: attaches the
// passive scan engine to the proxy's traffic channel for taskID.
// engine is injected per-call rather than stored on Surface because
// Start also needs the live traffic channel, which is owned by the
// proxy wiring in the composition root.
func (s *Surface) StartPassiveScan(ctx context.Context, engine *passivescan.Engine, traffic <-chan proxy.TrafficPair, taskID int64) error {
	if engine == nil {
		return errNoPassiveScanEngine
	}
	return engine.Start(ctx, traffic, taskID)
}

// StopPassiveScan implements stop_passive_scan.
func (s *Surface) StopPassiveScan(engine *passivescan.Engine) error {
	if engine == nil {
		return errNoPassiveScanEngine
	}
	engine.Stop()
	return nil
}

// GetScanVulnerabilities implements get_scan_vulnerabilities.
func (s *Surface) GetScanVulnerabilities(taskID int64) ([]model.Risk, error) {
	return s.Store.GetRisks(taskID)
}

// ClearScanVulnerabilities implements clear_scan_vulnerabilities.
func (s *Surface) ClearScanVulnerabilities(engine *passivescan.Engine, taskID int64) error {
	if engine == nil {
		return errNoPassiveScanEngine
	}
	return engine.ClearVulnerabilities(taskID)
}

// ResetScanStatistics implements reset_scan_statistics: clears the
// task's findings and zeroes the engine's counters.
func (s *Surface) ResetScanStatistics(engine *passivescan.Engine, taskID int64) error {
	if engine == nil {
		return errNoPassiveScanEngine
	}
	return engine.ResetStatistics(taskID)
}

// ExportScanVulnerabilities implements export_scan_vulnerabilities,
// returning the raw rows for the UI shell to serialize (CSV/JSON is a
// UI-layer formatting concern, not this surface's).
func (s *Surface) ExportScanVulnerabilities(taskID int64) ([]model.Risk, error) {
	return s.Store.GetRisks(taskID)
}

// OpenCertFile implements open_cert_file: returns the on-disk path of
// the local interception CA certificate so the UI shell can hand it
// to the OS file manager / trust-store installer.
func (s *Surface) OpenCertFile() (string, error) {
	if s.CA == nil {
		return "", errNoCA
	}
	return s.CA.CACertPath(), nil
}
