package command

import (
	"fmt"
	"sort"

	"github.com/rshield/rshield/internal/model"
)

// GetRootDomains implements get_root_domains.
func (s *Surface) GetRootDomains(taskID int64) ([]model.RootDomain, error) {
	return s.Store.GetRootDomains(taskID)
}

// GetEntDomain implements get_ent_domain: the distinct enterprise
// names a task's root domains were registered under, derived from
// RootDomain.TaskName rather than a separate table since an
// enterprise is just the grouping label the UI records a root domain
// against.
func (s *Surface) GetEntDomain(taskID int64) ([]string, error) {
	roots, err := s.Store.GetRootDomains(taskID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(roots))
	var names []string
	for _, r := range roots {
		if r.TaskName == "" || seen[r.TaskName] {
			continue
		}
		seen[r.TaskName] = true
		names = append(names, r.TaskName)
	}
	sort.Strings(names)
	return names, nil
}

// GetDomains implements get_domains.
func (s *Surface) GetDomains(taskID int64) ([]model.Domain, error) {
	return s.Store.GetDomains(taskID)
}

// GetIPs implements get_ips.
func (s *Surface) GetIPs(taskID int64) ([]model.IP, error) {
	return s.Store.GetIPs(taskID)
}

// GetWebsites implements get_websites.
func (s *Surface) GetWebsites(taskID int64) ([]model.Website, error) {
	return s.Store.GetWebsites(taskID)
}

// GetWebComponents implements get_webcomps.
func (s *Surface) GetWebComponents(taskID int64) ([]model.WebComponent, error) {
	return s.Store.GetWebComponents(taskID)
}

// GetAPIs implements get_apis.
func (s *Surface) GetAPIs(taskID int64, handleStatus string) ([]model.API, error) {
	return s.Store.GetAPIs(taskID, handleStatus)
}

// AssetStatistics is the get_asset_statistics result: one count per
// inventory entity for a task's dashboard summary card.
type AssetStatistics struct {
	RootDomains   int
	Domains       int
	IPs           int
	Websites      int
	WebComponents int
	APIs          int
	OpenRisks     int
}

// GetAssetStatistics implements get_asset_statistics, assembled from
// the existing per-entity getters since no single aggregate query
// exists — a dashboard count doesn't warrant its own store method
// when the entity tables are already small per task.
func (s *Surface) GetAssetStatistics(taskID int64) (AssetStatistics, error) {
	var stats AssetStatistics

	roots, err := s.Store.GetRootDomains(taskID)
	if err != nil {
		return stats, fmt.Errorf("root domains: %w", err)
	}
	stats.RootDomains = len(roots)

	domains, err := s.Store.GetDomains(taskID)
	if err != nil {
		return stats, fmt.Errorf("domains: %w", err)
	}
	stats.Domains = len(domains)

	ips, err := s.Store.GetIPs(taskID)
	if err != nil {
		return stats, fmt.Errorf("ips: %w", err)
	}
	stats.IPs = len(ips)

	websites, err := s.Store.GetWebsites(taskID)
	if err != nil {
		return stats, fmt.Errorf("websites: %w", err)
	}
	stats.Websites = len(websites)

	comps, err := s.Store.GetWebComponents(taskID)
	if err != nil {
		return stats, fmt.Errorf("webcomps: %w", err)
	}
	stats.WebComponents = len(comps)

	apis, err := s.Store.GetAPIs(taskID, "")
	if err != nil {
		return stats, fmt.Errorf("apis: %w", err)
	}
	stats.APIs = len(apis)

	risks, err := s.Store.GetRisks(taskID)
	if err != nil {
		return stats, fmt.Errorf("risks: %w", err)
	}
	for _, r := range risks {
		if r.Status == model.RiskOpen {
			stats.OpenRisks++
		}
	}

	return stats, nil
}

// AddRootDomain implements add_root_domain.
func (s *Surface) AddRootDomain(taskID int64, domain, taskName string) (int64, error) {
	return s.Store.AddRootDomain(taskID, domain, taskName)
}

// DelRootDomainByID implements del_rootdomain_by_id.
func (s *Surface) DelRootDomainByID(id int64) error {
	return s.Store.DeleteRootDomain(id)
}

// AddDomain implements add_domain.
func (s *Surface) AddDomain(d model.Domain) (int64, error) {
	return s.Store.AddDomain(d)
}

// DeleteDomainByID implements delete_domain_by_id.
func (s *Surface) DeleteDomainByID(id int64) error {
	return s.Store.DeleteDomain(id)
}

// DelWebsiteByID implements del_website_by_id.
func (s *Surface) DelWebsiteByID(id int64) error {
	return s.Store.DeleteWebsite(id)
}

// ProcessAPIs implements process_apis: a bulk handle_status update.
func (s *Surface) ProcessAPIs(ids []int64, status model.APIHandleStatus) error {
	return s.Store.ProcessAPIs(ids, status)
}
