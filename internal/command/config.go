package command

import "github.com/rshield/rshield/internal/model"

// GetASMConfig implements get_asm_config.
func (s *Surface) GetASMConfig() (*model.CoreConfig, error) {
	return s.Store.GetConfig()
}

// UpdateASMConfig implements update_asm_config.
func (s *Surface) UpdateASMConfig(c model.CoreConfig) error {
	return s.Store.SaveConfig(&c)
}

// GetRegexes implements get_regexs.
func (s *Surface) GetRegexes() ([]model.Regex, error) {
	return s.Store.GetRegexes()
}

// AddRegex implements add_regex.
func (s *Surface) AddRegex(r model.Regex) (int64, error) {
	return s.Store.AddRegex(r)
}

// UpdateRegex implements update_regex.
func (s *Surface) UpdateRegex(r model.Regex) error {
	return s.Store.UpdateRegex(r)
}

// SwitchRegexStatus implements switch_regex_status.
func (s *Surface) SwitchRegexStatus(id int64, enabled bool) error {
	return s.Store.SwitchRegexStatus(id, enabled)
}

// DelRegexByID implements del_regex_by_id.
func (s *Surface) DelRegexByID(id int64) error {
	return s.Store.DeleteRegex(id)
}
