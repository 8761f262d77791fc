package fundingconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ExchangeSettings holds the raw per-venue settings blob decoded from
// config/exchanges.yaml, keyed by section name (the venue's ID() value).
type ExchangeSettings struct {
	Sections map[string]map[string]interface{} `yaml:"sections"`
}

// LoadExchangeSettings reads config/exchanges.yaml (or another path) and
// returns it decoded. Grounded on internal/scheduler/scheduler.go's
// loadConfig: read file, yaml.Unmarshal, return.
func LoadExchangeSettings(path string) (*ExchangeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read exchange settings %s: %w", path, err)
	}
	var cfg ExchangeSettings
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse exchange settings %s: %w", path, err)
	}
	return &cfg, nil
}

// SettingsJSON re-encodes one section's settings as the JSON blob
// section.settings stores, since the schema's JSONB column is
// JSON-shaped regardless of the YAML source format.
func (e *ExchangeSettings) SettingsJSON(section string) ([]byte, error) {
	raw, ok := e.Sections[section]
	if !ok {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal settings for %s: %w", section, err)
	}
	return data, nil
}
