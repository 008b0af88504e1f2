package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
)

type policyFile struct {
	CareTypes map[string]int `yaml:"care_types"`
}

// LoadCarePolicy reads extra care types and per-type default cadences from YAML:
//
//	care_types:
//	  watering: 7
//	  fertilizing: 30
//	  misting: 2
//
// Built-in types stay available; an empty path yields the built-in policy.
func LoadCarePolicy(path string) (domain.CarePolicy, error) {
	policy := domain.DefaultCarePolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("care policy: %w", err)
	}

	return ParseCarePolicy(data)
}

func ParseCarePolicy(data []byte) (domain.CarePolicy, error) {
	policy := domain.DefaultCarePolicy()

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return policy, fmt.Errorf("care policy: %w", err)
	}

	for raw, freq := range file.CareTypes {
		ct := domain.NormalizeCareType(raw)
		if ct == "" {
			return policy, fmt.Errorf("care policy: %w: empty name", domain.ErrInvalidCareType)
		}
		if err := domain.ValidateFrequencyInput(freq); err != nil {
			return policy, fmt.Errorf("care policy %q: %w", ct, err)
		}
		policy.Defaults[ct] = freq
	}

	return policy, nil
}
