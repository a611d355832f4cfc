// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package llm

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Named model profiles. Pipeline stages never pass raw temperatures or token
// limits; they name a profile and the adapter applies its parameters.
const (
	// ProfileReasoning is used by the planning stage, where the model must
	// reason about delegation rather than produce long output.
	ProfileReasoning = "reasoning"

	// ProfileCostOptimized is used by the extraction workers, which run
	// several times per request and favor throughput over depth.
	ProfileCostOptimized = "cost-optimized"
)

// MaxProfileTemperature is the maximum allowed sampling temperature.
const MaxProfileTemperature = 2.0

// ModelProfile bundles the generation parameters for one class of call.
type ModelProfile struct {
	// Name identifies the profile (e.g. "reasoning").
	Name string `yaml:"name"`

	// Model optionally overrides the provider's default model.
	Model string `yaml:"model,omitempty"`

	// Temperature controls sampling randomness.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps the completion length.
	MaxTokens int `yaml:"maxTokens"`
}

// ProfilesFile represents a model-profile configuration file following the
// Kubernetes-style apiVersion/kind pattern.
type ProfilesFile struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   ProfilesMetadata `yaml:"metadata"`
	Spec       ProfilesSpec     `yaml:"spec"`
}

// ProfilesMetadata contains identification for the profile set.
type ProfilesMetadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// ProfilesSpec lists the profile definitions.
type ProfilesSpec struct {
	Profiles []ModelProfile `yaml:"profiles"`
}

// DefaultProfiles returns the built-in profile set. A configuration file can
// override these or add new ones, but the two built-ins always resolve.
func DefaultProfiles() map[string]ModelProfile {
	return map[string]ModelProfile{
		ProfileReasoning: {
			Name:        ProfileReasoning,
			Temperature: 0.7,
			MaxTokens:   1500,
		},
		ProfileCostOptimized: {
			Name:        ProfileCostOptimized,
			Temperature: 0.7,
			MaxTokens:   2000,
		},
	}
}

// LoadProfiles loads and parses a model-profile configuration file, merged
// over the built-in defaults.
func LoadProfiles(path string) (map[string]ModelProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file %s: %w", path, err)
	}

	return ParseProfiles(data)
}

// ParseProfiles parses YAML data into a profile map merged over the defaults.
func ParseProfiles(data []byte) (map[string]ModelProfile, error) {
	var file ProfilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := ValidateProfilesFile(&file); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	profiles := DefaultProfiles()
	for _, p := range file.Spec.Profiles {
		profiles[p.Name] = p
	}
	return profiles, nil
}

// ValidateProfilesFile validates a profile configuration for correctness.
func ValidateProfilesFile(file *ProfilesFile) error {
	if file == nil {
		return fmt.Errorf("profiles file is nil")
	}

	if !strings.HasPrefix(file.APIVersion, "axonflow.io/") {
		return fmt.Errorf("invalid apiVersion: must start with 'axonflow.io/', got '%s'", file.APIVersion)
	}

	if file.Kind != "ModelProfiles" {
		return fmt.Errorf("invalid kind: expected 'ModelProfiles', got '%s'", file.Kind)
	}

	if len(file.Spec.Profiles) == 0 {
		return fmt.Errorf("spec.profiles must contain at least one profile")
	}

	seen := make(map[string]bool)
	for i, p := range file.Spec.Profiles {
		if err := validateProfile(&p); err != nil {
			return fmt.Errorf("profile %d: %w", i, err)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate profile name '%s'", p.Name)
		}
		seen[p.Name] = true
	}

	return nil
}

// validateProfile checks a single profile definition.
func validateProfile(p *ModelProfile) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}

	if p.Temperature < 0 || p.Temperature > MaxProfileTemperature {
		return fmt.Errorf("temperature must be between 0 and %.1f, got %.2f", MaxProfileTemperature, p.Temperature)
	}

	if p.MaxTokens <= 0 {
		return fmt.Errorf("maxTokens must be positive, got %d", p.MaxTokens)
	}

	return nil
}
