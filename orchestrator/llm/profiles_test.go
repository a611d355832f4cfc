// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package llm

import (
	"strings"
	"testing"
)

func TestDefaultProfiles(t *testing.T) {
	profiles := DefaultProfiles()

	reasoning, ok := profiles[ProfileReasoning]
	if !ok {
		t.Fatal("reasoning profile missing")
	}
	if reasoning.MaxTokens != 1500 {
		t.Errorf("reasoning max tokens = %d, want 1500", reasoning.MaxTokens)
	}
	if reasoning.Temperature != 0.7 {
		t.Errorf("reasoning temperature = %v, want 0.7", reasoning.Temperature)
	}

	cost, ok := profiles[ProfileCostOptimized]
	if !ok {
		t.Fatal("cost-optimized profile missing")
	}
	if cost.MaxTokens != 2000 {
		t.Errorf("cost-optimized max tokens = %d, want 2000", cost.MaxTokens)
	}
	if cost.Temperature != 0.7 {
		t.Errorf("cost-optimized temperature = %v, want 0.7", cost.Temperature)
	}
}

func TestParseProfiles(t *testing.T) {
	t.Run("valid file overrides defaults", func(t *testing.T) {
		data := []byte(`
apiVersion: axonflow.io/v1
kind: ModelProfiles
metadata:
  name: custom-profiles
spec:
  profiles:
    - name: reasoning
      model: gemini-2.5-pro
      temperature: 0.3
      maxTokens: 1800
    - name: bulk
      temperature: 1.0
      maxTokens: 4000
`)
		profiles, err := ParseProfiles(data)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		reasoning := profiles[ProfileReasoning]
		if reasoning.Model != "gemini-2.5-pro" {
			t.Errorf("expected model override, got %q", reasoning.Model)
		}
		if reasoning.MaxTokens != 1800 {
			t.Errorf("expected maxTokens 1800, got %d", reasoning.MaxTokens)
		}

		// Untouched builtin survives the merge.
		if _, ok := profiles[ProfileCostOptimized]; !ok {
			t.Error("cost-optimized builtin should survive merge")
		}

		if _, ok := profiles["bulk"]; !ok {
			t.Error("new profile should be added")
		}
	})

	t.Run("invalid YAML", func(t *testing.T) {
		_, err := ParseProfiles([]byte("{{nope"))
		if err == nil || !strings.Contains(err.Error(), "failed to parse YAML") {
			t.Errorf("expected YAML parse error, got %v", err)
		}
	})

	tests := []struct {
		name   string
		data   string
		errMsg string
	}{
		{
			name: "wrong apiVersion",
			data: `
apiVersion: example.com/v1
kind: ModelProfiles
spec:
  profiles:
    - name: a
      temperature: 0.5
      maxTokens: 100
`,
			errMsg: "invalid apiVersion",
		},
		{
			name: "wrong kind",
			data: `
apiVersion: axonflow.io/v1
kind: AgentConfig
spec:
  profiles:
    - name: a
      temperature: 0.5
      maxTokens: 100
`,
			errMsg: "invalid kind",
		},
		{
			name: "no profiles",
			data: `
apiVersion: axonflow.io/v1
kind: ModelProfiles
spec:
  profiles: []
`,
			errMsg: "at least one profile",
		},
		{
			name: "missing name",
			data: `
apiVersion: axonflow.io/v1
kind: ModelProfiles
spec:
  profiles:
    - temperature: 0.5
      maxTokens: 100
`,
			errMsg: "name is required",
		},
		{
			name: "temperature out of range",
			data: `
apiVersion: axonflow.io/v1
kind: ModelProfiles
spec:
  profiles:
    - name: hot
      temperature: 3.5
      maxTokens: 100
`,
			errMsg: "temperature must be between",
		},
		{
			name: "non-positive maxTokens",
			data: `
apiVersion: axonflow.io/v1
kind: ModelProfiles
spec:
  profiles:
    - name: a
      temperature: 0.5
      maxTokens: 0
`,
			errMsg: "maxTokens must be positive",
		},
		{
			name: "duplicate names",
			data: `
apiVersion: axonflow.io/v1
kind: ModelProfiles
spec:
  profiles:
    - name: a
      temperature: 0.5
      maxTokens: 100
    - name: a
      temperature: 0.6
      maxTokens: 200
`,
			errMsg: "duplicate profile name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfiles([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error should contain %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}
