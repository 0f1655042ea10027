package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: basic
description: one write
store: prefs
schema: "a?: number"
steps:
  - op: set_item
    key: a
    value: 1
    expect:
      outcome: ok
assertions:
  - type: final_state
    target: durable
    expect: {a: 1}
`))
	require.NoError(t, err)
	assert.Equal(t, "basic", s.Name)
	assert.Equal(t, "prefs", s.Store)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, OpSetItem, s.Steps[0].Op)
	assert.Equal(t, 1, s.Steps[0].Value)
	require.NotNil(t, s.Steps[0].Expect)
	assert.Equal(t, OutcomeOK, s.Steps[0].Expect.Outcome)
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "description: d\nsteps: [{op: push}]\n", "name is required"},
		{"missing description", "name: n\nsteps: [{op: push}]\n", "description is required"},
		{"no steps", "name: n\ndescription: d\n", "steps list is required"},
		{"unknown op", "name: n\ndescription: d\nsteps: [{op: teleport}]\n", `unknown op "teleport"`},
		{"missing key", "name: n\ndescription: d\nsteps: [{op: get_item}]\n", "key is required for get_item"},
		{"unknown field", "name: n\ndescription: d\nstep: []\n", "failed to parse YAML"},
		{"assertion without type", "name: n\ndescription: d\nsteps: [{op: push}]\nassertions: [{kind: step}]\n", "type is required"},
		{"unknown assertion", "name: n\ndescription: d\nsteps: [{op: push}]\nassertions: [{type: vibes}]\n", `unknown assertion type "vibes"`},
		{"event_count without kind", "name: n\ndescription: d\nsteps: [{op: push}]\nassertions: [{type: event_count}]\n", "kind is required"},
		{"final_state bad target", "name: n\ndescription: d\nsteps: [{op: push}]\nassertions: [{type: final_state, target: disk, expect: {a: 1}}]\n", "target must be"},
		{"final_state without expect", "name: n\ndescription: d\nsteps: [{op: push}]\nassertions: [{type: final_state, target: history}]\n", "expect is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestLoadScenarioFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: n\ndescription: d\nsteps: [{op: unload}]\n"), 0644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, OpUnload, s.Steps[0].Op)
}
