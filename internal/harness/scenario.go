package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run against a durable store and a session history.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Store is the durable store name. Default: "scenario".
	Store string `yaml:"store,omitempty"`

	// Schema is CUE source the durable store validates against.
	// Empty means every snapshot is accepted.
	Schema string `yaml:"schema,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one operation.
type Step struct {
	// Op is the operation name (see the package documentation).
	Op string `yaml:"op"`

	// Key is the item or record key for keyed operations.
	Key string `yaml:"key,omitempty"`

	// Value is the value written by set_item and history_set.
	Value any `yaml:"value,omitempty"`

	// Data is the whole state for set_store_data, and the entry state for
	// push and replace.
	Data map[string]any `yaml:"data,omitempty"`

	// Expect is checked after the step runs. Nil means no check.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the expected outcome of a step.
type Expect struct {
	// Outcome is the expected outcome. Empty means "ok".
	Outcome string `yaml:"outcome,omitempty"`

	// Value is the expected read value of get_item and history_get.
	Value any `yaml:"value,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is event_count or final_state.
	Type string `yaml:"type"`

	// Kind is the trace event kind counted by event_count.
	Kind string `yaml:"kind,omitempty"`

	// Count is the exact number of events expected by event_count.
	Count int `yaml:"count,omitempty"`

	// Target is durable or history, for final_state.
	Target string `yaml:"target,omitempty"`

	// Expect is a subset of the final state, for final_state. History
	// values are compared against record data.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertEventCount = "event_count"
	AssertFinalState = "final_state"
)

// Final state targets.
const (
	TargetDurable = "durable"
	TargetHistory = "history"
)

// Operations.
const (
	OpSetItem       = "set_item"
	OpSetStoreData  = "set_store_data"
	OpRemoveItem    = "remove_item"
	OpGetItem       = "get_item"
	OpHistorySet    = "history_set"
	OpHistoryRemove = "history_remove"
	OpHistoryGet    = "history_get"
	OpPush          = "push"
	OpReplace       = "replace"
	OpBack          = "back"
	OpForward       = "forward"
	OpUnload        = "unload"
)

var keyedOps = []string{OpSetItem, OpRemoveItem, OpGetItem, OpHistorySet, OpHistoryRemove, OpHistoryGet}

var allOps = append([]string{OpSetStoreData, OpPush, OpReplace, OpBack, OpForward, OpUnload}, keyedOps...)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if !slices.Contains(allOps, step.Op) {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if slices.Contains(keyedOps, step.Op) && step.Key == "" {
			return fmt.Errorf("steps[%d]: key is required for %s", i, step.Op)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case AssertEventCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertFinalState:
		if a.Target != TargetDurable && a.Target != TargetHistory {
			return fmt.Errorf("assertions[%d]: target must be durable or history", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
