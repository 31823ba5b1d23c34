package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a message-script scenario.
// A scenario sends a sequence of named messages to a fresh sample Program
// and asserts on the processed trace and the final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is an optional CUE configuration file for the executor.
	// Relative paths are resolved against the scenario file location.
	Config string `yaml:"config,omitempty"`

	// Backend configures the sample app's in-memory backend.
	Backend BackendSpec `yaml:"backend,omitempty"`

	// Ticks is the number of TickMsgs the tick subscription sends once the
	// loader has loaded. Zero disables the subscription.
	Ticks int `yaml:"ticks,omitempty"`

	// Steps are the messages sent to the Program, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`

	// Timeout bounds each wait for quiescence. Default: 5s.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// BackendSpec mirrors sample.StaticBackend.
type BackendSpec struct {
	Value  int           `yaml:"value,omitempty"`
	Corpus []string      `yaml:"corpus,omitempty"`
	Delay  time.Duration `yaml:"delay,omitempty"`
	Down   bool          `yaml:"down,omitempty"`
}

// Step sends one message.
type Step struct {
	// Send is the message name as known to the sample codec (e.g. "query").
	Send string `yaml:"send"`

	// Payload holds the message fields.
	Payload map[string]interface{} `yaml:"payload,omitempty"`

	// Async skips the wait for quiescence after this step, so the next
	// step is sent while effects are still running.
	Async bool `yaml:"async,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check a message appears in the trace with payload
	// - "trace_order": Check messages appear in order
	// - "trace_count": Check a message appears exactly N times
	// - "final_state": Verify expected values in the final state
	Type string `yaml:"type"`

	// Msg is the message name (used by trace_contains, trace_count).
	Msg string `yaml:"msg,omitempty"`

	// Payload is the expected message payload (used by trace_contains).
	// Subset match - only specified fields are validated.
	Payload map[string]interface{} `yaml:"payload,omitempty"`

	// Expect contains expected state values (used by final_state).
	// Subset match on objects, exact match on lists and scalars.
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Msgs is the expected message order (used by trace_order).
	Msgs []string `yaml:"msgs,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

const defaultTimeout = 5 * time.Second

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the config path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Config != "" && !filepath.IsAbs(scenario.Config) && basePath != "" {
		scenario.Config = filepath.Join(basePath, scenario.Config)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
// Message names are checked against names, the set the codec knows.
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

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Ticks < 0 {
		return fmt.Errorf("ticks must be non-negative")
	}

	if s.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	if s.Config != "" {
		if _, err := os.Stat(s.Config); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", s.Config)
		}
	}

	names := knownMsgNames()
	for i, step := range s.Steps {
		if step.Send == "" {
			return fmt.Errorf("steps[%d]: send is required", i)
		}
		if !names[step.Send] {
			return fmt.Errorf("steps[%d]: unknown message %q", i, step.Send)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Msg == "" {
			return fmt.Errorf("assertions[%d]: msg is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Msgs) == 0 {
			return fmt.Errorf("assertions[%d]: msgs list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Msg == "" {
			return fmt.Errorf("assertions[%d]: msg is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func (s *Scenario) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return defaultTimeout
}
