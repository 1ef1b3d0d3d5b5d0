// Package scenarios implements the end-to-end test harness for spec.md
// §8's scenarios A-F, grounded on barn/conformance's YAML TestSuite/
// TestCase schema + loader + runner shape. Eople has no compiler front-end
// (spec.md §1 treats the front-end as an external collaborator), so unlike
// barn's conformance tests — which embed MOO source text a live evaluator
// parses — a Scenario's YAML fixture carries only its name, description,
// and expectation; the bytecode a real front-end would have produced is
// hand-assembled in Go by the matching entry in the builders table in
// runner.go, keyed by the fixture's Name field.
package scenarios

// Scenario is one YAML-described end-to-end fixture, corresponding 1:1 to
// one of spec.md §8's lettered scenarios.
type Scenario struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Expect      Expectation `yaml:"expect"`
}

// Expectation describes what a scenario's run must produce. Only the
// fields relevant to a given scenario are populated; zero-valued fields are
// not checked (e.g. a scenario with no meaningful stdout leaves Stdout
// empty and the runner skips that comparison).
type Expectation struct {
	// Value, when non-nil, is the scenario's expected return value,
	// compared via fmt.Sprintf("%v", ...) against the observed value.Value
	// to avoid the runner needing YAML-to-value.Value coercion logic for
	// every possible tag.
	Value interface{} `yaml:"value,omitempty"`

	// Stdout, when non-empty, is the exact expected combined stdout.
	Stdout string `yaml:"stdout,omitempty"`

	// StdoutContains, when non-empty, is a substring the combined stdout
	// must contain at least once (used by scenario D, where output order
	// across two independent timers is explicitly unspecified).
	StdoutContains []string `yaml:"stdout_contains,omitempty"`

	// MinMillis/MaxMillis bound how long the scenario's run is allowed to
	// take, used by the timer scenario (C) to assert the whenever body
	// fired within the window the after() delay implies.
	MinMillis int `yaml:"min_millis,omitempty"`
	MaxMillis int `yaml:"max_millis,omitempty"`
}
