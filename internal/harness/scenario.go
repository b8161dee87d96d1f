package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a named list of cases run against one rule configuration.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Rules lists rule sources (files, directories, globs).
	Rules []string `yaml:"rules"`

	// Shell enables shell rules for this scenario.
	Shell bool `yaml:"shell,omitempty"`

	// AllowWarnings accepts rule files with skipped rules or overrides.
	// By default any load warning fails the scenario.
	AllowWarnings bool `yaml:"allow_warnings,omitempty"`

	Cases []Case `yaml:"cases"`
}

// Case is one input and its expectations.
type Case struct {
	Name  string `yaml:"name"`
	Input string `yaml:"input"`

	// Expect is the required output.
	Expect *string `yaml:"expect"`

	// Matched, when set, is the exact ordered list of rules that must
	// take effect.
	Matched []string `yaml:"matched,omitempty"`

	// Failed lists rules that must fail (shell errors, regex timeouts).
	Failed []string `yaml:"failed,omitempty"`
}

// LoadScenario reads and validates a scenario file. Rule paths are
// resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i, p := range s.Rules {
		if !filepath.IsAbs(p) {
			s.Rules[i] = filepath.Join(base, p)
		}
	}
	return s, nil
}

// ParseScenario decodes and validates a scenario document. Rule paths are
// left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// Validate checks required fields.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Rules) == 0 {
		return fmt.Errorf("rules list is required and must be non-empty")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("cases[%d]: duplicate case name %q", i, c.Name)
		}
		seen[c.Name] = true
		if c.Expect == nil {
			return fmt.Errorf("cases[%d] %q: expect is required", i, c.Name)
		}
	}
	return nil
}
