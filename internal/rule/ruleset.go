package rule

import (
	"cmp"
	"slices"
)

// RuleSet is an immutable, ordered collection of compiled rules.
//
// Order is priority descending; equal priorities keep the order in which
// rules were passed to NewRuleSet. A nil *RuleSet behaves as an empty set.
type RuleSet struct {
	rules       []*Compiled
	index       map[string]int
	fingerprint string
}

// NewRuleSet builds a RuleSet from compiled rules given in load order.
//
// Ids are expected to be unique. If an id repeats, the later rule replaces
// the earlier one in the earlier one's load position.
func NewRuleSet(compiled []*Compiled) *RuleSet {
	// Copy input to avoid aliasing the caller's slice
	ordered := make([]*Compiled, 0, len(compiled))
	seen := make(map[string]int, len(compiled))
	for _, c := range compiled {
		if i, ok := seen[c.ID()]; ok {
			ordered[i] = c
			continue
		}
		seen[c.ID()] = len(ordered)
		ordered = append(ordered, c)
	}

	slices.SortStableFunc(ordered, func(a, b *Compiled) int {
		return cmp.Compare(b.rule.Priority, a.rule.Priority)
	})

	index := make(map[string]int, len(ordered))
	for i, c := range ordered {
		index[c.ID()] = i
	}

	return &RuleSet{
		rules:       ordered,
		index:       index,
		fingerprint: fingerprint(ordered),
	}
}

// Empty returns a RuleSet with no rules.
func Empty() *RuleSet {
	return NewRuleSet(nil)
}

// Len returns the number of rules, enabled or not.
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// EnabledCount returns the number of enabled rules.
func (s *RuleSet) EnabledCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, c := range s.rules {
		if c.Enabled() {
			n++
		}
	}
	return n
}

// Compiled returns the rules in execution order.
// The returned slice is a copy; the elements are shared and immutable.
func (s *RuleSet) Compiled() []*Compiled {
	if s == nil {
		return nil
	}
	return slices.Clone(s.rules)
}

// Rules returns copies of the rule values in execution order.
func (s *RuleSet) Rules() []Rule {
	if s == nil {
		return nil
	}
	out := make([]Rule, len(s.rules))
	for i, c := range s.rules {
		out[i] = c.rule
	}
	return out
}

// Lookup returns the rule with the given id.
func (s *RuleSet) Lookup(id string) (*Compiled, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.rules[i], true
}

// Fingerprint returns the structural hash of the set. Two sets with the
// same rules, field values and order share a fingerprint.
func (s *RuleSet) Fingerprint() string {
	if s == nil {
		return Empty().fingerprint
	}
	return s.fingerprint
}

// WithEnabled returns a new RuleSet in which rule id has the given enabled
// flag. The receiver is left untouched. Returns false if id is unknown.
func (s *RuleSet) WithEnabled(id string, enabled bool) (*RuleSet, bool) {
	if s == nil {
		return s, false
	}
	i, ok := s.index[id]
	if !ok {
		return s, false
	}

	rules := slices.Clone(s.rules)
	rules[i] = rules[i].withEnabled(enabled)

	return &RuleSet{
		rules:       rules,
		index:       s.index,
		fingerprint: fingerprint(rules),
	}, true
}
