// Package rule defines the handy-rules data model: rule kinds, rule values,
// validation, and the compiled, ordered RuleSet that the engine executes.
//
// LIFECYCLE:
//
// A Rule is a plain value decoded from a rule source. Compile validates it
// and resolves its executable artifact exactly once:
//   - regex rules compile to a *regexp2.Regexp (rune based, Unicode \b)
//   - function rules resolve to a closed Function enumeration
//   - shell rules resolve their effective timeout
//
// NewRuleSet orders compiled rules by priority descending. Ties keep the
// order in which rules were handed in (first seen wins), so two loads of the
// same sources always yield the same execution order.
//
// IMMUTABILITY:
//
// A RuleSet is never mutated after construction. Toggling a rule produces a
// new RuleSet (see RuleSet.WithEnabled) that shares the compiled artifacts of
// its predecessor. Compiled regexes are safe for concurrent use, so any number
// of requests may execute the same RuleSet in parallel.
package rule
