// Package engine applies a rule set to a string of dictated text.
//
// PIPELINE:
//
// Apply walks the enabled rules of one RuleSet in its fixed order
// (priority descending, load order on ties). Each rule receives the output
// of the previous one. Every evaluated rule leaves a TraceEntry:
//   - matched: the rule took effect
//   - no_match: the rule ran and left the text alone
//   - failed: the rule errored; its effect is dropped, the pipeline goes on
//   - skipped: a shell rule met an engine with shell rules disabled
//
// A matching rule with stop_on_match ends the pipeline right after its own
// effect.
//
// EXECUTORS:
//
// Regex rules use github.com/dlclark/regexp2, which matches over runes, so
// \b is a Unicode word boundary and "slashing" never matches \bslash\b.
// Function rules dispatch through a closed table keyed by rule.Function.
// Shell rules run `sh -c` in their own process group, bounded by the rule's
// timeout and by the request context; on either, the whole group is killed.
//
// CONCURRENCY:
//
// The caller takes one snapshot per request and passes it to Apply. A
// reload that lands mid-request cannot change what that request sees.
// Shell rules block only the request running them; nothing serializes
// concurrent invocations of the same rule.
package engine
