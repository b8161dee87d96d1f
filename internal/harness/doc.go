// Package harness runs rule scenarios: YAML files that pair a set of rule
// sources with example inputs and the output the rules must produce.
//
// A scenario is the executable documentation of a rule file. Each case
// runs through the real loader and engine, so a scenario passing means a
// server loading the same files answers the same way.
//
//	name: punctuation
//	description: spoken punctuation becomes symbols
//	rules: [rules.json]
//	cases:
//	  - name: comma
//	    input: hello comma world
//	    expect: hello, world
//	    matched: [comma]
//
// Rule paths are resolved relative to the scenario file. Unknown fields
// are rejected so typos fail loudly.
package harness
