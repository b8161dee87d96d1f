package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// snapshot is the golden form of a result: what each case produced,
// without pass/fail bookkeeping.
type snapshot struct {
	Scenario string         `json:"scenario"`
	Cases    []caseSnapshot `json:"cases"`
}

type caseSnapshot struct {
	Name    string   `json:"name"`
	Input   string   `json:"input"`
	Output  string   `json:"output"`
	Matched []string `json:"matched"`
}

// MarshalGolden renders the outputs of result as stable, indented JSON.
func MarshalGolden(result *Result) ([]byte, error) {
	snap := snapshot{Scenario: result.Scenario, Cases: make([]caseSnapshot, 0, len(result.Cases))}
	for _, c := range result.Cases {
		snap.Cases = append(snap.Cases, caseSnapshot{
			Name:    c.Name,
			Input:   c.Input,
			Output:  c.Output,
			Matched: c.Matched,
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// AssertGolden compares result with testdata/golden/<scenario>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, result *Result) {
	t.Helper()

	data, err := MarshalGolden(result)
	if err != nil {
		t.Fatalf("marshal golden: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, result.Scenario, data)
}
