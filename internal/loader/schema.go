package loader

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cuejson "cuelang.org/go/encoding/json"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// SchemaError is one strict-schema violation found by CheckSchema.
type SchemaError struct {
	Path    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// CheckSchema validates a rule file against the strict rule schema.
//
// Load is lenient: unknown fields are ignored and defaults filled in.
// CheckSchema is what `validate` uses to also flag typos such as
// "ignorecase" or a string where a priority number belongs.
func CheckSchema(path string) []error {
	data, err := os.ReadFile(path)
	if err != nil {
		return []error{&SourceError{Code: ErrCodeSourceRead, Path: path, Err: err}}
	}

	if isYAML(path) {
		// CUE's JSON extractor gives positions; YAML is converted first.
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return []error{&SourceError{Code: ErrCodeSourceParse, Path: path, Err: err}}
		}
		if data, err = json.Marshal(v); err != nil {
			return []error{&SourceError{Code: ErrCodeSourceParse, Path: path, Err: err}}
		}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return []error{fmt.Errorf("compile rule schema: %w", err)}
	}

	expr, err := cuejson.Extract(path, data)
	if err != nil {
		return []error{&SourceError{Code: ErrCodeSourceParse, Path: path, Err: err}}
	}
	doc := ctx.BuildExpr(expr)

	unified := schema.LookupPath(cue.ParsePath("#Rules")).Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		var errs []error
		for _, e := range cueerrors.Errors(err) {
			format, args := e.Msg()
			errs = append(errs, &SchemaError{
				Path:    path,
				Message: fmt.Sprintf("%s: %s", strings.Join(e.Path(), "."), fmt.Sprintf(format, args...)),
				Pos:     e.Position(),
			})
		}
		return errs
	}
	return nil
}
