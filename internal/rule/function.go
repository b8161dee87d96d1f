package rule

import "strings"

// Function enumerates the builtin text transforms a function rule may name.
type Function int

const (
	FuncUnknown Function = iota
	FuncUppercase
	FuncLowercase
	FuncTrim
	FuncTrimStart
	FuncTrimEnd
	FuncCapitalize
	FuncReverse
	FuncNormalizeWhitespace
)

// functionNames maps every accepted spelling, including aliases, to its
// Function. Keys are lowercase.
var functionNames = map[string]Function{
	"uppercase":            FuncUppercase,
	"upper":                FuncUppercase,
	"lowercase":            FuncLowercase,
	"lower":                FuncLowercase,
	"trim":                 FuncTrim,
	"trim_start":           FuncTrimStart,
	"trimstart":            FuncTrimStart,
	"ltrim":                FuncTrimStart,
	"trim_end":             FuncTrimEnd,
	"trimend":              FuncTrimEnd,
	"rtrim":                FuncTrimEnd,
	"capitalize":           FuncCapitalize,
	"cap":                  FuncCapitalize,
	"reverse":              FuncReverse,
	"normalize_whitespace": FuncNormalizeWhitespace,
	"normalize":            FuncNormalizeWhitespace,
}

var canonicalFunctionNames = map[Function]string{
	FuncUppercase:           "uppercase",
	FuncLowercase:           "lowercase",
	FuncTrim:                "trim",
	FuncTrimStart:           "trim_start",
	FuncTrimEnd:             "trim_end",
	FuncCapitalize:          "capitalize",
	FuncReverse:             "reverse",
	FuncNormalizeWhitespace: "normalize_whitespace",
}

// ParseFunction resolves a builtin name or alias, ignoring case and
// surrounding whitespace.
func ParseFunction(name string) (Function, bool) {
	f, ok := functionNames[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// String returns the canonical name.
func (f Function) String() string {
	if name, ok := canonicalFunctionNames[f]; ok {
		return name
	}
	return "unknown"
}

// FunctionNames returns the canonical builtin names in declaration order.
func FunctionNames() []string {
	names := make([]string, 0, len(canonicalFunctionNames))
	for f := FuncUppercase; f <= FuncNormalizeWhitespace; f++ {
		names = append(names, f.String())
	}
	return names
}
