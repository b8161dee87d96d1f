package engine

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/handyrules/internal/rule"
)

// functionTable is the closed dispatch table for function rules. Every
// rule.Function a Compiled rule can carry has an entry.
//
// A cases.Caser keeps state and is not safe for concurrent use, so one is
// created per call.
var functionTable = map[rule.Function]func(string) string{
	rule.FuncUppercase:  func(s string) string { return cases.Upper(language.Und).String(s) },
	rule.FuncLowercase:  func(s string) string { return cases.Lower(language.Und).String(s) },
	rule.FuncTrim:       func(s string) string { return strings.TrimFunc(s, unicode.IsSpace) },
	rule.FuncTrimStart:  func(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) },
	rule.FuncTrimEnd:    func(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) },
	rule.FuncCapitalize: capitalize,
	rule.FuncReverse:    reverse,
	rule.FuncNormalizeWhitespace: func(s string) string {
		return strings.Join(strings.Fields(s), " ")
	},
}

// capitalize upper-cases the first rune and leaves the rest unchanged.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return cases.Upper(language.Und).String(string(r)) + s[size:]
}

func reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

func applyFunction(c *rule.Compiled, text string) string {
	fn, ok := functionTable[c.Function()]
	if !ok {
		// Unreachable for rules built by rule.Compile.
		return text
	}
	return fn(text)
}
