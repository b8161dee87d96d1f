package rule

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

)

// DomainRuleSet prefixes rule set fingerprints. The version suffix allows
// the encoding to change without colliding with older fingerprints.
const DomainRuleSet = "handyrules/ruleset/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// fingerprintRule is the canonical form of a rule for hashing.
// SourceFile is excluded: moving a rule between files does not change
// what it does.
type fingerprintRule struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Kind        Kind   `json:"type"`
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Priority    int    `json:"priority"`
	Enabled     bool   `json:"enabled"`
	IgnoreCase  bool   `json:"ignore_case"`
	StopOnMatch bool   `json:"stop_on_match"`
	TimeoutMS   int    `json:"timeout_ms"`
	FuzzyKey    bool   `json:"fuzzy_key"`
}

// fingerprint hashes the ordered rules. Strings are compared byte-for-byte,
// as the regex executor matches them.
func fingerprint(rules []*Compiled) string {
	canon := make([]fingerprintRule, len(rules))
	for i, c := range rules {
		r := c.rule
		canon[i] = fingerprintRule{
			ID:          r.ID,
			Description: r.Description,
			Kind:        r.Kind,
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
			Priority:    r.Priority,
			Enabled:     r.Enabled,
			IgnoreCase:  r.IgnoreCase,
			StopOnMatch: r.StopOnMatch,
			TimeoutMS:   r.TimeoutMS,
			FuzzyKey:    r.FuzzyKey,
		}
	}

	// Struct field order makes the encoding deterministic; the slice
	// cannot contain unsupported values, so Marshal cannot fail.
	data, err := json.Marshal(canon)
	if err != nil {
		panic("rule: fingerprint marshal: " + err.Error())
	}
	return hashWithDomain(DomainRuleSet, data)
}
