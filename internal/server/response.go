package server

import (
	"time"

	"github.com/google/uuid"

	"github.com/roach88/handyrules/internal/history"
	"github.com/roach88/handyrules/internal/rule"
)

// ModelID is the only model the service reports.
const ModelID = "local-rules"

// responseNamespace derives response ids; the bytes spell "handy-local-rule".
var responseNamespace = uuid.UUID{
	0x68, 0x61, 0x6e, 0x64, 0x79, 0x2d, 0x6c, 0x6f,
	0x63, 0x61, 0x6c, 0x2d, 0x72, 0x75, 0x6c, 0x65,
}

// ResponseID returns the deterministic id for a response to input.
func ResponseID(input string) string {
	return "local-" + uuid.NewSHA1(responseNamespace, []byte(input)).String()
}

// ChatResponse is an OpenAI chat.completion envelope.
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is one completion choice.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage is always zero; no tokens are consumed.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewChatResponse wraps the transformed text of input.
func NewChatResponse(input, output string, created time.Time) ChatResponse {
	return ChatResponse{
		ID:      ResponseID(input),
		Object:  "chat.completion",
		Created: created.Unix(),
		Model:   ModelID,
		Choices: []Choice{{
			Index:        0,
			Message:      Message{Role: "assistant", Content: output},
			FinishReason: "stop",
		}},
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	RulesLoaded    int    `json:"rules_loaded"`
	RulesEnabled   int    `json:"rules_enabled"`
	RuleSetVersion uint64 `json:"ruleset_version"`
}

// ModelsResponse is the body of GET /v1/models.
type ModelsResponse struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// ModelInfo describes one model.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// RuleInfo is one rule in GET /v1/rules.
type RuleInfo struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"rule_type"`
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Priority    int    `json:"priority"`
	Enabled     bool   `json:"enabled"`
	StopOnMatch bool   `json:"stop_on_match,omitempty"`
	SourceFile  string `json:"source_file,omitempty"`
}

// NewRuleInfo describes r.
func NewRuleInfo(r rule.Rule) RuleInfo {
	return RuleInfo{
		ID:          r.ID,
		Description: r.Description,
		Kind:        string(r.Kind),
		Pattern:     r.Pattern,
		Replacement: r.Replacement,
		Priority:    r.Priority,
		Enabled:     r.Enabled,
		StopOnMatch: r.StopOnMatch,
		SourceFile:  r.SourceFile,
	}
}

// RulesResponse is the body of GET /v1/rules.
type RulesResponse struct {
	Rules   []RuleInfo `json:"rules"`
	Count   int        `json:"count"`
	Version uint64     `json:"version"`
}

// ToggleRequest optionally sets the flag instead of flipping it.
type ToggleRequest struct {
	Enabled *bool `json:"enabled"`
}

// ToggleResponse is the body of POST /v1/rules/{id}/toggle.
type ToggleResponse struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
}

// LogsResponse is the body of GET /v1/logs.
type LogsResponse struct {
	Logs  []history.Entry `json:"logs"`
	Count int             `json:"count"`
}

// ErrorResponse is the OpenAI-style error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes one error.
type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
