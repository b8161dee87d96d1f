package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChatRequest_Content(t *testing.T) {
	tests := []struct {
		name string
		req  ChatRequest
		want string
		ok   bool
	}{
		{
			name: "last user message",
			req: ChatRequest{Messages: []Message{
				{Role: "system", Content: "be terse"},
				{Role: "user", Content: "first"},
				{Role: "assistant", Content: "reply"},
				{Role: "user", Content: "second"},
			}},
			want: "second", ok: true,
		},
		{
			name: "trailing assistant message ignored",
			req: ChatRequest{Messages: []Message{
				{Role: "user", Content: "hello"},
				{Role: "assistant", Content: "prefill"},
			}},
			want: "hello", ok: true,
		},
		{
			name: "empty user message wins over prompt",
			req:  ChatRequest{Messages: []Message{{Role: "user"}}, Prompt: "p"},
			want: "", ok: true,
		},
		{
			name: "prompt field",
			req:  ChatRequest{Prompt: "p", Input: "i"},
			want: "p", ok: true,
		},
		{
			name: "input field",
			req:  ChatRequest{Input: "i", Text: "t"},
			want: "i", ok: true,
		},
		{
			name: "text field",
			req:  ChatRequest{Text: "t"},
			want: "t", ok: true,
		},
		{
			name: "only system message",
			req:  ChatRequest{Messages: []Message{{Role: "system", Content: "x"}}},
			ok:   false,
		},
		{
			name: "nothing",
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.req.Content()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResponseID_Deterministic(t *testing.T) {
	a := ResponseID("hello world")
	assert.Equal(t, a, ResponseID("hello world"))
	assert.NotEqual(t, a, ResponseID("hello world!"))
	assert.Regexp(t, `^local-[0-9a-f]{8}-[0-9a-f]{4}-5[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`, a)
}
