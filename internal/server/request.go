package server

// ChatRequest is the body of POST /v1/chat/completions. Besides the
// OpenAI messages array, plain prompt, input and text fields are accepted.
type ChatRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages,omitempty"`
	Prompt   string    `json:"prompt,omitempty"`
	Input    string    `json:"input,omitempty"`
	Text     string    `json:"text,omitempty"`
}

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Content extracts the text to transform.
//
// The last message with role "user" wins, even if empty. Without one,
// the first non-empty of prompt, input and text is used. Messages of any
// other role are never used: a trailing assistant message is a prefill,
// not input.
func (r *ChatRequest) Content() (string, bool) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Content, true
		}
	}
	for _, s := range []string{r.Prompt, r.Input, r.Text} {
		if s != "" {
			return s, true
		}
	}
	return "", false
}
