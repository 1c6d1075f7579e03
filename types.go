package quotaledger

// Message represents a chat message sent to a pipeline.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage represents token usage reported by a pipeline.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// CompletionRequest is the request a Gate forwards to a Completer.
type CompletionRequest struct {
	RequestID string    `json:"request_id,omitempty"`
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens *int      `json:"max_tokens,omitempty"`
}

// CompletionResponse is the pipeline's answer.
type CompletionResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// GateResult is a completion together with the period it was charged to.
type GateResult struct {
	Response CompletionResponse
	Period   *UsagePeriod
}

// IntPtr returns a pointer to the given int.
func IntPtr(v int) *int { return &v }
