package metrics

// TokenUsage captures LLM token counts used to satisfy a request.
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens,omitempty"`
	TotalTokens      int `json:"totalTokens"`
}

// IsZero reports whether usage data is absent.
func (u TokenUsage) IsZero() bool {
	return u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0
}

// Add returns the element-wise sum of two usages.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// ObserveTokens records usage against the LLM token counter for operation.
func ObserveTokens(operation string, usage TokenUsage) {
	if usage.IsZero() {
		return
	}
	LLMTokensUsed.WithLabelValues(operation, "prompt").Add(float64(usage.PromptTokens))
	LLMTokensUsed.WithLabelValues(operation, "completion").Add(float64(usage.CompletionTokens))
}
