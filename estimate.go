package quotaledger

// EstimateTokens provides a rough token count estimate for messages.
// Uses the approximation: ~4 chars per token + overhead per message.
// A MaxTokens hint on the request is added as the expected completion size.
func EstimateTokens(req CompletionRequest) int64 {
	var total int64
	for _, m := range req.Messages {
		// ~4 chars per token
		total += int64(len(m.Content)) / 4
		// overhead per message (role, formatting)
		total += 4
	}
	// base overhead for the request
	total += 3
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		total += int64(*req.MaxTokens)
	}
	return total
}
