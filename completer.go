package quotaledger

import "context"

// Completer is a token-consuming pipeline (chat, document Q&A) guarded by a Gate.
type Completer interface {
	// Complete runs the request and reports the tokens it actually used.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}
