package quotaledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Gate charges a pipeline's token usage to a tenant's quota. It refuses work up
// front when the estimate does not fit, and debits the reported usage afterwards.
type Gate struct {
	ledger    *Ledger
	completer Completer
	logger    *zap.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateLogger sets the gate's logger.
func WithGateLogger(l *zap.Logger) GateOption {
	return func(g *Gate) { g.logger = l }
}

// NewGate creates a Gate in front of completer.
func NewGate(ledger *Ledger, completer Completer, opts ...GateOption) (*Gate, error) {
	if ledger == nil || completer == nil {
		return nil, fmt.Errorf("quotaledger: gate requires a ledger and a completer")
	}
	g := &Gate{ledger: ledger, completer: completer}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	return g, nil
}

// Complete runs req for tenantID. If the completion succeeds but charging it
// fails, the response is returned together with the charging error.
func (g *Gate) Complete(ctx context.Context, tenantID string, req CompletionRequest) (GateResult, error) {
	estimated := EstimateTokens(req)
	current, err := g.ledger.CurrentPeriod(ctx, tenantID)
	if err != nil {
		return GateResult{}, err
	}
	if current.Remaining() < estimated {
		return GateResult{}, g.ledger.reject("gate", tenantID, &QuotaExceededError{
			TenantID:   tenantID,
			Remaining:  current.Remaining(),
			Requested:  estimated,
			TotalLimit: current.TotalLimit(),
		})
	}

	start := time.Now()
	resp, err := g.completer.Complete(ctx, req)
	if err != nil {
		return GateResult{}, fmt.Errorf("quotaledger: completion for tenant %s: %w", tenantID, err)
	}

	result := GateResult{Response: resp}
	if resp.Usage.TotalTokens <= 0 {
		return result, nil
	}

	period, err := g.ledger.Consume(ctx, tenantID, resp.Usage.TotalTokens, map[string]string{
		"model":      resp.Model,
		"request_id": req.RequestID,
	})
	if err != nil {
		g.logger.Warn("completion not charged",
			zap.String("tenant_id", tenantID),
			zap.Int64("tokens", resp.Usage.TotalTokens),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return result, err
	}
	result.Period = period
	return result, nil
}
