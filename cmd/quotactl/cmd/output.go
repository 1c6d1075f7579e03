package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ineyio/quotaledger"
)

// periodView is the printed form of a usage period.
type periodView struct {
	ID              string  `json:"id" yaml:"id"`
	TenantID        string  `json:"tenant_id" yaml:"tenant_id"`
	PeriodStart     string  `json:"period_start" yaml:"period_start"`
	PeriodEnd       string  `json:"period_end" yaml:"period_end"`
	BaseLimit       int64   `json:"base_limit" yaml:"base_limit"`
	ExtraCredits    int64   `json:"extra_credits" yaml:"extra_credits"`
	TotalLimit      int64   `json:"total_limit" yaml:"total_limit"`
	Consumed        int64   `json:"consumed" yaml:"consumed"`
	Remaining       int64   `json:"remaining" yaml:"remaining"`
	UsagePercentage float64 `json:"usage_percentage" yaml:"usage_percentage"`
}

func viewPeriod(p *quotaledger.UsagePeriod) *periodView {
	if p == nil {
		return nil
	}
	return &periodView{
		ID:              p.ID,
		TenantID:        p.TenantID,
		PeriodStart:     p.PeriodStart.Format(time.DateOnly),
		PeriodEnd:       p.PeriodEnd.Format(time.DateOnly),
		BaseLimit:       p.BaseLimit,
		ExtraCredits:    p.ExtraCredits,
		TotalLimit:      p.TotalLimit(),
		Consumed:        p.TokensConsumed,
		Remaining:       p.Remaining(),
		UsagePercentage: p.UsagePercentage(),
	}
}

func viewPeriods(ps []*quotaledger.UsagePeriod) []*periodView {
	out := make([]*periodView, 0, len(ps))
	for _, p := range ps {
		out = append(out, viewPeriod(p))
	}
	return out
}

// tenantView is the printed form of a tenant.
type tenantView struct {
	ID                string `json:"id" yaml:"id"`
	Name              string `json:"name" yaml:"name"`
	Active            bool   `json:"active" yaml:"active"`
	BaseMonthlyLimit  int64  `json:"base_monthly_limit" yaml:"base_monthly_limit"`
	ContractAnchorDay int    `json:"contract_anchor_day" yaml:"contract_anchor_day"`
}

func viewTenant(t *quotaledger.Tenant) *tenantView {
	return &tenantView{
		ID:                t.ID,
		Name:              t.Name,
		Active:            t.Active,
		BaseMonthlyLimit:  t.BaseMonthlyLimit,
		ContractAnchorDay: t.ContractAnchorDay,
	}
}

func render(w io.Writer, v any) error {
	switch strings.ToLower(outputFormat) {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
}
