package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ineyio/quotaledger"
)

var statusCmd = &cobra.Command{
	Use:   "status <tenant-id>",
	Short: "Show a tenant's current quota",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st := backend.Ledger.Status(cmd.Context(), args[0])
		return render(cmd.OutOrStdout(), st)
	},
}

var consumeMeta []string

var consumeCmd = &cobra.Command{
	Use:   "consume <tenant-id> <tokens>",
	Short: "Debit tokens from a tenant's current period",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		metadata := make(map[string]string, len(consumeMeta))
		for _, kv := range consumeMeta {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("metadata %q must be key=value", kv)
			}
			metadata[k] = v
		}

		period, err := backend.Ledger.Consume(cmd.Context(), args[0], amount, metadata)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), viewPeriod(period))
	},
}

var creditsReason string

var creditsCmd = &cobra.Command{
	Use:   "credits <tenant-id> <tokens>",
	Short: "Add purchased credits to a tenant's current period",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		period, err := backend.Ledger.AddCredits(cmd.Context(), args[0], amount, creditsReason)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), viewPeriod(period))
	},
}

var limitChangedBy string

var limitCmd = &cobra.Command{
	Use:   "limit <tenant-id> <monthly-limit>",
	Short: "Change a tenant's base monthly limit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		tenant, period, err := backend.Ledger.UpdateMonthlyLimit(cmd.Context(), args[0], limit, limitChangedBy)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), struct {
			Tenant *tenantView `json:"tenant" yaml:"tenant"`
			Period *periodView `json:"current_period,omitempty" yaml:"current_period,omitempty"`
		}{viewTenant(tenant), viewPeriod(period)})
	},
}

var (
	historyFrom  string
	historyTo    string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history <tenant-id>",
	Short: "List a tenant's periods, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := quotaledger.PeriodFilter{Limit: historyLimit}
		var err error
		if filter.From, err = parseDate(historyFrom); err != nil {
			return err
		}
		if filter.To, err = parseDate(historyTo); err != nil {
			return err
		}

		periods, err := backend.Ledger.History(cmd.Context(), args[0], filter)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), viewPeriods(periods))
	},
}

var expiredLimit int

var expiredCmd = &cobra.Command{
	Use:   "expired",
	Short: "List periods that have ended",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		periods, err := backend.Ledger.Expired(cmd.Context(), expiredLimit)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), viewPeriods(periods))
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the tenant and period tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if backend.Migrate == nil {
			return fmt.Errorf("backend has no schema to migrate")
		}
		if err := backend.Migrate(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
		return nil
	},
}

func parseAmount(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token amount %q", s)
	}
	return n, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

func init() {
	consumeCmd.Flags().StringArrayVar(&consumeMeta, "meta", nil, "audit metadata as key=value (repeatable)")
	creditsCmd.Flags().StringVar(&creditsReason, "reason", "", "reason recorded in the audit log")
	limitCmd.Flags().StringVar(&limitChangedBy, "changed-by", "", "operator recorded in the audit log")
	historyCmd.Flags().StringVar(&historyFrom, "from", "", "only periods ending on or after this date (YYYY-MM-DD)")
	historyCmd.Flags().StringVar(&historyTo, "to", "", "only periods starting on or before this date (YYYY-MM-DD)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "maximum number of periods (1-100)")
	expiredCmd.Flags().IntVar(&expiredLimit, "limit", 50, "maximum number of periods, 0 for all")

	rootCmd.AddCommand(statusCmd, consumeCmd, creditsCmd, limitCmd, historyCmd, expiredCmd, migrateCmd)
}
