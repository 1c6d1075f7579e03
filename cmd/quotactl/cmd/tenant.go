package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ineyio/quotaledger"
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage tenants",
	Long:  "Register tenants and toggle their payment status.",
}

var (
	tenantName         string
	tenantLimit        int64
	tenantContractDate string
)

var tenantCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new tenant",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		contract := time.Now().UTC()
		if tenantContractDate != "" {
			var err error
			if contract, err = parseDate(tenantContractDate); err != nil {
				return err
			}
		}

		tenant, err := quotaledger.NewTenant(tenantName, tenantLimit, contract)
		if err != nil {
			return err
		}
		saved, err := backend.Tenants.Save(cmd.Context(), tenant)
		if err != nil {
			return fmt.Errorf("failed to save tenant: %w", err)
		}
		return render(cmd.OutOrStdout(), viewTenant(saved))
	},
}

var tenantSuspendCmd = &cobra.Command{
	Use:   "suspend <tenant-id>",
	Short: "Suspend a tenant with an overdue payment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActive(cmd, args[0], false)
	},
}

var tenantActivateCmd = &cobra.Command{
	Use:   "activate <tenant-id>",
	Short: "Reactivate a suspended tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActive(cmd, args[0], true)
	},
}

func setActive(cmd *cobra.Command, id string, active bool) error {
	tenant, err := backend.Tenants.FindByID(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to load tenant: %w", err)
	}
	if active {
		tenant.Activate()
	} else {
		tenant.Deactivate()
	}
	saved, err := backend.Tenants.Save(cmd.Context(), tenant)
	if err != nil {
		return fmt.Errorf("failed to save tenant: %w", err)
	}
	return render(cmd.OutOrStdout(), viewTenant(saved))
}

func init() {
	tenantCreateCmd.Flags().StringVar(&tenantName, "name", "", "tenant name")
	tenantCreateCmd.Flags().Int64Var(&tenantLimit, "limit", quotaledger.DefaultMonthlyLimit, "base monthly token limit")
	tenantCreateCmd.Flags().StringVar(&tenantContractDate, "contract-date", "", "contract date (YYYY-MM-DD), default today")
	_ = tenantCreateCmd.MarkFlagRequired("name")

	tenantCmd.AddCommand(tenantCreateCmd, tenantSuspendCmd, tenantActivateCmd)
	rootCmd.AddCommand(tenantCmd)
}
