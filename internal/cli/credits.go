package cli

import (
	"fmt"

	"homebids/internal/models"

	"github.com/spf13/cobra"
)

func NewCreditsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Inspect and grant contractor credits",
	}

	cmd.AddCommand(&cobra.Command{
		Use:          "grant <contractor-id> <amount>",
		Short:        "Add credits to a contractor account",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := models.ParseCredits(args[1])
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}

			return withBackend(opts, func(b Backend) error {
				entry, err := b.GrantCredits(cmd.Context(), args[0], amount)
				if err != nil {
					return err
				}
				text := fmt.Sprintf("granted %s to %s, balance %s", entry.Amount, entry.ContractorId, entry.BalanceAfter)
				return output(cmd.OutOrStdout(), opts, entry, text)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:          "balance <contractor-id>",
		Short:        "Show a contractor's balance",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(opts, func(b Backend) error {
				actor := models.Actor{Id: args[0], Role: models.RoleContractor}
				account, err := b.GetBalance(cmd.Context(), actor)
				if err != nil {
					return err
				}
				return output(cmd.OutOrStdout(), opts, account, account.Balance.String())
			})
		},
	})

	return cmd
}
