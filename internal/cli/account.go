package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	id "becoming/pkg/domain"
)

type accountEntry struct {
	Name    string       `json:"name,omitempty"`
	Account id.AccountID `json:"account"`
}

// NewAccountCommand groups identity helpers.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Development identities",
	}
	cmd.AddCommand(newAccountListCommand(rootOpts))
	cmd.AddCommand(newAccountDeriveCommand(rootOpts))
	cmd.AddCommand(newAccountResolveCommand(rootOpts))
	return cmd
}

func newAccountListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the named development accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := make([]accountEntry, 0, len(id.DevAccountNames))
			lines := make([]string, 0, len(id.DevAccountNames))
			for _, name := range id.DevAccountNames {
				account := id.DevAccount(name)
				entries = append(entries, accountEntry{Name: name, Account: account})
				lines = append(lines, fmt.Sprintf("%-8s %s", name, account))
			}
			return output(cmd.OutOrStdout(), rootOpts, entries, lines...)
		},
	}
}

func newAccountDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "derive <seed>",
		Short: "Derive an identity from an arbitrary seed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := id.DeriveAccountID(args[0])
			return output(cmd.OutOrStdout(), rootOpts, accountEntry{Account: account}, account.String())
		},
	}
}

func newAccountResolveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <name|hex>",
		Short: "Resolve a development account name or validate a hex identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := id.ResolveAccount(args[0])
			if err != nil {
				return err
			}
			return output(cmd.OutOrStdout(), rootOpts, accountEntry{Account: account}, account.String())
		},
	}
}
