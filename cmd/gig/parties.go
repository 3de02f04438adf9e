package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gigline/internal/app"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/repo"
)

func partyCmd() *cobra.Command {
	p := &cobra.Command{Use: "party", Short: "Manage parties and wallets"}
	p.AddCommand(partyCreateCmd())
	p.AddCommand(partyListCmd())
	p.AddCommand(partyShowCmd())
	p.AddCommand(partyStatusCmd())
	p.AddCommand(partyDepositCmd())
	p.AddCommand(partyTransfersCmd())
	p.AddCommand(partyMeCmd())
	return p
}

func partyCreateCmd() *cobra.Command {
	var id, name, role, status string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a party (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := domain.ParseRole(role)
			if err != nil {
				return err
			}
			opts := engine.PartyCreateOptions{ID: id, Name: name, Role: r}
			if status != "" {
				if opts.Status, err = domain.ParsePartyStatus(status); err != nil {
					return err
				}
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Engine.CreateParty(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "party id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "", "ADMIN, CUSTOMER or EXECUTOR")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default CREATED)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func partyListCmd() *cobra.Command {
	var f repo.PartyFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List parties",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				parties, err := a.Engine.ListParties(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(parties)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Role", "Status", "Wallet"})
				for _, p := range parties {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Role, p.Status, p.Wallet.StringFixed(2)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Role, "role", "", "role filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 100, "max rows")
	return cmd
}

func partyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a party",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Engine.GetParty(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func partyMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the party selected with --as",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Engine.Me(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func partyStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <CREATED|ACTIVE|BLOCKED|DELETED>",
		Short: "Change a party's status (admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := domain.ParsePartyStatus(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Engine.SetPartyStatus(ctx, args[0], status)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func partyDepositCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <id> <amount>",
		Short: "Credit a party's wallet (admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Engine.Deposit(ctx, args[0], amount)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func partyTransfersCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "transfers <id>",
		Short: "Wallet movements touching a party",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListTransfers(ctx, repo.TransferFilters{PartyID: args[0], Limit: limit})
				if err != nil {
					return err
				}
				return printTransfers(items)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func printTransfers(items []domain.WalletTransfer) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"Created", "Reason", "From", "To", "Contract", "Amount"})
	for _, t := range items {
		tw.AppendRow(table.Row{t.CreatedAt, t.Reason, sideOrEscrow(t.FromPartyID), sideOrEscrow(t.ToPartyID), domain.Deref(t.ContractID), t.Amount.StringFixed(2)})
	}
	tw.Render()
	return nil
}

func sideOrEscrow(id *string) string {
	if id == nil {
		return "(escrow)"
	}
	return *id
}

func keyCmd() *cobra.Command {
	k := &cobra.Command{Use: "key", Short: "Manage API keys"}
	var party, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Issue an API key; the raw key is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				key, raw, err := a.Engine.CreateAPIKey(ctx, party, name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "party_id": key.PartyID, "name": key.Name, "key": raw})
				}
				fmt.Printf("API key %s for %s: %s\n", key.ID, key.PartyID, raw)
				return nil
			})
		},
	}
	create.Flags().StringVar(&party, "party", "", "owner party (default: --as)")
	create.Flags().StringVar(&name, "name", "", "label")

	var listParty string
	list := &cobra.Command{
		Use:   "list",
		Short: "List API keys of a party",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				owner := listParty
				if owner == "" {
					me, err := a.Engine.Me(ctx)
					if err != nil {
						return err
					}
					owner = me.ID
				}
				keys, err := a.Engine.ListAPIKeys(ctx, owner)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Party", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.PartyID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&listParty, "party", "", "owner party (default: --as)")

	var revokeParty string
	revoke := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				owner := revokeParty
				if owner == "" {
					me, err := a.Engine.Me(ctx)
					if err != nil {
						return err
					}
					owner = me.ID
				}
				return a.Engine.RevokeAPIKey(ctx, owner, args[0])
			})
		},
	}
	revoke.Flags().StringVar(&revokeParty, "party", "", "owner party (default: --as)")

	k.AddCommand(create, list, revoke)
	return k
}
