package main

import (
	"context"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gigline/internal/app"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/repo"
)

func contractCmd() *cobra.Command {
	c := &cobra.Command{Use: "contract", Short: "Manage contracts and escrow"}
	c.AddCommand(contractCreateCmd())
	c.AddCommand(contractListCmd())
	c.AddCommand(contractShowCmd())
	c.AddCommand(contractSettleCmd())
	c.AddCommand(contractTransfersCmd())
	c.AddCommand(contractDeleteCmd())
	return c
}

func contractCreateCmd() *cobra.Command {
	var opts engine.ContractCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Accept a task as the --as executor and escrow its price",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if opts.ExecutorID == "" {
					me, err := a.Engine.Me(ctx)
					if err != nil {
						return err
					}
					opts.ExecutorID = me.ID
				}
				c, err := a.Engine.CreateContract(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "contract id (generated when empty)")
	cmd.Flags().StringVar(&opts.TaskID, "task", "", "task id")
	cmd.Flags().StringVar(&opts.ExecutorID, "executor", "", "executor id (default: --as)")
	cmd.Flags().StringVar(&opts.ConfirmationCode, "code", "", "confirmation code")
	cmd.Flags().StringVar(&opts.RepeatConfirmationCode, "repeat-code", "", "confirmation code, repeated")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("repeat-code")
	return cmd
}

func contractListCmd() *cobra.Command {
	var f repo.ContractFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contracts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListContracts(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Task", "Customer", "Executor", "Amount", "Status"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.TaskID, c.CustomerID, c.ExecutorID, c.Amount.StringFixed(2), c.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.TaskID, "task", "", "task filter")
	cmd.Flags().StringVar(&f.CustomerID, "customer-id", "", "customer filter")
	cmd.Flags().StringVar(&f.ExecutorID, "executor-id", "", "executor filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 100, "max rows")
	return cmd
}

func contractShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c, err := a.Engine.GetContract(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
}

func contractSettleCmd() *cobra.Command {
	var version int64
	cmd := &cobra.Command{
		Use:   "settle <id> <DONE|TERMINATED>",
		Short: "Pay the executor (DONE) or refund the customer (TERMINATED)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := domain.ParseContractStatus(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c, err := a.Engine.UpdateContract(ctx, engine.ContractUpdateOptions{ID: args[0], Status: status, ExpectedVersion: version})
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "expected version (optimistic lock)")
	return cmd
}

func contractTransfersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transfers <id>",
		Short: "Escrow movements of a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListTransfers(ctx, repo.TransferFilters{ContractID: args[0]})
				if err != nil {
					return err
				}
				return printTransfers(items)
			})
		},
	}
}

func contractDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a settled contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Engine.DeleteContract(ctx, args[0])
			})
		},
	}
}
