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

func taskCmd() *cobra.Command {
	t := &cobra.Command{Use: "task", Short: "Manage tasks"}
	t.AddCommand(taskCreateCmd())
	t.AddCommand(taskListCmd())
	t.AddCommand(taskShowCmd())
	t.AddCommand(taskUpdateCmd())
	t.AddCommand(taskTransitionsCmd())
	t.AddCommand(taskDeleteCmd())
	return t
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var price string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a task as the --as customer",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", price, err)
			}
			opts.Price = p
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "task id (generated when empty)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&price, "price", "", "price")
	cmd.Flags().StringVar(&opts.CompletionDeadline, "deadline", "", "completion deadline (RFC 3339)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				tasks, err := a.Engine.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Price", "Customer", "Executor"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Price.StringFixed(2), t.CustomerID, domain.Deref(t.ExecutorID)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.CustomerID, "customer-id", "", "customer filter")
	cmd.Flags().StringVar(&f.ExecutorID, "executor-id", "", "executor filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 100, "max rows")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var status, decision, title, description, price, deadline string
	var version int64
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit, review or submit a task",
		Long: `Customers edit REGISTERED tasks, cancel them, or review ON_CHECK work (DONE or ON_FIX).
Executors submit with --status ON_CHECK --decision <result>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskUpdateOptions{ID: args[0], ExpectedVersion: version}
			if cmd.Flags().Changed("status") {
				s, err := domain.ParseTaskStatus(status)
				if err != nil {
					return err
				}
				opts.Status = &s
			}
			if cmd.Flags().Changed("decision") {
				opts.Decision = &decision
			}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("deadline") {
				opts.CompletionDeadline = optionalString(deadline)
			}
			if cmd.Flags().Changed("price") {
				p, err := decimal.NewFromString(price)
				if err != nil {
					return fmt.Errorf("invalid price %q: %w", price, err)
				}
				opts.Price = &p
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "target status")
	cmd.Flags().StringVar(&decision, "decision", "", "executor's result")
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&price, "price", "", "price")
	cmd.Flags().StringVar(&deadline, "deadline", "", "completion deadline (RFC 3339)")
	cmd.Flags().Int64Var(&version, "version", 0, "expected version (optimistic lock)")
	return cmd
}

func taskTransitionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transitions <id>",
		Short: "Statuses the --as party may move the task to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				next, err := a.Engine.TaskTransitions(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(next)
				}
				if len(next) == 0 {
					fmt.Println("no transitions available")
				}
				for _, s := range next {
					fmt.Println(s)
				}
				return nil
			})
		},
	}
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a finished task and its settled contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Engine.DeleteTask(ctx, args[0])
			})
		},
	}
}
