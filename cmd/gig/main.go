package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gigline/internal/app"
	"gigline/internal/auth"
	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/repo"
	"gigline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "gig",
	Short: "Gigline CLI",
	Long: `Gigline runs a freelance marketplace ledger: customers post tasks, executors accept
them into contracts, and the task price sits in escrow until the customer settles.
Core concepts:
- Parties: admins, customers and executors. Each owns a wallet.
- Tasks: work orders moving REGISTERED -> IN_PROGRESS -> ON_CHECK -> (ON_FIX ->) DONE, or CANCELED.
- Contracts: created when an executor accepts a task; PAID holds the price, DONE pays the executor, TERMINATED refunds the customer.
- Event log: every change is recorded, view with 'gig log tail'.
Commands act as the party named by --as (default: the bootstrap admin).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GIGLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("as", "", "party to act as (default: bootstrap admin)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("as", rootCmd.PersistentFlags().Lookup("as"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(partyCmd())
	rootCmd.AddCommand(keyCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(contractCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage gigline.yml"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default gigline.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate gigline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(viper.GetString("workspace")); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	})
	return cfg
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show task counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				counts, err := a.Engine.Repo.CountTasksByStatus(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(counts)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Status", "Tasks"})
				for _, s := range []domain.TaskStatus{
					domain.TaskRegistered, domain.TaskInProgress, domain.TaskOnCheck,
					domain.TaskOnFix, domain.TaskDone, domain.TaskCanceled,
				} {
					tw.AppendRow(table.Row{s, counts[s]})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var after int64
	var entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show events in append order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				events, err := a.Engine.LatestEvents(ctx, repo.EventFilters{EntityKind: entityKind, EntityID: entityID, AfterID: after, Limit: n})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor", "Payload"})
				for _, e := range events {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityKind + "/" + e.EntityID, e.ActorID, e.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().Int64Var(&after, "after", 0, "show events after this id")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind (party, task, contract)")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func tokenCmd() *cobra.Command {
	tok := &cobra.Command{Use: "token", Short: "Bearer tokens"}
	var ttl time.Duration
	mint := &cobra.Command{
		Use:   "mint <party-id>",
		Short: "Mint a JWT for a party (requires GIGLINE_JWT_SECRET)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("GIGLINE_JWT_SECRET is required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Engine.GetParty(ctx, args[0])
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("ttl") {
					ttl = a.Config.TokenTTL()
				}
				token, err := auth.SignToken(secret, a.Config.Auth.JWTIssuer, auth.Caller{PartyID: p.ID, Role: p.Role}, ttl, time.Now())
				if err != nil {
					return err
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	mint.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from config)")
	tok.AddCommand(mint)
	return tok
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var legacyHeader, devLogin bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New(os.Stderr, "gigline: ", log.LstdFlags)
			a, err := app.Open(cmd.Context(), app.Options{
				Workspace: viper.GetString("workspace"),
				Auth:      auth.ContextAuthenticator{},
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			defer a.Close()
			authCfg := server.AuthConfig{
				JWTSecret:              viper.GetString("jwt-secret"),
				JWTIssuer:              a.Config.Auth.JWTIssuer,
				TokenTTL:               a.Config.TokenTTL(),
				AllowLegacyPartyHeader: legacyHeader,
				AllowDevLogin:          devLogin,
				Logger:                 logger,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("GIGLINE_JWT_SECRET is required for bearer auth")
			}
			if !cmd.Flags().Changed("addr") && a.Config.Server.Addr != "" {
				addr = a.Config.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") && a.Config.Server.BasePath != "" {
				basePath = a.Config.Server.BasePath
			}
			handler, err := server.New(server.Config{Engine: a.Engine, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Gigline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&legacyHeader, "allow-party-header", false, "trust X-Party-Id without credentials (local use only)")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "expose POST /auth/dev/login")
	return cmd
}

// --- helpers ---

// withApp opens the workspace and runs fn acting as the --as party.
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(ctx, app.Options{
		Workspace: viper.GetString("workspace"),
		Logger:    log.New(os.Stderr, "gigline: ", 0),
	})
	if err != nil {
		return err
	}
	defer a.Close()
	as := strings.TrimSpace(viper.GetString("as"))
	if as == "" {
		as = a.Config.Bootstrap.AdminID
	}
	a.Engine.Auth = auth.Static{Caller: auth.Caller{PartyID: as, Source: "cli"}}
	return fn(ctx, a)
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
