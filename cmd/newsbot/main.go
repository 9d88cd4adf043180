// NewsBot harvests Peruvian news outlets into the newsdesk store.
//
// Usage:
//
//	newsbot sweep [--category regional]   # run one sweep and print the report
//	newsbot sources [--category nacional] # list configured sources
//	newsbot purge                         # delete rows from banned sources
//	newsbot migrate                       # apply schema migrations
//	newsbot stats                         # stored item counts
//	newsbot token --subject ops           # bearer token for POST /api/scrape
//	newsbot version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RobinCoderZhao/newsdesk/internal/api"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/app"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/sources"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/store"
	"github.com/RobinCoderZhao/newsdesk/pkg/logger"
	"github.com/RobinCoderZhao/newsdesk/pkg/storage"
)

var version = "dev"

type globalFlags struct {
	configPath string
	dsn        string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:          "newsbot",
		Short:        "Peruvian news harvester",
		Long:         "NewsBot recorre los portales configurados, clasifica las noticias y las guarda sin duplicados.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "newsdesk.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&g.dsn, "db", "", "database DSN (overrides the config file)")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(sweepCmd(g))
	rootCmd.AddCommand(sourcesCmd(g))
	rootCmd.AddCommand(purgeCmd(g))
	rootCmd.AddCommand(migrateCmd(g))
	rootCmd.AddCommand(statsCmd(g))
	rootCmd.AddCommand(tokenCmd(g))
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

func (g *globalFlags) config() (app.Config, error) {
	cfg, err := app.LoadConfig(g.configPath)
	if err != nil {
		return cfg, err
	}
	if g.dsn != "" {
		cfg.Database.DSN = g.dsn
		if strings.HasPrefix(g.dsn, "postgres://") || strings.HasPrefix(g.dsn, "postgresql://") {
			cfg.Database.Driver = storage.Postgres
		}
	}
	if g.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// open loads config and wires the harvester. The caller closes the App.
func (g *globalFlags) open(ctx context.Context) (*app.App, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg, log)
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func sweepCmd(g *globalFlags) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one harvest sweep and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			a, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if category == "" {
				renderSweep(cmd.OutOrStdout(), a.Pipeline.RunFullSweep(ctx))
				return nil
			}
			report, err := a.Pipeline.RunSweepForCategory(ctx, strings.ToLower(category))
			if err != nil {
				return err
			}
			renderSweep(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only sources with this category hint ("+strings.Join(sources.Categories(), ", ")+")")
	return cmd
}

func sourcesCmd(g *globalFlags) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			catalog := sources.Default()
			if cfg.CatalogPath != "" {
				if catalog, err = sources.LoadCatalog(cfg.CatalogPath); err != nil {
					return err
				}
			}
			renderSources(cmd.OutOrStdout(), catalog.ByCategory(strings.ToLower(category)))
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "filter by category hint")
	return cmd
}

func purgeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete stored items from banned sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			a, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			names := a.Policy.Names()
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No banned sources configured")
				return nil
			}
			n, err := a.Store.PurgeSources(ctx, names)
			if err != nil {
				return err
			}
			a.Logger.Info("banned sources purged", zap.Strings("sources", names), zap.Int64("rows", n))
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d items from %s\n", n, strings.Join(names, ", "))
			return nil
		},
	}
}

func migrateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log)
			if err != nil {
				return err
			}
			db, err := app.OpenDB(cfg.Database, log)
			if err != nil {
				return err
			}
			st := store.New(db, store.WithLogger(log.Named("store")))
			defer st.Close()

			results, err := st.Migrate(cmd.Context())
			renderMigrations(cmd.OutOrStdout(), results)
			return err
		},
	}
}

func statsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show stored item counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			total, err := a.Store.Count(ctx, store.Filter{})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Total: %d\n", total)
			for _, field := range []store.Field{store.FieldSource, store.FieldCategory, store.FieldType, store.FieldDepartment} {
				values, err := a.Store.Distinct(ctx, field)
				if err != nil {
					return err
				}
				renderCounts(cmd.OutOrStdout(), string(field), values)
			}
			return nil
		},
	}
}

func tokenCmd(g *globalFlags) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for the sweep trigger endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			token, err := api.IssueToken([]byte(cfg.APISecret), subject, ttl)
			if err != nil {
				return fmt.Errorf("%w (set api_secret or NEWSDESK_API_SECRET)", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "who the token identifies")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime; 0 never expires")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "newsbot %s\n", version)
		},
	}
}
