package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tidytabs/internal/app"
	"tidytabs/internal/config"
	"tidytabs/internal/logging"
	"tidytabs/internal/store"
)

var (
	configFile string
	logCloser  io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "tidytabs",
	Short: "TidyTabs tab organizer",
	Long: `TidyTabs groups browser tab titles into categories with a local model
and generates new tab groups from a free-text request.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is given, print help.
		cmd.Help()
	},
	// PersistentPreRunE runs before any subcommand's RunE
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipInit(cmd) {
			return nil
		}

		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logCloser, err = logging.Setup(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}

		appInstance, err := app.NewApp(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		ctx := context.WithValue(cmd.Context(), appKey, appInstance)
		cmd.SetContext(ctx)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if appInstance, err := GetAppFromContext(cmd.Context()); err == nil {
			appInstance.Close()
		}
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// skipInit reports commands that run without config or app wiring.
func skipInit(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return true
		}
	}
	return !cmd.HasParent()
}

// redactDSN hides credentials in URL-style DSNs.
func redactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.User != nil {
		return u.Redacted()
	}
	return dsn
}

// Define a custom type for the context key to avoid collisions.
type contextKey string

const appKey contextKey = "app"

// Helper function to retrieve the app instance from context
func GetAppFromContext(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./config.yaml or ~/.config/tidytabs/config.yaml)")

	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(costCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Report which components are configured and reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to get app instance: %w", err)
		}
		out := cmd.OutOrStdout()

		check := func(name string, ok bool, detail string) {
			mark := color.GreenString("ok")
			if !ok {
				mark = color.YellowString("off")
			}
			fmt.Fprintf(out, "%-16s %s  %s\n", name, mark, detail)
		}

		check("classifier", appInstance.Classifier.Available(),
			fmt.Sprintf("threshold %.2f", appInstance.Classifier.Threshold()))
		check("llm categorizer", appInstance.CategorizationService.LLMEnabled(), appInstance.Config.Categorization.Model)

		gen := appInstance.CompletionService
		check("generation", gen.Status() == store.ProviderStatusActive,
			fmt.Sprintf("%s %s (%s mode)", gen.Name(), gen.ModelName(), appInstance.Generator.Mode()))

		searchOK := appInstance.Searcher != nil && appInstance.Searcher.Status() == store.ProviderStatusActive
		check("web search", searchOK, appInstance.Config.Search.Provider)

		if appInstance.UsageStore == nil {
			check("usage store", false, "usage tracking disabled")
			return nil
		}
		if err := appInstance.UsageStore.Ping(ctx); err != nil {
			fmt.Fprintf(out, "%-16s %s  %v\n", "usage store", color.RedString("error"), err)
			return fmt.Errorf("database ping failed: %w", err)
		}
		check("usage store", true, redactDSN(appInstance.Config.Database.DSN))
		return nil
	},
}
