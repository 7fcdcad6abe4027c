package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/infrastructure/config"
	"github.com/erp/stocksync/internal/infrastructure/logger"
)

// App holds the state shared by every command: flags, configuration and
// the root logger.
type App struct {
	version    string
	configPath string
	logLevel   string

	cfg *config.Config
	log *zap.Logger
	out io.Writer
}

// NewApp creates the CLI application
func NewApp(version string) *App {
	return &App{version: version}
}

// SetOutput redirects command output, which defaults to stdout
func (a *App) SetOutput(w io.Writer) {
	a.out = w
}

// Execute runs the command line with args
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.createRootCommand()
	root.SetArgs(args)
	if a.out != nil {
		root.SetOut(a.out)
	}
	return root.ExecuteContext(ctx)
}

func (a *App) createRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "stocksync",
		Short:   "Push ERP stock levels to storefront sites",
		Version: a.version,
		Long: `stocksync reconciles the sellable stock of an ERP with the stock status
of one or more storefront sites. A sync batch runs as a sequence of persisted
steps: fetch the ERP inventory, sync each site, then aggregate and notify.`,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
		SilenceUsage:       true,
		SilenceErrors:      true,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default is ./config.toml or /etc/stocksync/config.toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides the config file)")

	root.AddCommand(
		a.newServeCommand(),
		a.newRunCommand(),
		a.newStepCommand(),
		a.newRefreshProductsCommand(),
		a.newMigrateCommand(),
	)
	return root
}

// setup loads configuration and the logger before any command runs.
func (a *App) setup(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	a.cfg = cfg
	a.log = log
	return nil
}

func (a *App) teardown(_ *cobra.Command, _ []string) error {
	if a.log != nil {
		_ = logger.Sync(a.log)
	}
	return nil
}
