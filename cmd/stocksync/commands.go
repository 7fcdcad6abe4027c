package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appstocksync "github.com/erp/stocksync/internal/application/stocksync"
	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/infrastructure/migration"
	"github.com/erp/stocksync/internal/infrastructure/scheduler"
	"github.com/erp/stocksync/internal/interfaces/http/handler"
	"github.com/erp/stocksync/internal/interfaces/http/middleware"
	"github.com/erp/stocksync/internal/interfaces/http/router"
)

const shutdownTimeout = 30 * time.Second

// ---------------------------------------------------------------------------
// serve
// ---------------------------------------------------------------------------

func (a *App) newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the background sync worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *App) serve(ctx context.Context) error {
	comps, err := buildComponents(ctx, a.cfg, a.version, a.log)
	if err != nil {
		return err
	}
	defer comps.close(context.Background())

	var (
		runner  *scheduler.SyncRunner
		status  handler.RunnerStatus
		trigger handler.SyncTrigger
	)
	if a.cfg.Sync.Enabled {
		runner, err = comps.newRunner(a.cfg)
		if err != nil {
			return err
		}
		if err := runner.Start(ctx); err != nil {
			return err
		}
		status, trigger = runner, runner
	} else {
		a.log.Info("Background sync disabled, steps run only through the API or CLI")
	}

	mode := gin.DebugMode
	if a.cfg.App.Env == "production" {
		mode = gin.ReleaseMode
	}
	engine, err := router.NewEngine(router.EngineConfig{
		Mode:           mode,
		TrustedProxies: a.cfg.HTTP.TrustedProxies,
		Tracing: middleware.TracingConfig{
			ServiceName: a.cfg.App.Name,
			Enabled:     a.cfg.Telemetry.Enabled,
		},
	}, a.log.Named("http"))
	if err != nil {
		return fmt.Errorf("build http engine: %w", err)
	}

	systemHandler := handler.NewSystemHandler(a.cfg.App.Name, a.version, comps.db, status)
	syncHandler := handler.NewSyncHandler(comps.orchestrator, comps.repos.Batches, comps.repos.Results, trigger)

	router.NewRouter(engine).
		Register(systemHandler).
		Register(syncHandler).
		Root(http.MethodGet, "/health", systemHandler.Health).
		Root(http.MethodGet, "/ping", systemHandler.Ping).
		Setup()

	srv := &http.Server{
		Addr:           ":" + a.cfg.HTTP.Port,
		Handler:        engine,
		ReadTimeout:    a.cfg.HTTP.ReadTimeout,
		WriteTimeout:   a.cfg.HTTP.WriteTimeout,
		IdleTimeout:    a.cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: a.cfg.HTTP.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		a.log.Info("Shutting down server...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Server forced to shutdown", zap.Error(err))
	}
	if runner != nil {
		if err := runner.Stop(shutdownCtx); err != nil {
			a.log.Warn("Sync runner did not stop in time", zap.Error(err))
		}
	}
	a.log.Info("Server exited")
	return nil
}

// ---------------------------------------------------------------------------
// run
// ---------------------------------------------------------------------------

func (a *App) newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the background sync worker without the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			comps, err := buildComponents(ctx, a.cfg, a.version, a.log)
			if err != nil {
				return err
			}
			defer comps.close(context.Background())

			runner, err := comps.newRunner(a.cfg)
			if err != nil {
				return err
			}
			if err := runner.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return runner.Stop(stopCtx)
		},
	}
}

// ---------------------------------------------------------------------------
// step
// ---------------------------------------------------------------------------

func (a *App) newStepCommand() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Execute one sync step and print its outcome as JSON",
		Long: `step runs exactly one persisted step of the active batch, creating a
batch first when none is active. With --all it keeps stepping until the
batch finishes, stops progressing or the configured step budget is spent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			comps, err := buildComponents(ctx, a.cfg, a.version, a.log)
			if err != nil {
				return err
			}
			defer comps.close(context.Background())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			if all {
				runner, err := comps.newRunner(a.cfg)
				if err != nil {
					return err
				}
				summary := runner.RunOnce(ctx, "cli")
				if err := enc.Encode(summary); err != nil {
					return err
				}
				if summary.StopReason == scheduler.StopReasonError {
					return errors.New(summary.Error)
				}
				return nil
			}

			outcome, stepErr := comps.orchestrator.RunStep(ctx)
			if outcome != nil {
				if err := enc.Encode(outcome); err != nil {
					return err
				}
			}
			return stepErr
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "step until the batch is done")
	return cmd
}

// ---------------------------------------------------------------------------
// refresh-products
// ---------------------------------------------------------------------------

func (a *App) newRefreshProductsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-products [site-id...]",
		Short: "Rescan storefront catalogs into the local product cache",
		Long: `refresh-products lists every product of the given sites, variations
included, and stores them in the product cache used to resolve SKUs during
a sync. Without arguments every enabled site is scanned.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			comps, err := buildComponents(ctx, a.cfg, a.version, a.log)
			if err != nil {
				return err
			}
			defer comps.close(context.Background())

			siteIDs := args
			if len(siteIDs) == 0 {
				sites, err := comps.repos.Sites.ListEnabled(ctx)
				if err != nil {
					return fmt.Errorf("list sites: %w", err)
				}
				for _, s := range sites {
					siteIDs = append(siteIDs, s.ID)
				}
			}

			detector := appstocksync.NewProductDetector(comps.repos.Products, appstocksync.DetectorConfig{
				PerPage:  a.cfg.Storefront.ProductPageSize,
				MaxPages: a.cfg.Storefront.MaxProductPages,
			}, a.log.Named("detector"))

			var failed int
			for _, id := range siteIDs {
				count, err := a.refreshSite(ctx, comps, detector, id)
				if err != nil {
					failed++
					a.log.Error("Product refresh failed", zap.String("site_id", id), zap.Error(err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", id, count)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d sites failed to refresh", failed, len(siteIDs))
			}
			return nil
		},
	}
}

func (a *App) refreshSite(ctx context.Context, comps *components, detector *appstocksync.ProductDetector, siteID string) (int, error) {
	site, err := comps.repos.Sites.FindByID(ctx, siteID)
	if err != nil {
		return 0, err
	}
	client, err := comps.storefronts.ForSite(integration.StorefrontSite{
		ID:             site.ID,
		Name:           site.Name,
		BaseURL:        site.BaseURL,
		ConsumerKey:    site.ConsumerKey,
		ConsumerSecret: site.ConsumerSecret,
	})
	if err != nil {
		return 0, err
	}
	return detector.RefreshSite(ctx, site.ID, client)
}

// ---------------------------------------------------------------------------
// migrate
// ---------------------------------------------------------------------------

func (a *App) newMigrateCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema migrations",
	}
	cmd.PersistentFlags().StringVar(&path, "path", migration.DefaultMigrationsPath, "path to the migrations directory")

	withMigrator := func(fn func(m *migration.Migrator, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			m, closeFn, err := a.openMigrator(path)
			if err != nil {
				return err
			}
			defer closeFn()
			return fn(m, args)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(m *migration.Migrator, _ []string) error {
				return m.Up()
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(m *migration.Migrator, _ []string) error {
				return m.Down()
			}),
		},
		&cobra.Command{
			Use:   "steps <n>",
			Short: "Apply n migrations, negative n rolls back",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(func(m *migration.Migrator, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count %q: %w", args[0], err)
				}
				return m.Steps(n)
			}),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(func(m *migration.Migrator, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return m.Force(v)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, closeFn, err := a.openMigrator(path)
				if err != nil {
					return err
				}
				defer closeFn()
				status, err := m.Status()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", status.Version, status.Dirty)
				return nil
			},
		},
		&cobra.Command{
			Use:   "create <name> [description]",
			Short: "Create a new pair of up and down migration files",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				description := ""
				if len(args) > 1 {
					description = args[1]
				}
				mf, err := migration.CreateMigration(path, args[0], description, time.Now().UTC())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), mf.UpPath)
				fmt.Fprintln(cmd.OutOrStdout(), mf.DownPath)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List the migrations found in the migrations directory",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				migrations, err := migration.ListMigrations(path)
				if err != nil {
					return err
				}
				for _, m := range migrations {
					fmt.Fprintln(cmd.OutOrStdout(), m)
				}
				return nil
			},
		},
	)
	return cmd
}

// openMigrator connects to PostgreSQL. SQLite databases are created by
// auto-migration and have no versioned schema.
func (a *App) openMigrator(path string) (*migration.Migrator, func(), error) {
	if a.cfg.Database.Driver == "sqlite" {
		return nil, nil, errors.New("migrations target postgres; sqlite schemas are auto-migrated on startup")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve migrations path: %w", err)
	}

	db, err := sql.Open("postgres", a.cfg.Database.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, absPath, a.log.Named("migrate"))
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	closeFn := func() {
		if err := m.Close(); err != nil {
			a.log.Warn("Error closing migrator", zap.Error(err))
		}
	}
	return m, closeFn, nil
}
