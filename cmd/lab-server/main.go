package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/labdesk/labdesk/internal/config"
	"github.com/labdesk/labdesk/internal/domain/billing"
	"github.com/labdesk/labdesk/internal/domain/catalog"
	"github.com/labdesk/labdesk/internal/domain/visit"
	"github.com/labdesk/labdesk/internal/platform/auth"
	"github.com/labdesk/labdesk/internal/platform/db"
	"github.com/labdesk/labdesk/internal/platform/middleware"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "lab-server",
		Short:        "Diagnostic lab billing API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(billCmd())
	return rootCmd
}

func newLogger(dev bool) zerolog.Logger {
	if dev {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Schema:   cfg.DBSchema,
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the lab billing API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withMigrator := func(cmd *cobra.Command, fn func(ctx context.Context, m *db.Migrator, schema string) error) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		schema, _ := cmd.Flags().GetString("schema")
		if schema == "" {
			schema = cfg.DBSchema
		}
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = cfg.MigrationsDir
		}

		ctx := context.Background()
		pool, err := db.NewPool(ctx, poolConfig(cfg))
		if err != nil {
			return err
		}
		defer pool.Close()
		return fn(ctx, db.NewMigrator(pool, dir), schema)
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator, schema string) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", schema)
				count, err := m.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator, schema string) error {
				statuses, err := m.Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Migration status for schema: %s\n", schema)
				fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				for _, s := range statuses {
					status, appliedAt := "pending", ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	}

	for _, c := range []*cobra.Command{upCmd, statusCmd} {
		c.Flags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")
		c.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
		cmd.AddCommand(c)
	}
	return cmd
}

type billOptions struct {
	Tests    []int64
	Groups   []int64
	Discount *string
	Total    *string
	Paid     *string
	Verbose  bool
}

func billCmd() *cobra.Command {
	var (
		catalogURL string
		token      string
		opts       billOptions
		discount   string
		total      string
		paid       string
	)

	cmd := &cobra.Command{
		Use:   "bill",
		Short: "Price a selection of tests against a remote catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient()
			if err != nil {
				return err
			}
			if catalogURL == "" {
				catalogURL = cfg.CatalogURL
			}
			if catalogURL == "" {
				return fmt.Errorf("--catalog-url or CATALOG_URL is required")
			}
			if token == "" {
				token = cfg.CatalogToken
			}

			if cmd.Flags().Changed("discount") {
				opts.Discount = &discount
			}
			if cmd.Flags().Changed("total") {
				opts.Total = &total
			}
			if cmd.Flags().Changed("paid") {
				opts.Paid = &paid
			}

			var clientOpts []catalog.ClientOption
			if token != "" {
				clientOpts = append(clientOpts, catalog.WithBearerToken(token))
			}
			logger := newLogger(true).Level(zerolog.InfoLevel)
			if opts.Verbose {
				logger = logger.Level(zerolog.DebugLevel)
			}

			client := catalog.NewClient(catalogURL, clientOpts...)
			return runBill(cmd.Context(), cmd.OutOrStdout(), client, opts, logger)
		},
	}

	cmd.Flags().StringVar(&catalogURL, "catalog-url", "", "Base URL of the catalog API (defaults to CATALOG_URL)")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token for the catalog API")
	cmd.Flags().Int64SliceVar(&opts.Tests, "test", nil, "Test id to select (repeatable)")
	cmd.Flags().Int64SliceVar(&opts.Groups, "group", nil, "Group id to select (repeatable)")
	cmd.Flags().StringVar(&discount, "discount", "", "Discount typed by the desk")
	cmd.Flags().StringVar(&total, "total", "", "Total typed by the desk")
	cmd.Flags().StringVar(&paid, "paid", "", "Amount paid")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Log every field the engine rewrites")
	return cmd
}

// runBill replays the options as desk commands. Edits are applied in the
// order discount, total, paid, so passing both discount and total makes the
// total win.
func runBill(ctx context.Context, out io.Writer, loader catalog.SnapshotLoader, opts billOptions, logger zerolog.Logger) error {
	snap, err := loader.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	logger.Debug().Int("tests", snap.TestCount()).Int("groups", snap.GroupCount()).Msg("catalog loaded")

	sess := billing.NewSession(snap)
	sess.Subscribe(func(fc billing.FieldChange) {
		logger.Debug().Str("field", string(fc.Field)).Str("value", fc.Value.StringFixed(2)).Msg("field updated")
	})

	var cmds []billing.Command
	for _, id := range opts.Groups {
		cmds = append(cmds, billing.AddGroup{ID: id})
	}
	for _, id := range opts.Tests {
		cmds = append(cmds, billing.AddTest{ID: id})
	}
	if opts.Discount != nil {
		cmds = append(cmds, billing.EditDiscount{Value: *opts.Discount})
	}
	if opts.Total != nil {
		cmds = append(cmds, billing.EditTotal{Value: *opts.Total})
	}
	if opts.Paid != nil {
		cmds = append(cmds, billing.EditPaid{Value: *opts.Paid})
	}
	for _, c := range cmds {
		sess.Dispatch(c)
	}

	printBill(out, sess.BillLines(), sess.Totals())
	return nil
}

func printBill(out io.Writer, bill billing.Bill, totals billing.Totals) {
	money := func(d decimal.Decimal) string { return d.StringFixed(2) }

	if len(bill.Lines) == 0 {
		fmt.Fprintln(out, "No tests selected.")
	}
	for _, l := range bill.Lines {
		fmt.Fprintf(out, "%-40s %12s\n", l.Label, money(l.Cost))
	}
	fmt.Fprintf(out, "%-40s %12s\n", "Base total", money(totals.BaseTotal))
	fmt.Fprintf(out, "%-40s %12s\n", "Discount", money(totals.Discount))
	fmt.Fprintf(out, "%-40s %12s\n", "Total", money(totals.Total))
	fmt.Fprintf(out, "%-40s %12s\n", "Paid", money(totals.Paid))
	fmt.Fprintf(out, "%-40s %12s\n", "Due", money(totals.Due))
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := newLogger(false)
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg.IsDev())
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		logger.Warn().Msg("ENV=development: every request is treated as an admin user")
	}

	// Money goes over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 15 * time.Second
	e.Server.WriteTimeout = 30 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.NewChecker(pool, cfg.DBSchema).Handler())

	// API
	apiV1 := e.Group("/api/v1", middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			SigningKey: []byte(cfg.AuthSigningKey),
			Issuer:     cfg.AuthIssuer,
		}))
	}

	catalogSvc := catalog.NewService(catalog.NewTestRepoPG(pool), catalog.NewGroupRepoPG(pool), logger)
	catalog.NewHandler(catalogSvc).RegisterRoutes(apiV1)

	visitSvc := visit.NewService(visit.NewRepoPG(pool))
	visit.NewHandler(visitSvc).RegisterRoutes(apiV1)

	store := billing.NewStore(cfg.SessionTTL, logger)
	billingSvc := billing.NewService(catalogSvc, visitSvc, store, logger)
	billing.NewHandler(billingSvc).RegisterRoutes(apiV1)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go store.Run(sweepCtx, sweepInterval(cfg.SessionTTL))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Int("open_sessions", store.Len()).Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// sweepInterval checks for idle sessions a few times per TTL, at most once a
// minute.
func sweepInterval(ttl time.Duration) time.Duration {
	iv := ttl / 4
	if iv < time.Minute {
		return time.Minute
	}
	return iv
}
