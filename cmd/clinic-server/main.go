package main

import (
	"context"
	crypto_rand "crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/luskaa234/integrarneurpp-sub000/internal/config"
	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/account"
	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/dashboard"
	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/financial"
	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/medical"
	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/messaging"
	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/scheduling"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/auth"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/cache"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/db"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/events"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/middleware"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/notification"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/phi"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/webhook"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/websocket"
)

var envFile string

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinic-server",
		Short:        "Clinic management API server",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load variables from this file before reading the environment")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(clinicCmd())
	rootCmd.AddCommand(accountCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// postgresOnly opens a pool for the commands that manage schemas.
func postgresOnly(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.StoreBackend != config.BackendPostgres {
		return nil, fmt.Errorf("this command needs STORE_BACKEND=%s", config.BackendPostgres)
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
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

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations to a clinic schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			clinic, _ := cmd.Flags().GetString("clinic")
			if clinic == "" {
				clinic = cfg.DefaultClinic
			}

			ctx := context.Background()
			pool, err := postgresOnly(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			schema := db.SchemaName(clinic)
			fmt.Printf("Running migrations on schema: %s\n", schema)
			count, err := db.NewMigrator(pool, cfg.MigrationsDir).Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s).\n", count)
			return nil
		},
	}
	upCmd.Flags().String("clinic", "", "Clinic whose schema is migrated (default DEFAULT_CLINIC)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status of a clinic schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			clinic, _ := cmd.Flags().GetString("clinic")
			if clinic == "" {
				clinic = cfg.DefaultClinic
			}

			ctx := context.Background()
			pool, err := postgresOnly(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			schema := db.SchemaName(clinic)
			statuses, err := db.NewMigrator(pool, cfg.MigrationsDir).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("clinic", "", "Clinic whose schema is inspected (default DEFAULT_CLINIC)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func clinicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clinic",
		Short: "Manage clinics",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create and migrate a clinic schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := postgresOnly(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating clinic schema: %s\n", db.SchemaName(name))
			if err := db.CreateClinicSchema(ctx, pool, name, cfg.MigrationsDir); err != nil {
				return err
			}
			fmt.Println("Clinic created.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Clinic identifier (letters, digits, underscores)")
	cmd.AddCommand(createCmd)
	return cmd
}

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}

	adminCmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			password, _ := cmd.Flags().GetString("password")
			clinic, _ := cmd.Flags().GetString("clinic")
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}
			if name == "" {
				name = "Administrador"
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if clinic != "" {
				cfg.DefaultClinic = clinic
			}

			ctx := context.Background()
			b, err := openBackend(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			enc, err := fieldEncryptor(cfg)
			if err != nil {
				return err
			}
			svc := account.NewService(b.accounts(), nil, nil, enc, nil)
			return b.scope(ctx, func(ctx context.Context) error {
				a, err := svc.Create(ctx, &account.CreateRequest{
					Account:  account.Account{Name: name, Email: email, Role: auth.RoleAdmin},
					Password: password,
				})
				if err != nil {
					return err
				}
				fmt.Printf("Created admin %s (%s)\n", a.Email, a.ID)
				return nil
			})
		},
	}
	adminCmd.Flags().String("email", "", "Login email")
	adminCmd.Flags().String("name", "", "Display name")
	adminCmd.Flags().String("password", "", "Initial password")
	adminCmd.Flags().String("clinic", "", "Clinic the account belongs to (default DEFAULT_CLINIC)")
	cmd.AddCommand(adminCmd)
	return cmd
}

// sessionSecret returns JWT_SECRET, or a random key in development when it
// is unset. The second return value is true when a key was generated.
func sessionSecret(cfg *config.Config) ([]byte, bool, error) {
	if cfg.JWTSecret != "" {
		return []byte(cfg.JWTSecret), false, nil
	}
	if !cfg.IsDev() {
		return nil, false, fmt.Errorf("JWT_SECRET is required outside development")
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate session secret: %w", err)
	}
	return key, true, nil
}

func fieldEncryptor(cfg *config.Config) (phi.FieldEncryptor, error) {
	if cfg.PHIEncryptionKey == "" {
		return phi.Plain{}, nil
	}
	return phi.NewAESEncryptorHex(cfg.PHIEncryptionKey)
}

// messageDispatcher picks where outbound messages go.
func messageDispatcher(cfg *config.Config, logger zerolog.Logger) (notification.Dispatcher, error) {
	switch cfg.MessageDispatcher {
	case config.DispatcherWebhook:
		var opts []webhook.Option
		if cfg.MessageWebhookKey != "" {
			opts = append(opts, webhook.WithSecret(cfg.MessageWebhookKey))
		}
		return webhook.NewDispatcher(cfg.MessageWebhookURL, opts...)
	default:
		return notification.LogDispatcher{Logger: logger}, nil
	}
}

func runServer() error {
	cfg, err := config.Load(envFile)
	if err != nil {
		bootLogger := newLogger(nil)
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer b.Close()
	logger.Info().Str("backend", cfg.StoreBackend).Msg("connected to store")

	secret, generated, err := sessionSecret(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("session secret")
	}
	if generated {
		logger.Warn().Msg("JWT_SECRET not set, sessions will not survive a restart")
	}
	issuer := auth.NewIssuer(secret, cfg.SessionTTL)
	revocations := auth.NewRevocations(cfg.SessionTTL)
	defer revocations.Close()

	enc, err := fieldEncryptor(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid PHI_ENCRYPTION_KEY")
	}
	dispatcher, err := messageDispatcher(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("message dispatcher")
	}

	// Change events
	bus := events.NewBus(logger)
	hub := websocket.NewHub(logger, websocket.OwnRowsVisibility)
	bus.Subscribe(hub)

	// Domain services
	accountSvc := account.NewService(b.accounts(), issuer, revocations, enc, bus)
	financialSvc := financial.NewService(b.financial(), bus)
	schedulingSvc := scheduling.NewService(b.appointments(), b.tx, financialSvc, accountSvc, bus)
	medicalSvc := medical.NewService(b.medical(), bus)
	templates, catalog, logs := b.messaging()
	messagingSvc := messaging.NewService(templates, catalog, logs, dispatcher, accountSvc, schedulingSvc, bus,
		messaging.Config{CountryCode: cfg.DefaultCountryCode, BulkDelay: cfg.BulkSendDelay})

	// Cache mirror of the default clinic
	accounts := cache.NewCollection(events.TableAccounts, scoped[account.Account](b, accountSvc.All))
	appointments := cache.NewCollection(events.TableAppointments, scoped[scheduling.Appointment](b, schedulingSvc.All))
	ledger := cache.NewCollection(events.TableFinancialRecords, scoped[financial.Record](b, financialSvc.All))
	records := cache.NewCollection(events.TableMedicalRecords, scoped[medical.Record](b, medicalSvc.All))
	mirror := cache.NewMirror(cfg.DefaultClinic, logger, accounts, appointments, ledger, records)
	if err := mirror.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial cache refresh failed")
	}
	bus.Subscribe(mirror)
	go mirror.Run(ctx, cfg.CacheRefresh)

	dashboardSvc := dashboard.NewService(dashboard.Mirrored{
		Accounts:     accounts,
		Appointments: appointments,
		Financial:    ledger,
		Medical:      records,
		RefreshedAt:  mirror.RefreshedAt,
	})

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("2M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", db.ClinicHeader},
	}))

	session := auth.SessionMiddleware(issuer, revocations)
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(session))
	} else {
		e.Use(session)
	}
	if b.pool != nil {
		e.Use(db.ClinicMiddleware(b.pool, cfg.DefaultClinic))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(b.pinger))

	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	account.NewHandler(accountSvc).RegisterRoutes(apiV1)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(apiV1)
	financial.NewHandler(financialSvc).RegisterRoutes(apiV1)
	medical.NewHandler(medicalSvc).RegisterRoutes(apiV1)
	messaging.NewHandler(messagingSvc).RegisterRoutes(apiV1)
	dashboard.NewHandler(dashboardSvc).RegisterRoutes(apiV1)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(e)

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

	logger.Info().Msg("shutting down server")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
