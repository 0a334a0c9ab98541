package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	authhttp "github.com/open-rails/djibgo-auth/adapters/http"
	"github.com/open-rails/djibgo-auth/core"
	jwtkit "github.com/open-rails/djibgo-auth/jwt"
	"github.com/open-rails/djibgo-auth/metrics"
	pgmigrations "github.com/open-rails/djibgo-auth/migrations/postgres"
	"github.com/open-rails/djibgo-auth/riverjobs"
	kafkastore "github.com/open-rails/djibgo-auth/storage/kafka"
	memorystore "github.com/open-rails/djibgo-auth/storage/memory"
	pgstore "github.com/open-rails/djibgo-auth/storage/postgres"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type config struct {
	ListenAddr   string
	DBURL        string
	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string
	JWTSecret    string
	Issuer       string
	DevMode      bool
	ExpirySpec   string
	Core         core.Config
}

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "djibgo-devserver",
		Short:         "DjibGo temporary password service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(envOr("LOG_LEVEL", "info"))
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "apply the profiles schema and river migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DBURL == "" {
				return fmt.Errorf("DB_URL (or DATABASE_URL) is required")
			}
			return runMigrations(cmd.Context(), cfg.DBURL)
		},
	})
	if err := root.ExecuteContext(context.Background()); err != nil {
		fatal(err)
	}
}

func setupLogging(level string) {
	log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func loadConfig() (*config, error) {
	c := &config{
		ListenAddr:   envOr("DJIBGO_LISTEN_ADDR", ":8080"),
		DBURL:        firstEnv("DB_URL", "DATABASE_URL"),
		RedisURL:     firstEnv("REDIS_URL"),
		KafkaBrokers: parseCSVEnv("KAFKA_BROKERS", nil),
		KafkaTopic:   envOr("DJIBGO_DELIVERY_TOPIC", "djibgo.delivery-records"),
		JWTSecret:    strings.TrimSpace(os.Getenv("DJIBGO_JWT_SECRET")),
		Issuer:       envOr("DJIBGO_ISSUER", "djibgo"),
		DevMode:      envBool("DJIBGO_DEV_MODE", false),
		ExpirySpec:   envOr("DJIBGO_EXPIRY_SCHEDULE", riverjobs.DefaultExpirySchedule),
	}
	selfTest := envBool("DJIBGO_SELF_TEST", true)
	c.Core = core.Config{
		TemporaryPasswordTTL: envDuration("DJIBGO_TEMP_PASSWORD_TTL", 0),
		DefaultCountryPrefix: os.Getenv("DJIBGO_DEFAULT_COUNTRY_PREFIX"),
		WhatsAppBaseURL:      os.Getenv("DJIBGO_WHATSAPP_BASE_URL"),
		LoginURL:             os.Getenv("DJIBGO_LOGIN_URL"),
		SelfTest:             &selfTest,
		RequireStoredPhone:   envBool("DJIBGO_REQUIRE_STORED_PHONE", false),
		LockTTL:              envDuration("DJIBGO_LOCK_TTL", 0),
		SessionTTL:           envDuration("DJIBGO_SESSION_TTL", 0),
		DevMode:              c.DevMode,
	}
	if c.DBURL == "" && !c.DevMode {
		return nil, fmt.Errorf("DB_URL (or DATABASE_URL) is required unless DJIBGO_DEV_MODE=true")
	}
	if c.JWTSecret == "" && !c.DevMode {
		return nil, fmt.Errorf("DJIBGO_JWT_SECRET is required unless DJIBGO_DEV_MODE=true")
	}
	return c, nil
}

func runServe(ctx context.Context, cfg *config) error {
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return err
		}
		log.Warn("DJIBGO_JWT_SECRET not set; using an ephemeral secret (tokens die with the process)")
	}
	signer, err := jwtkit.NewHS256Signer(secret, cfg.Issuer)
	if err != nil {
		return err
	}

	reg := metrics.New(true)
	logger := log.StandardLogger()
	svc := authhttp.NewService(cfg.Core).
		WithSigner(signer).
		WithMetrics(reg).
		WithLogger(logger).
		WithRateLimitObserver(reg.RateLimited)

	var (
		pg     *pgxpool.Pool
		closer []func()
	)
	defer func() {
		for i := len(closer) - 1; i >= 0; i-- {
			closer[i]()
		}
	}()

	if cfg.DBURL == "" {
		if err := seedMemory(ctx, svc); err != nil {
			return err
		}
	} else {
		if envBool("DJIBGO_MIGRATE_ON_START", true) {
			if err := runMigrations(ctx, cfg.DBURL); err != nil {
				return err
			}
		}
		pg, err = pgxpool.New(ctx, cfg.DBURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		closer = append(closer, pg.Close)
		st := pgstore.New(pg)
		var deliveries core.DeliveryLog = st
		if len(cfg.KafkaBrokers) > 0 {
			pub := kafkastore.NewPublisher(kafkastore.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger))
			closer = append(closer, func() { _ = pub.Close() })
			deliveries = core.MultiDeliveryLog{st, pub}
		}
		svc.WithStores(st, st, deliveries)
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		closer = append(closer, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		svc.WithRedis(rdb)
	}

	stopSweeper, err := startExpirySweeper(ctx, cfg, svc.Core(), pg, reg)
	if err != nil {
		return err
	}
	closer = append(closer, stopSweeper)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.Handle("/metrics", reg.Handler())
	mux.Handle("/", svc.APIHandler())

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	log.WithField("addr", cfg.ListenAddr).Info("djibgo listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedMemory installs in-memory stores with one demo account so the flow can
// be exercised without a database.
func seedMemory(ctx context.Context, svc *authhttp.Service) error {
	identity := memorystore.NewIdentity()
	profiles := memorystore.NewProfiles()
	email := envOr("DJIBGO_DEMO_EMAIL", "demo@djibgo.dj")
	phone := envOr("DJIBGO_DEMO_PHONE", "+253 77 00 00 00")
	acct, err := identity.CreateAccount(ctx, email, phone, envOr("DJIBGO_DEMO_PASSWORD", "demo-password"))
	if err != nil {
		return fmt.Errorf("seed demo account: %w", err)
	}
	profiles.PutProfile(core.Profile{UserID: acct.ID, DisplayName: "Demo", PhoneNumber: &phone})
	svc.WithStores(identity, profiles, memorystore.NewDeliveries())
	log.WithFields(log.Fields{"email": email, "phone": phone}).Warn("[djibgo/dev] using in-memory stores")
	return nil
}

// startExpirySweeper runs the temporary password expiry on the configured
// schedule: through river when Postgres is available, in-process otherwise.
func startExpirySweeper(ctx context.Context, cfg *config, svc *core.Service, pg *pgxpool.Pool, reg *metrics.Registry) (func(), error) {
	if pg == nil {
		c := cron.New()
		_, err := c.AddFunc(cfg.ExpirySpec, func() {
			n, err := svc.ExpireTemporaryPasswords(ctx, time.Now(), 0)
			reg.TemporaryPasswordsExpired(n)
			if err != nil {
				log.WithError(err).Warn("temporary password expiry sweep failed")
			}
		})
		if err != nil {
			return nil, fmt.Errorf("invalid cron schedule '%s': %w", cfg.ExpirySpec, err)
		}
		c.Start()
		return func() { <-c.Stop().Done() }, nil
	}

	worker := riverjobs.NewExpireTemporaryPasswordsWorker(svc)
	worker.OnExpired = reg.TemporaryPasswordsExpired
	workers := river.NewWorkers()
	riverjobs.RegisterExpireTemporaryPasswordsWorker(workers, worker)
	client, err := river.NewClient(riverpgxv5.New(pg), &river.Config{
		Queues:  map[string]river.QueueConfig{river.QueueDefault: {MaxWorkers: 2}},
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("river client: %w", err)
	}
	if err := riverjobs.AddExpireTemporaryPasswordsPeriodicJob(client, cfg.ExpirySpec, riverjobs.ExpireTemporaryPasswordsArgs{}, true); err != nil {
		return nil, err
	}
	if err := client.Start(ctx); err != nil {
		return nil, fmt.Errorf("start river: %w", err)
	}
	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Stop(stopCtx); err != nil {
			log.WithError(err).Warn("river stop")
		}
	}, nil
}

func runMigrations(ctx context.Context, dbURL string) error {
	sqlDB, err := pgmigrations.Open(dbURL)
	if err != nil {
		return fmt.Errorf("open sql db: %w", err)
	}
	defer sqlDB.Close()
	if err := pgmigrations.Up(ctx, sqlDB); err != nil {
		return fmt.Errorf("apply profiles migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("apply river migrations: %w", err)
	}
	log.Info("migrations applied")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseCSVEnv(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func fatal(err error) {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		os.Exit(0)
	}
	log.WithError(err).Error("djibgo-devserver failed")
	os.Exit(1)
}
