package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salonbook/internal/access"
	"salonbook/internal/api"
	"salonbook/internal/booking"
	"salonbook/internal/bot"
	"salonbook/internal/cache"
	"salonbook/internal/catalog"
	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/events"
	"salonbook/internal/google"
	"salonbook/internal/metrics"
	"salonbook/internal/repository"
	"salonbook/internal/slots"
	"salonbook/internal/supabase"
	"salonbook/shared/export"
	"salonbook/shared/reminders"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("SALONBOOK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	menu := catalog.Default()
	if cfg.CatalogPath != "" {
		if menu, err = catalog.Load(cfg.CatalogPath); err != nil {
			logger.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("failed to load service catalog")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open storage error")
	}
	defer st.close()

	var store booking.Store = st.bookings
	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		store = cache.NewStore(store, rdb, cfg.CacheTTL(), logger)
	}

	bus := events.NewEventBus(logger)
	bookingSvc := booking.NewService(store, menu, cfg.BusinessHours, cfg.Policy(), bus, logger)
	sessions := booking.NewSessionStore(menu, cfg.SessionTimeout())
	go cleanupSessions(ctx, sessions, logger)

	accessSvc := access.NewService(cfg.Access.AdminPhones, st.profiles, logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, st, rdb, &logger)

	if st.sqlite != nil && cfg.Backup.Enabled {
		go database.NewBackupService(st.sqlite, cfg.Backup, logger).Start(ctx)
	}

	if cfg.Sheets.Enabled {
		sheetsSvc, err := google.NewSheetsService(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName, accessSvc, logger)
		if err != nil {
			logger.Error().Err(err).Msg("google sheets disabled")
		} else {
			sheetsSvc.Subscribe(bus)
			labels := slots.NewGenerator(cfg.BusinessHours).Labels()
			go sheetsSvc.RunSync(ctx, time.Duration(cfg.Sheets.SyncMinutes)*time.Minute, store, labels, cfg.Sheets.ScheduleDays)
		}
	}

	if cfg.HTTP.Enabled {
		server := api.NewServer(cfg.HTTP, bookingSvc, accessSvc, access.NewTokenVerifier(cfg.Access.JWTSecret), logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error().Err(err).Msg("http api error")
				stop()
			}
		}()
		defer func() {
			ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctxShutdown)
		}()
	}

	if !cfg.Telegram.Enabled {
		logger.Info().Msg("salonbook started without telegram")
		<-ctx.Done()
		return
	}

	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Fatal().Msg("set telegram.bot_token in config")
	}
	b, err := bot.New(cfg.Telegram, bookingSvc, sessions, accessSvc, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create bot error")
	}
	b.Subscribe(bus)

	if cfg.Reminders.Enabled {
		startReminders(ctx, cfg.Reminders, store, b, logger)
	}

	if len(cfg.Telegram.AdminChatIDs) > 0 {
		monthly := export.NewService(store, accessSvc, b, logger)
		monthly.Start()
		defer monthly.Stop()
	}

	logger.Info().Str("storage", cfg.Storage.Driver).Int("services", menu.Len()).Msg("salon bot started")
	b.Start(ctx)
}

type storage struct {
	bookings booking.Store
	profiles access.ProfileStore
	sqlite   *database.DB
	supabase *supabase.Store
	failover *repository.FailoverStore
}

func (s *storage) close() {
	if s.sqlite != nil {
		s.sqlite.Close()
	}
}

func openStorage(cfg *config.Config, logger zerolog.Logger) (*storage, error) {
	st := &storage{}
	if cfg.Storage.Driver == config.DriverSQLite || cfg.Storage.Driver == config.DriverFailover {
		db, err := database.NewDB(cfg.Database.Path, logger)
		if err != nil {
			return nil, err
		}
		st.sqlite = db
	}
	if cfg.Storage.Driver == config.DriverSupabase || cfg.Storage.Driver == config.DriverFailover {
		sb, err := supabase.NewStore(cfg.Supabase.URL, cfg.Supabase.Key, cfg.Supabase.Table, logger)
		if err != nil {
			st.close()
			return nil, err
		}
		st.supabase = sb
	}

	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		st.bookings, st.profiles = st.sqlite, st.sqlite
	case config.DriverSupabase:
		st.bookings, st.profiles = st.supabase, st.supabase
	case config.DriverFailover:
		st.failover = repository.NewFailoverStore(st.supabase, st.sqlite, logger)
		// Contacts stay local so registration works while the remote is down.
		st.bookings, st.profiles = st.failover, st.sqlite
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	return st, nil
}

func startReminders(ctx context.Context, cfg config.RemindersConfig, source reminders.BookingSource, notifier reminders.Notifier, logger zerolog.Logger) {
	m := reminders.NewMetrics("salonbook", prometheus.DefaultRegisterer)

	limiter := reminders.DefaultRateLimiterConfig()
	limiter.Rate = cfg.RatePerSecond
	limiter.Burst = cfg.Burst
	sender := reminders.NewReminderSender(notifier, limiter, reminders.DefaultRetryConfig(), m, logger)

	schedCfg := reminders.DefaultSchedulerConfig()
	schedCfg.DailyHour = cfg.DailyHour
	schedCfg.Timezone = cfg.Timezone
	scheduler, err := reminders.NewScheduler(schedCfg, source, sender, m, logger)
	if err != nil {
		logger.Error().Err(err).Msg("reminders disabled")
		return
	}
	go scheduler.Start(ctx)
}

func cleanupSessions(ctx context.Context, sessions *booking.SessionStore, logger zerolog.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Cleanup(); n > 0 {
				logger.Debug().Int("removed", n).Msg("expired booking sessions removed")
			}
		}
	}
}

func startHealthServer(ctx context.Context, port int, st *storage, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if st.sqlite != nil {
			if err := st.sqlite.PingContext(ctxPing); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		if st.failover != nil && st.failover.Degraded() {
			_, _ = w.Write([]byte("ready (degraded: using local storage)"))
			return
		}
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
