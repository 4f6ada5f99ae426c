package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/handybook/handybook/libs/config"
	"github.com/handybook/handybook/libs/db"
	"github.com/handybook/handybook/libs/httpx"
	"github.com/handybook/handybook/libs/kafkax"
	otelx "github.com/handybook/handybook/libs/otel"
	"github.com/handybook/handybook/libs/runtime"
	"github.com/handybook/handybook/services/booking-service/internal/booking"
	"github.com/handybook/handybook/services/booking-service/internal/handlers"
	"github.com/handybook/handybook/services/booking-service/internal/outbox"
	"github.com/handybook/handybook/services/booking-service/internal/schedule"
	"github.com/handybook/handybook/services/booking-service/internal/storage"
	"github.com/handybook/handybook/services/booking-service/migrations"
)

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if err := migrations.Up(ctx, pool); err != nil {
		logger.Error("migrations failed", "err", err)
		panic(err)
	}

	settings, err := loadScheduleSettings(logger)
	if err != nil {
		panic(err)
	}

	store := storage.NewPostgresStore(pool)
	svc := booking.NewService(store, booking.OutboxNotifier{}, settings, logger)

	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	// Public routes (slot discovery, booking, token reschedules) are rate
	// limited per client IP; Redis keeps the counters shared across
	// replicas, with an in-memory window as the fallback.
	publicLimit := config.Int("PUBLIC_RATE_LIMIT", 60)
	publicWindow := config.Minutes("PUBLIC_RATE_WINDOW_MINUTES", time.Minute)
	var publicLimiter httpx.Middleware
	if redisURL := config.String("REDIS_URL", ""); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "err", err)
			panic(err)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		publicLimiter = httpx.NewRedisRateLimiter(rdb, publicLimit, publicWindow, service).Middleware(logger, true)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	} else {
		publicLimiter = httpx.NewRateLimiter(publicLimit, publicWindow).Middleware()
	}

	mux := runtime.NewBaseMux(readyChecks...)
	handlers.NewAppointmentHandler(svc, logger).Register(mux, publicLimiter)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: []string{config.String("FRONTEND_URL", "*")},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type"},
		}),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func loadScheduleSettings(logger *slog.Logger) (schedule.Settings, error) {
	hours := schedule.DefaultWeekHours()
	if raw := config.String("BUSINESS_HOURS", ""); raw != "" {
		parsed, err := schedule.ParseWeekHours(raw)
		if err != nil {
			return schedule.Settings{}, err
		}
		hours = parsed
	}

	tz := config.String("BOOKING_TIMEZONE", "America/Chicago")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		logger.Warn("unknown timezone, using UTC", "tz", tz)
		loc = time.UTC
	}

	return schedule.Settings{
		Hours:        hours,
		SlotDuration: config.Minutes("SLOT_DURATION_MINUTES", time.Hour),
		Location:     loc,
	}, nil
}
