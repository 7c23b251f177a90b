package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"

	"github.com/Skotchmaster/hostel_meals/internal/events"
	"github.com/Skotchmaster/hostel_meals/internal/guard"
	"github.com/Skotchmaster/hostel_meals/internal/httpserver"
	"github.com/Skotchmaster/hostel_meals/internal/identity"
	"github.com/Skotchmaster/hostel_meals/internal/live"
	"github.com/Skotchmaster/hostel_meals/internal/notice"
	"github.com/Skotchmaster/hostel_meals/internal/payment"
	"github.com/Skotchmaster/hostel_meals/internal/query"
	"github.com/Skotchmaster/hostel_meals/internal/repo"
	"github.com/Skotchmaster/hostel_meals/internal/service"
	"github.com/Skotchmaster/hostel_meals/internal/session"
	"github.com/Skotchmaster/hostel_meals/pkg/apiclient"
	"github.com/Skotchmaster/hostel_meals/pkg/config"
	pkgdb "github.com/Skotchmaster/hostel_meals/pkg/db"
	"github.com/Skotchmaster/hostel_meals/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := config.Load()
	config.MustNonEmpty(cfg.APIBaseURL, "API_URL")
	config.MustNonEmpty(cfg.IdentityAPIKey, "IDENTITY_API_KEY")
	config.MustNonEmpty(cfg.PaymentPublishKey, "PAYMENT_PUBLISHABLE_KEY")

	replica := uuid.NewString()
	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName, "replica", replica)
	slog.SetDefault(logger)

	rootCtx, stopAll := context.WithCancel(logging.IntoContext(context.Background(), logger))
	defer stopAll()

	ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}

	sessStore, err := session.NewStore(db)
	if err != nil {
		log.Fatalf("session store: %v", err)
	}
	noticeStore, err := notice.NewStore(db)
	if err != nil {
		log.Fatalf("notice store: %v", err)
	}

	api, err := apiclient.New(apiclient.Config{BaseURL: cfg.APIBaseURL, Protected: cfg.ProtectedPaths})
	if err != nil {
		log.Fatalf("api client: %v", err)
	}
	meals := &repo.Meals{API: api}
	upcoming := &repo.Upcoming{API: api}
	users := &repo.Users{API: api}
	packages := &repo.Packages{API: api}
	payments := &repo.Payments{API: api}
	reviews := &repo.Reviews{API: api}
	serveRequests := &repo.ServeRequests{API: api}

	cache := query.New(query.WithStaleTime(cfg.CacheStaleTime))

	idp, err := identity.NewToolkit(identity.ToolkitConfig{
		BaseURL:  cfg.IdentityURL,
		APIKey:   cfg.IdentityAPIKey,
		TokenURL: cfg.IdentityTokenURL,
	})
	if err != nil {
		log.Fatalf("identity: %v", err)
	}
	sessions := session.NewManager(sessStore, users, idp, cfg.SessionTTL)

	tokenizer, err := payment.NewProviderTokenizer(cfg.PaymentURL, cfg.PaymentPublishKey)
	if err != nil {
		log.Fatalf("payment tokenizer: %v", err)
	}

	hub := live.NewHub(cfg.AllowedOrigins)
	cache.OnInvalidate(hub.Listener())

	var publisher *events.Publisher
	var subscriber *events.Subscriber
	if len(cfg.KafkaBrokers) > 0 {
		if err := events.EnsureTopic(cfg.KafkaBrokers[0], cfg.KafkaTopic); err != nil {
			logger.Warn("kafka_topic_ensure_failed", "topic", cfg.KafkaTopic, "error", err)
		}
		publisher = events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, replica)
		cache.OnInvalidate(publisher.Listener(rootCtx))

		subscriber = events.NewSubscriber(cfg.KafkaBrokers, cfg.KafkaTopic, replica, cache)
		go func() {
			if err := subscriber.Run(rootCtx); err != nil {
				logger.Error("invalidation_subscriber_stopped", "error", err)
			}
		}()
	} else {
		logger.Info("kafka_disabled", "reason", "KAFKA_BROKERS is empty")
	}

	changes, unsubscribe := idp.Subscribe()
	defer unsubscribe()
	go func() {
		for ch := range changes {
			if ch.Account == nil {
				logger.Info("identity_signed_out", "uid", ch.UID)
				continue
			}
			logger.Info("identity_signed_in", "uid", ch.UID, "email", ch.Account.Email)
		}
	}()

	jobs := cron.New()
	if _, err := jobs.AddFunc(cfg.SweepSchedule, func() {
		l := logger.With("job", "sweep")
		dropped := cache.Sweep(cfg.CacheStaleTime * 10)
		expired, err := sessions.Sweep(rootCtx)
		if err != nil {
			l.Error("session_sweep_failed", "error", err)
		}
		old, err := noticeStore.DeleteBefore(rootCtx, time.Now().Add(-cfg.NoticeRetention))
		if err != nil {
			l.Error("notice_sweep_failed", "error", err)
		}
		l.Debug("sweep_done", "cache_entries", dropped, "sessions", expired, "notices", old)
	}); err != nil {
		log.Fatalf("cron schedule %q: %v", cfg.SweepSchedule, err)
	}
	jobs.Start()

	handlers := &httpserver.Handlers{
		Cache:    cache,
		Meals:    meals,
		Upcoming: upcoming,
		Users:    users,
		Reviews:  reviews,
		Serve:    serveRequests,
		Packages: packages,
		Payments: payments,
		MealSvc:  &service.MealService{Meals: meals, Upcoming: upcoming, Cache: cache},
		Owned:    &service.Owned{Reviews: reviews, Serve: serveRequests, Cache: cache},
		Checkout: &payment.Checkout{
			Packages:  packages,
			Payments:  payments,
			Users:     users,
			Tokenizer: tokenizer,
			Cache:     cache,
			Sessions:  sessions,
		},
		Sessions:     sessions,
		Identity:     idp,
		Notices:      noticeStore,
		CookieSecure: cfg.CookieSecure,
		PageSize:     cfg.PageSize,
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())

	httpserver.Register(e, &httpserver.Deps{
		Handlers:       handlers,
		Guard:          &guard.Guard{Sessions: sessions, Cache: cache, CookieSecure: cfg.CookieSecure},
		Live:           hub,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		Ready: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				return err
			}
			return api.Get(ctx, "/packages", nil, nil)
		},
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", "error", err)
	}
	<-jobs.Stop().Done()
	hub.Close()
	stopAll()

	if subscriber != nil {
		if err := subscriber.Close(); err != nil {
			logger.Error("kafka_reader_close_failed", "error", err)
		}
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka_writer_close_failed", "error", err)
		}
	}
	if err := pkgdb.Close(db); err != nil {
		logger.Error("db_close_failed", "error", err)
	}
	logger.Info("stopped")
}
