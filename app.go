package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kaizen/analytics"
	"kaizen/auth"
	"kaizen/cache"
	"kaizen/config"
	"kaizen/db"
	"kaizen/handlers"
	"kaizen/logging"
	"kaizen/middleware"
	"kaizen/services"
	"kaizen/store"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/redis/go-redis/v9"
)

// app holds every long-lived component the commands need.
type app struct {
	cfg *config.Config
	log *logging.Logger

	db         *sql.DB
	redis      *redis.Client
	clickhouse driver.Conn

	tracker     *analytics.Tracker
	accounts    *auth.Controller
	content     *services.ContentService
	subscribers *services.SubscriberService
	tierSync    *services.TierSync
	welcome     *services.WelcomeDispatcher
	limiter     *middleware.RateLimiter
}

func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logging.InitGlobalLogger(logging.ParseLevel(cfg.Logging.Level), logging.ParseFormat(cfg.Logging.Format))
	return cfg, logging.GetGlobalLogger(), nil
}

// newApp connects to Postgres and, when configured, Redis and ClickHouse.
// Optional backends that fail to connect are logged and left out.
func newApp(cfg *config.Config, log *logging.Logger) (*app, error) {
	conn, err := db.InitDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a := &app{cfg: cfg, log: log, db: conn}

	if cfg.Redis.Addr != "" {
		client, err := cache.NewClient(cfg.Redis)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, continuing without cache, ledger or denylist")
		} else {
			a.redis = client
		}
	}

	a.tracker = a.buildTracker()

	mailer := a.buildMailer()

	subscriberStore := store.NewSubscriberStore(conn)
	emailLogs := store.NewEmailLogStore(conn)

	var listCache services.ListCache
	if a.redis != nil && cfg.Features.CacheEnabled {
		listCache = cache.NewContentCache(a.redis, cfg.Redis.ContentTTL)
	}
	a.content = services.NewContentService(store.NewContentStore(conn), listCache, log)

	var queue services.EmailQueue = emailLogs
	var tracker services.EventTracker
	if a.tracker != nil {
		tracker = a.tracker
	}
	a.subscribers = services.NewSubscriberService(subscriberStore, queue, tracker, log)

	var ledger services.EventLedger
	if a.redis != nil {
		ledger = cache.NewEventLedger(a.redis, cfg.Redis.EventTTL)
	}
	a.tierSync = services.NewTierSync(subscriberStore, ledger, log)
	if cfg.Alerts.SlackWebhookURL != "" {
		a.tierSync.WithAlerts(services.NewSlackNotifier(cfg.Alerts.SlackWebhookURL))
	}

	if mailer != nil {
		a.welcome = services.NewWelcomeDispatcher(emailLogs, mailer, cfg.Jobs.WelcomeBatch, log)
	}

	if cfg.Features.AuthEnabled {
		a.accounts = a.buildAccounts(subscriberStore, mailer)
	}

	a.limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	return a, nil
}

func (a *app) buildTracker() *analytics.Tracker {
	if !a.cfg.Features.AnalyticsEnabled {
		return nil
	}

	sinks := []analytics.Sink{store.NewPageViewStore(a.db)}
	if a.cfg.ClickHouse.Addr != "" {
		sink, conn, err := analytics.NewClickHouseSink(a.cfg.ClickHouse)
		if err != nil {
			a.log.WithError(err).Warn("clickhouse unavailable, page views stay in postgres only")
		} else {
			a.clickhouse = conn
			sinks = append(sinks, sink)
		}
	}
	return analytics.NewTracker(a.log, 5*time.Second, sinks...)
}

func (a *app) buildMailer() *services.SendGridMailer {
	if a.cfg.Email.SendGridAPIKey == "" {
		a.log.Warn("SENDGRID_API_KEY not set, welcome and reset emails are disabled")
		return nil
	}
	return services.NewSendGridMailer(a.cfg.Email)
}

func (a *app) buildAccounts(subscribers *store.SubscriberStore, mailer *services.SendGridMailer) *auth.Controller {
	opts := auth.Options{
		Users:       store.NewUserStore(a.db),
		Subscribers: subscribers,
		Tokens:      auth.NewTokenIssuer(a.cfg.Auth.JWTSecret, a.cfg.Auth.TokenTTL),
		ResetTTL:    a.cfg.Auth.ResetTTL,
		BaseURL:     a.cfg.Server.BaseURL,
		Logger:      a.log,
	}
	if a.redis != nil {
		opts.Revoker = cache.NewDenylist(a.redis)
	}
	if mailer != nil {
		opts.Mailer = mailer
	}

	controller := auth.NewController(opts)
	controller.Subscribe(auth.LoggingObserver(a.log))
	if a.tracker != nil {
		controller.Subscribe(auth.AnalyticsObserver(a.tracker))
	}
	return controller
}

func (a *app) deps() handlers.Deps {
	d := handlers.Deps{
		Config:      a.cfg,
		Logger:      a.log,
		Content:     a.content,
		Subscribers: a.subscribers,
		TierSync:    a.tierSync,
		Limiter:     a.limiter,
	}
	if a.accounts != nil {
		d.Accounts = a.accounts
		d.Sessions = a.accounts
	}
	if a.welcome != nil {
		d.Welcome = a.welcome
	}
	if a.tracker != nil {
		d.Events = a.tracker
		d.PageViews = a.tracker
	}
	return d
}

// runWelcomeTicker drains the welcome queue on a fixed interval until ctx ends.
func (a *app) runWelcomeTicker(ctx context.Context) {
	interval := a.cfg.Jobs.WelcomeInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := a.log.WithField("component", "welcome_ticker")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.WithField("panic", r).Error("welcome ticker panic")
					}
				}()
				report, err := a.welcome.Run(ctx)
				if err != nil {
					log.WithError(err).Error("welcome dispatch failed")
					return
				}
				if len(report.Results) > 0 {
					log.WithField("processed", len(report.Results)).Info(report.Message)
				}
			}()
		}
	}
}

// runLimiterSweep drops idle per-IP rate limiters.
func (a *app) runLimiterSweep(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.limiter.Sweep(); n > 0 {
				a.log.WithField("removed", n).Debug("swept idle rate limiters")
			}
		}
	}
}

func (a *app) Close() {
	a.tracker.Wait()
	if a.clickhouse != nil {
		a.clickhouse.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
