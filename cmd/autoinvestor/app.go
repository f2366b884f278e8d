package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pdanelson/bondora-auto-investor/internal/auth"
	"github.com/pdanelson/bondora-auto-investor/internal/bidder"
	"github.com/pdanelson/bondora-auto-investor/internal/client/bondora"
	"github.com/pdanelson/bondora-auto-investor/internal/config"
	"github.com/pdanelson/bondora-auto-investor/internal/db"
	"github.com/pdanelson/bondora-auto-investor/internal/handler"
	"github.com/pdanelson/bondora-auto-investor/internal/lock"
	"github.com/pdanelson/bondora-auto-investor/internal/metrics"
	"github.com/pdanelson/bondora-auto-investor/internal/notify"
	"github.com/pdanelson/bondora-auto-investor/internal/repository"
	gormrepository "github.com/pdanelson/bondora-auto-investor/internal/repository/gorm"
	"github.com/pdanelson/bondora-auto-investor/internal/scorer"
	"github.com/pdanelson/bondora-auto-investor/internal/service"
)

// app holds the wired process. close releases whatever was opened.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	db       *db.DB
	market   *bondora.Client
	invest   *service.InvestService
	journal  *service.JournalService
	settings *service.SystemSettingsService
	metrics  *metrics.Metrics
	closers  []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("shutdown close failed", zap.Error(err))
		}
	}
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	bidCfg, err := cfg.ToBidderConfig()
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.DB.DSN) != "" {
		dbConn, err := db.Open(cfg.DB)
		if err != nil {
			return nil, err
		}
		a.db = dbConn
		a.closers = append(a.closers, func() error { return db.Close(dbConn) })
		if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
			logger.Warn("failed to set timezone", zap.Error(err))
		}
		if err := db.AutoMigrate(dbConn); err != nil {
			a.close()
			return nil, err
		}
	} else {
		logger.Warn("no db dsn configured, running without journal and kill switch")
	}

	a.settings = &service.SystemSettingsService{}
	a.journal = &service.JournalService{}
	var store *gormrepository.Store
	if a.db != nil {
		store = gormrepository.New(a.db.Gorm)
		a.settings.Repo = store
		a.journal.Repo = store
		if err := a.settings.EnsureDefaultSwitches(ctx); err != nil {
			logger.Warn("init default system switches failed", zap.Error(err))
		}
	}

	var locker lock.Locker = &lock.LocalLocker{}
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		rl := lock.NewRedisLocker(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.LockKey, cfg.Redis.LockTTL)
		a.closers = append(a.closers, rl.Close)
		locker = rl
	}

	a.market = bondora.NewClient(&http.Client{Timeout: cfg.Bondora.Timeout}, cfg.Bondora.BaseURL, cfg.Bondora.Token)

	var sc bidder.Scorer
	switch cfg.Scorer.Kind {
	case config.ScorerRemote:
		sc = scorer.NewRemote(&http.Client{Timeout: cfg.Scorer.Timeout}, cfg.Scorer.URL)
	default:
		sc = scorer.NewHeuristic(bidCfg.Thresholds.Mode, cfg.Scorer.TaxRate, cfg.Scorer.DefaultLGD)
	}

	a.metrics = metrics.New(prometheus.NewRegistry())

	var notifier notify.Notifier
	if strings.TrimSpace(cfg.Notify.WebhookURL) != "" {
		notifier = &notify.Webhook{
			URL:     cfg.Notify.WebhookURL,
			Project: "bondora-auto-investor",
			HTTP:    &http.Client{Timeout: cfg.Notify.Timeout},
		}
	}

	var journal repository.JournalRepository
	if store != nil {
		journal = store
	}
	a.invest = &service.InvestService{
		Runner: &bidder.Runner{
			Market:    a.market,
			Scorer:    sc,
			Submitter: a.market,
			Config:    bidCfg,
			DryRun:    cfg.Invest.DryRun,
			Logger:    logger,
		},
		Locker:   locker,
		Journal:  journal,
		Settings: a.settings,
		Metrics:  a.metrics,
		Notifier: notifier,
		Logger:   logger,
		DryRun:   cfg.Invest.DryRun,

		PassTimeout: cfg.Invest.PassTimeout,
	}
	return a, nil
}

func (a *app) jwt() auth.JWT {
	return auth.JWT{
		Secret:   []byte(a.cfg.Auth.Secret),
		Issuer:   a.cfg.Auth.Issuer,
		TokenTTL: a.cfg.Auth.TokenTTL,
	}
}

func (a *app) router() http.Handler {
	deps := handler.RouterDeps{
		Logger:      a.logger,
		Auth:        a.jwt(),
		Health:      &handler.HealthHandler{DB: a.db},
		Passes:      &handler.PassesHandler{Invest: a.invest, Journal: a.journal},
		Settings:    &handler.SettingsHandler{Settings: a.settings},
		Marketplace: &handler.MarketplaceHandler{Market: a.market},
	}
	if a.cfg.Metrics.Enabled {
		deps.MetricsPath = a.cfg.Metrics.Path
		deps.MetricsHandler = a.metrics.Handler()
	}
	return handler.NewRouter(deps)
}

// exitCode maps a one-shot pass error onto the process status.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, service.ErrInvestingDisabled):
		return 0
	case errors.Is(err, service.ErrPassInFlight):
		return 3
	default:
		return 1
	}
}
