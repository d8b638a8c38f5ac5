package app

import (
	"context"
	"strings"

	"github.com/NasaVasa/itemwatcher/internal/config"
	"github.com/NasaVasa/itemwatcher/internal/delivery/httpapi"
	"github.com/NasaVasa/itemwatcher/internal/delivery/telegram"
	"github.com/NasaVasa/itemwatcher/internal/infra/db"
	"github.com/NasaVasa/itemwatcher/internal/infra/log"
	"github.com/NasaVasa/itemwatcher/internal/infra/notify"
	"github.com/NasaVasa/itemwatcher/internal/infra/scraper"
	"github.com/NasaVasa/itemwatcher/internal/scheduler"
	"github.com/NasaVasa/itemwatcher/internal/usecase"
	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options selects which parts of the service are built. One-shot CLI
// commands leave Serve off so no bot or listener is started.
type Options struct {
	Serve bool
	// Notify enables the email and Telegram alert channels. Without it alerts
	// only go to the log.
	Notify bool
}

var (
	openDB    = db.Open
	newBotAPI = telegram.NewAPI
)

type App struct {
	Products *usecase.ProductUsecase
	Watch    *usecase.WatchUsecase
	Logger   *zap.Logger

	scheduler *scheduler.Scheduler
	bot       *telegram.Bot
	server    *httpapi.Server
	cleanupFn func() error
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger, err := log.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	dbConn, err := openDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := dbConn.DB()
	if err != nil {
		return nil, err
	}

	productRepo := db.NewProductRepository(dbConn)
	historyRepo := db.NewHistoryRepository(dbConn)

	fetcher := scraper.NewFetcher(scraper.FetcherConfig{
		UserAgent:   cfg.ScraperUserAgent,
		RatePerHost: cfg.ScraperRatePerHost,
		Timeout:     cfg.ScrapeTimeout,
	})
	registry := scraper.NewDefaultRegistry(fetcher)

	alerts := notify.NewFanout()
	if opts.Notify && cfg.EmailEnabled() {
		alerts.Add(notify.NewEmailNotifier(notify.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			To:       cfg.AlertToEmail,
		}, logger))
	}

	var botAPI *tgbotapi.BotAPI
	if (opts.Notify || opts.Serve) && cfg.TelegramEnabled() {
		api, err := newBotAPI(cfg.TelegramBotToken)
		if err != nil {
			if opts.Serve {
				_ = sqlDB.Close()
				return nil, err
			}
			logger.Warn("telegram unavailable, alerts will not be sent there", zap.Error(err))
		} else {
			botAPI = api
			if cfg.TelegramChatID != 0 {
				alerts.Add(telegram.NewNotifier(botAPI, cfg.TelegramChatID, logger))
			}
		}
	}

	var hub *httpapi.Hub
	if opts.Serve && cfg.HTTPAddr != "" {
		hub = httpapi.NewHub(logger)
		alerts.Add(hub)
	}
	if alerts.Len() == 0 {
		alerts.Add(notify.NewLogNotifier(logger))
	}

	watch := usecase.NewWatchUsecase(historyRepo, registry, alerts, usecase.WatchConfig{
		ScrapeTimeout:       cfg.ScrapeTimeout,
		DispatchTimeout:     cfg.DispatchTimeout,
		MaxConcurrentChecks: cfg.MaxConcurrentChecks,
	}, logger)
	products := usecase.NewProductUsecase(productRepo, historyRepo, registry, watch)

	a := &App{
		Products:  products,
		Watch:     watch,
		Logger:    logger,
		cleanupFn: sqlDB.Close,
	}
	if !opts.Serve {
		return a, nil
	}

	a.scheduler = scheduler.New(watch, cfg.CheckInterval, logger)
	if botAPI != nil {
		handlers := telegram.NewHandlers(products, watch, cfg.TelegramChatID, logger)
		a.bot = telegram.NewBot(botAPI, handlers, cfg.TelegramPollTimeout)
	}
	if cfg.HTTPAddr != "" {
		if !strings.EqualFold(cfg.LogLevel, "debug") {
			gin.SetMode(gin.ReleaseMode)
		}
		router := httpapi.NewRouter(httpapi.NewHandlers(products, watch, sqlDB, logger), hub, logger)
		a.server = httpapi.NewServer(cfg.HTTPAddr, router, logger)
	}
	return a, nil
}

// Run serves until ctx is done or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.Logger.Info("itemwatcher service starting")
	g, gctx := errgroup.WithContext(ctx)

	if a.scheduler != nil {
		a.scheduler.Start(gctx)
	}
	if a.bot != nil {
		g.Go(func() error { return a.bot.Start(gctx) })
	}
	if a.server != nil {
		g.Go(func() error { return a.server.Start(gctx) })
	}

	a.Logger.Info("itemwatcher service started")
	<-gctx.Done()
	return g.Wait()
}

func (a *App) Shutdown() {
	a.Logger.Info("itemwatcher shutting down")
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.cleanupFn != nil {
		if err := a.cleanupFn(); err != nil {
			a.Logger.Warn("failed to close database", zap.Error(err))
		}
	}
	_ = a.Logger.Sync()
}
