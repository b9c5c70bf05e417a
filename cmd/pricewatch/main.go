package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cenownik/pricewatch/internal/config"
	"github.com/cenownik/pricewatch/internal/notify"
	"github.com/cenownik/pricewatch/internal/obs"
	pg "github.com/cenownik/pricewatch/internal/repository/postgres"
	"github.com/cenownik/pricewatch/internal/sched"
	"github.com/cenownik/pricewatch/internal/scrape"
	"github.com/cenownik/pricewatch/internal/server"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	l.Info("starting pricewatch",
		zap.String("control_addr", cfg.Server.ControlAddr),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
		zap.String("default_cron", cfg.Scrape.DefaultCron),
	)

	// otel
	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.NewDB(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	offerRepo := pg.NewOfferRepo(db)
	historyRepo := pg.NewHistoryRepo(db)
	settingsStore := pg.NewSettingsStore(db)

	// extraction
	hc := scrape.NewHTTPClient(cfg.Scrape.Fetch)
	registry := scrape.NewRegistry(l,
		scrape.NewMoreleExtractor(hc, cfg.Scrape.Fetch.UserAgent, l),
		scrape.NewXkomExtractor(cfg.Scrape.Fetch.BrowserTimeout, cfg.Scrape.Fetch.UserAgent, l),
	)

	// notification channels
	mailer := notify.NewMailer(cfg.Notify.Email, l)
	emailCh := notify.NewEmailChannel(mailer, cfg.Notify.Attempts, cfg.Notify.BackoffBase, l)
	discordCh := notify.NewDiscordChannel(hc, cfg.Notify.Discord, cfg.Notify.Attempts, cfg.Notify.BackoffBase, l)
	dispatcher := notify.NewDispatcher(emailCh, discordCh, l)

	// pipeline
	sweeper := sched.NewSweeper(
		offerRepo, historyRepo, registry, dispatcher, systemClock{},
		cfg.Scrape.ListingDelay, cfg.Scrape.SweepTimeout, l,
	)
	svc := sched.NewService(cfg.Scrape, settingsStore, sweeper, l)

	// metrics server
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return db.Pool.Ping(hctx)
	}, l)

	// control server
	control := server.NewControl(svc, registry, historyRepo, discordCh, mailer, l)
	cs := server.BootstrapControlServer(cfg.Server.ControlAddr, control.Handler(), l)

	// run
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Start(ctx) }()

	l.Info("pricewatch started")

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("scheduler error", zap.Error(err))
		}
		<-ctx.Done()
	}

	// graceful shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = cs.Shutdown(shCtx)
	_ = ms.Shutdown(shCtx)
	svc.Stop()
	l.Info("bye")
}
