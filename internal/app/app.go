package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"netwatch/internal/alerts"
	"netwatch/internal/collector"
	"netwatch/internal/config"
	"netwatch/internal/db"
	"netwatch/internal/history"
	"netwatch/internal/monitor"
	"netwatch/internal/notifier"
	"netwatch/internal/pubsub"
	"netwatch/internal/retention"
	"netwatch/internal/web"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	cfg config.Config
	log *slog.Logger

	sqldb *sql.DB
	repo  *db.Repository
	bus   *pubsub.Bus

	monitor    *monitor.Monitor
	hub        *pubsub.Hub
	dispatcher *notifier.Dispatcher
	recorder   *db.Recorder
	retention  *retention.Service

	httpSrv *http.Server
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	clk := clock.New()

	// Each App gets its own in-memory journal.
	sqldb, err := db.Open("netwatch-" + uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Migrate(sqldb); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	repo := db.NewRepository(sqldb)

	source, err := collector.NewNetDevSource(collector.Options{
		ProcPath:     cfg.ProcPath,
		SkipLoopback: cfg.SkipLoopback,
		Interfaces:   cfg.Interfaces,
	}, clk)
	if err != nil {
		_ = sqldb.Close()
		return nil, err
	}

	bus := pubsub.NewBus(cfg.BusBuffer, logger.With("module", "pubsub"), clk)
	store := history.NewStore(clk)
	engine := alerts.NewEngine(logger.With("module", "alerts"), clk)
	mon := monitor.New(source, store, engine, bus, logger.With("module", "monitor"), clk)
	hub := pubsub.NewHub(bus, mon, logger.With("module", "ws"))
	tg := notifier.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
	if !cfg.TelegramEnabled() {
		logger.Info("telegram notifications disabled", "reason", "bot token or chat id not set")
	}
	w := web.NewServer(mon, repo, hub, logger.With("module", "web"))

	return &App{
		cfg:        cfg,
		log:        logger,
		sqldb:      sqldb,
		repo:       repo,
		bus:        bus,
		monitor:    mon,
		hub:        hub,
		dispatcher: notifier.NewDispatcher(tg, repo, bus, cfg.NotifyAttempts, logger.With("module", "notifier"), clk),
		recorder:   db.NewRecorder(repo, bus, logger.With("module", "journal")),
		retention:  retention.NewService(store, repo, cfg.HistoryRetention, cfg.EvictInterval, logger.With("module", "retention"), clk),
		httpSrv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           w.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves until ctx is done or a component fails, then shuts everything
// down and returns the combined error.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return multierr.Append(fmt.Errorf("listen %s: %w", a.cfg.Addr, err), a.sqldb.Close())
	}
	return a.serve(ctx, ln)
}

func (a *App) serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("http server listening", "addr", ln.Addr().String())
		if err := a.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error { return a.hub.Run(gctx) })
	g.Go(func() error { return a.recorder.Run(gctx) })
	g.Go(func() error { return a.dispatcher.Run(gctx) })
	g.Go(func() error { return a.retention.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	if a.cfg.Autostart {
		if err := a.monitor.Start(a.cfg.MonitorInterval); err != nil {
			a.log.Error("autostart failed", "err", err)
		}
	}

	err := g.Wait()
	return multierr.Append(err, a.sqldb.Close())
}

func (a *App) shutdown() error {
	a.monitor.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := a.httpSrv.Shutdown(ctx)
	a.bus.Close()
	a.log.Info("shutdown complete")
	return err
}
