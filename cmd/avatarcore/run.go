package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/normanking/avatarcore/internal/avatar"
	"github.com/normanking/avatarcore/internal/bus"
	"github.com/normanking/avatarcore/internal/config"
	"github.com/normanking/avatarcore/internal/logging"
	"github.com/normanking/avatarcore/internal/observe"
	"github.com/normanking/avatarcore/internal/posestream"
	"github.com/normanking/avatarcore/internal/turnfeed"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the animation loop, turn feed and pose stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, path)
		},
	}
}

func run(ctx context.Context, cfg *config.Config, path string) error {
	syslog, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer syslog.Close()
	logger := syslog.Zerolog()

	var metrics *observe.Metrics
	if cfg.Metrics.Enabled {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
		metrics = observe.DefaultMetrics()
	}

	model, _, err := openModel(cfg.Model, syslog.Component("model"))
	if err != nil {
		return err
	}

	eventBus := bus.NewEventBus()
	eventBus.Subscribe(bus.EventTypeTurnReceived, func(e bus.Event) {
		syslog.Info("turn", "Turn received", e.Data)
	})
	eventBus.SubscribeMultiple([]bus.EventType{
		bus.EventTypeFeedConnected,
		bus.EventTypeFeedDisconnected,
		bus.EventTypeTuningChanged,
	}, func(e bus.Event) {
		syslog.Debug("bus", string(e.Type), e.Data)
	})

	ctrl := avatar.NewController(model, avatar.Options{
		Tuning:   cfg.Animation,
		Logger:   logger,
		Bus:      eventBus,
		Metrics:  metrics,
		Seed:     cfg.Loop.Seed,
		Collider: headCollider(cfg.Model),
	})
	syslog.Info("main", "Avatar session started", map[string]any{"session": ctrl.SessionID()})

	var servers []*http.Server
	if cfg.Stream.Enabled {
		opts := []posestream.Option{posestream.WithInput(ctrl)}
		if metrics != nil {
			opts = append(opts, posestream.WithMetrics(metrics))
		}
		hub := posestream.NewHub(ctrl.SessionID(), logger, opts...)
		defer hub.Close()
		ctrl.SetOnFrame(hub.Broadcast)

		mux := http.NewServeMux()
		mux.Handle(cfg.Stream.Path, hub)
		servers = append(servers, &http.Server{Addr: cfg.Stream.Addr, Handler: mux})
	}
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, observe.Handler())
		servers = append(servers, &http.Server{Addr: cfg.Metrics.Addr, Handler: mux})
	}
	for _, srv := range servers {
		srv := srv
		go func() {
			syslog.Info("http", "Listening", map[string]any{"addr": srv.Addr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				syslog.Error("http", "Server failed", err, map[string]any{"addr": srv.Addr})
			}
		}()
	}

	var feed *turnfeed.Client
	if cfg.Feed.URL != "" {
		feedOpts := []turnfeed.Option{turnfeed.WithBus(eventBus)}
		if metrics != nil {
			feedOpts = append(feedOpts, turnfeed.WithMetrics(metrics))
		}
		feed = turnfeed.NewClient(cfg.Feed, ctrl, logger, feedOpts...)
		if err := feed.CheckHealth(ctx); err != nil {
			syslog.Warn("feed", "Turn feed health check failed, connecting anyway", map[string]any{"error": err.Error()})
		}
		if err := feed.Connect(ctx); err != nil {
			return err
		}
	}

	if path != "" {
		err := config.Watch(path, func(c *config.Config) {
			ctrl.UpdateTuning(c.Animation)
		}, func(err error) {
			syslog.Warn("config", "Ignoring invalid config change", map[string]any{"error": err.Error()})
		})
		if err != nil {
			syslog.Warn("config", "Config hot reload disabled", map[string]any{"error": err.Error()})
		}
	}

	if err := ctrl.Start(ctx, cfg.Loop.FPS); err != nil {
		return err
	}

	<-ctx.Done()
	syslog.Info("main", "Shutting down", nil)

	if feed != nil {
		feed.Disconnect()
	}
	ctrl.Stop()

	sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(sctx)
	}
	return nil
}
