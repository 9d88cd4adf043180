// Command api runs the harvest loop in the background and serves the news
// read API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/RobinCoderZhao/newsdesk/internal/api"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/app"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/metrics"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/publisher"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/scheduler"
	"github.com/RobinCoderZhao/newsdesk/pkg/logger"
	"github.com/RobinCoderZhao/newsdesk/pkg/notify"
)

func main() {
	configPath := flag.String("config", "newsdesk.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// Observers
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)
	metricEvents, unsubMetrics := a.Pipeline.Subscribe(64)
	defer unsubMetrics()
	go m.Observe(ctx, metricEvents)

	dispatcher := notify.FromConfig(cfg.Notify, log.Named("notify"))
	if len(dispatcher.Channels()) > 0 {
		pub := publisher.NewPublisher(dispatcher, nil, log.Named("publisher"))
		pub.OnlyChanges = cfg.NotifyOnlyChanges
		pubEvents, unsubPub := a.Pipeline.Subscribe(8)
		defer unsubPub()
		go pub.Observe(ctx, pubEvents)
	}

	maint := scheduler.NewMaintenance(log.Named("maintenance"))
	if cfg.PurgeSchedule != "" {
		if err := maint.Add(cfg.PurgeSchedule, scheduler.PurgeJob(a.Store, a.Policy.Names(), log)); err != nil {
			return err
		}
		maint.Start(ctx)
		defer maint.Stop()
	}

	// Background harvest loop
	sched := scheduler.NewScheduler(log.Named("scheduler"))
	sched.Add(scheduler.Job{Name: "sweep", Fn: func(ctx context.Context) error {
		report := a.Pipeline.RunFullSweep(ctx)
		if n := report.Failures(); n == len(report.Sources) && n > 0 {
			return fmt.Errorf("all %d sources failed", n)
		}
		return nil
	}})
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		sched.Start(ctx, cfg.Interval)
	}()

	server := api.NewServer(a.Store,
		api.WithSweeper(a.Pipeline),
		api.WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
		api.WithAuthSecret(cfg.APISecret),
		api.WithLogger(log.Named("api")),
		api.WithBaseContext(ctx),
	)
	if cfg.APISecret == "" {
		log.Warn("api_secret not set, POST /api/scrape accepts unauthenticated requests")
	}
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.CORS(cfg.CORSOrigin, server.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting REST API server",
			zap.String("addr", cfg.Listen),
			zap.Int("sources", a.Catalog.Len()),
			zap.Duration("interval", cfg.Interval))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			serveErr = fmt.Errorf("serve: %w", err)
		}
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	stop()
	sched.Stop()
	<-loopDone
	server.Wait()
	return serveErr
}
