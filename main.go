package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fundingwatch/config"
	"fundingwatch/internal/dashboard"
	"fundingwatch/internal/dedup"
	"fundingwatch/internal/metrics"
	"fundingwatch/internal/monitor"
	"fundingwatch/internal/notifier"
	"fundingwatch/internal/pipeline"
	"fundingwatch/internal/scheduler"
	"fundingwatch/logger"
)

func main() {
	log := logger.GetLogger()

	if err := config.LoadDotEnv(); err != nil {
		log.WithError(err).Warn("error loading .env file")
	}

	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(config.ResolvePath(*configPath))
	if err != nil {
		log.WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": config.AppEnvironment(),
	}).Info("starting fundingwatch")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Logging.ReportInterval > 0 {
		logger.StartReport(ctx, log, cfg.Logging.ReportInterval)
	}
	if cfg.Metrics.Prometheus {
		metrics.Init()
	}
	if cfg.Metrics.CloudWatch.Enabled {
		metrics.InitCloudWatch(ctx, cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}

	var opts []monitor.Option
	store, err := dedup.New(ctx, cfg.Dedup, cfg.Redis)
	switch {
	case err != nil:
		log.WithComponent("main").WithError(err).Error("alert suppression store unavailable, continuing without it")
	case store != nil:
		defer store.Close()
		opts = append(opts, monitor.WithDedup(store, cfg.Dedup.TTL))
	}

	notify := notifier.FromConfig(cfg.Notifier)
	if notify.Name() == "log" && config.IsProductionLike(config.AppEnvironment()) {
		log.WithComponent("main").WithEnv("APP_ENV").Error("no notifier configured for a production environment")
		os.Exit(1)
	}
	adapters := pipeline.Adapters(cfg)
	mon := monitor.New(pipeline.New(adapters, pipeline.OptionsFromConfig(cfg)), notify, opts...)

	log.WithComponent("main").WithFields(logger.Fields{
		"exchanges": len(adapters),
		"notifier":  notify.Name(),
		"interval":  cfg.Alert.Interval.String(),
		"window":    cfg.Alert.Window().String(),
	}).Info("funding monitor configured")

	var wg sync.WaitGroup

	sched := scheduler.New(cfg.Alert.Interval, func(ctx context.Context) {
		if _, err := mon.Check(ctx); err != nil {
			log.WithComponent("main").WithError(err).Warn("scheduled funding check failed")
		}
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sched.Run(ctx); err != nil {
			log.WithComponent("main").WithError(err).Error("scheduler failed to start")
			stop()
		}
	}()

	if srv := dashboard.NewServer(cfg.Server, mon, log,
		dashboard.WithPrometheus(cfg.Metrics.Prometheus),
		dashboard.WithScheduler(sched),
	); srv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				log.WithComponent("main").WithError(err).Error("http server failed")
				stop()
			}
		}()
	} else {
		log.WithComponent("main").Info("http server disabled")
	}

	<-ctx.Done()
	log.Info("shutdown signal received, starting graceful shutdown")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("fundingwatch stopped")
}
