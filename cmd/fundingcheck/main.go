// Command fundingcheck runs a single funding cycle and prints the digests.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fundingwatch/config"
	"fundingwatch/internal/monitor"
	"fundingwatch/internal/notifier"
	"fundingwatch/internal/pipeline"
	"fundingwatch/logger"
)

func main() {
	log := logger.GetLogger()

	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	window := flag.Int("window", 0, "Look-ahead window in minutes (0 uses the configured value)")
	top := flag.Int("top", 0, "Rates per side for each exchange (0 uses the configured value)")
	deliver := flag.Bool("deliver", false, "Send the digests through the configured notifiers")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		log.WithError(err).Warn("error loading .env file")
	}

	cfg, err := config.LoadConfig(config.ResolvePath(*configPath))
	if err != nil {
		log.WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, "stderr", 0); err != nil {
		log.WithError(err).Error("failed to configure logger")
		os.Exit(1)
	}

	opts := pipeline.OptionsFromConfig(cfg)
	if *window > 0 {
		opts.Window = time.Duration(*window) * time.Minute
	}
	if *top > 0 {
		opts.TopN = *top
	}
	p := pipeline.New(pipeline.Adapters(cfg), opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var messages []string
	if *deliver {
		rep, err := monitor.New(p, notifier.FromConfig(cfg.Notifier)).Check(ctx)
		if err != nil {
			log.WithError(err).Error("funding check failed")
			os.Exit(1)
		}
		messages = rep.Messages
		for _, e := range rep.DeliveryErrors {
			fmt.Fprintln(os.Stderr, "delivery failed:", e)
		}
	} else {
		res, err := p.Run(ctx)
		if err != nil {
			log.WithError(err).Error("funding check failed")
			os.Exit(1)
		}
		messages = res.Messages()
	}

	if len(messages) == 0 {
		fmt.Println("No funding settlements within the window.")
		return
	}
	for _, msg := range messages {
		fmt.Println(msg)
	}
}
