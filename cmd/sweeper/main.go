package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"binance-sweep-bot/internal/app"
	"binance-sweep-bot/internal/config"
	"binance-sweep-bot/internal/logging"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single sweep cycle and exit")
	flag.Parse()

	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	log := logging.New(cfg.Log)
	log.Info("config loaded",
		zap.String("path", *configPath),
		zap.String("target", cfg.Sweep.Target),
		zap.Bool("dry_run", cfg.Sweep.DryRunValue()),
	)

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize app", zap.Error(err))
		os.Exit(1)
	}
	log.Info("app initialized")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		defer application.Close()
		if err := application.RunOnce(ctx); err != nil {
			log.Error("sweep cycle failed", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	if err := application.Run(ctx); err != nil && err != context.Canceled {
		log.Error("app terminated", zap.Error(err))
		os.Exit(1)
	}
}
