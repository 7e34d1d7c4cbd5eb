package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"cross_arb/internal/app"
	"cross_arb/internal/config"
	"cross_arb/pkg/logging"
	"cross_arb/pkg/telemetry"
)

var (
	// Version information (set via build flags)
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("cross_arb version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// Credentials usually live in a local .env; a missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewZapLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logging.SetGlobalLogger(logger)

	logger.Info("Starting cross_arb",
		"version", version,
		"cex_symbol", cfg.CEX.Symbol,
		"dex_symbol", cfg.DEX.Symbol,
		"testnet", cfg.DEX.Testnet,
	)

	if cfg.Telemetry.EnableMetrics {
		if err := telemetry.InitMetrics(); err != nil {
			logger.Warn("Failed to initialize metrics exporter", "error", err)
		} else {
			logger.Info("Metrics exporter initialized")
		}
	}

	engine, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to assemble engine", "error", err)
		os.Exit(1)
	}

	if err := engine.Run(); err != nil {
		logger.Error("Engine exited with error", "error", err)
		os.Exit(1)
	}
}
