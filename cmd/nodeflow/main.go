// nodeflow service entry point.
//
// Usage:
//
//	nodeflow serve                      # start the service
//	nodeflow serve --config config.yaml # with a config file
//	nodeflow migrate                    # run schema migration and exit
//	nodeflow version                    # print version
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/nodeflow/config"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	command := os.Args[1]
	flags := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := flags.String("config", "", "path to YAML config file")
	_ = flags.Parse(os.Args[2:])

	switch command {
	case "version":
		fmt.Printf("nodeflow %s\n", version)
		return
	case "serve", "migrate":
	default:
		usage()
		os.Exit(2)
	}

	cfg, err := config.NewLoader().WithConfigPath(*configPath).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	switch command {
	case "serve":
		if err := runServe(cfg, logger); err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	case "migrate":
		if err := runMigrate(cfg, logger); err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
	}
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: nodeflow <serve|migrate|version> [--config path]")
}
