package main

import (
	"fmt"
	"log"
	"os"

	"github.com/alecthomas/kong"

	"ModelArena/internal/di"
	"ModelArena/pkg/config"
)

// CommandLine holds the flags accepted by the arena server. Flags override
// both the YAML file and the environment.
type CommandLine struct {
	Config   string `short:"c" default:"config/config.yaml" help:"Configuration file"`
	LogLevel string `short:"l" help:"Override the configured log level"`
	Backend  string `short:"b" help:"Override the persistence backend (memory, sqlite, postgres, clickhouse)"`
	Port     int    `short:"p" help:"Override the HTTP port"`
	Check    bool   `help:"Validate the configuration and exit"`
}

func (cli CommandLine) apply(cfg *config.Config) error {
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.Backend != "" {
		cfg.Persistence.Backend = cli.Backend
	}
	if cli.Port > 0 {
		cfg.Server.Port = cli.Port
	}
	return cfg.Validate()
}

func main() {
	var cli CommandLine
	kong.Parse(&cli,
		kong.Name("arena"),
		kong.Description("Runs the trading model arena."),
	)

	cfg, err := config.LoadWithEnv(cli.Config)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if err := cli.apply(cfg); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}
	if cli.Check {
		fmt.Printf("config ok: env=%s price_source=%s backend=%s queue=%s\n",
			cfg.Environment, cfg.PriceFeed.Source, cfg.Persistence.Backend, cfg.Persistence.Queue)
		return
	}

	log.Printf("env=%s price_source=%s backend=%s queue=%s",
		cfg.Environment, cfg.PriceFeed.Source, cfg.Persistence.Backend, cfg.Persistence.Queue)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}
	if cfg.Kafka.Enabled {
		log.Printf("kafka: trade stream brokers=%v topic=%s", cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
