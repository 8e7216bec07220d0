package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Server.Port != 3001 {
		t.Fatalf("expected port 3001, got %d", c.Server.Port)
	}
	if c.Arena.TickInterval != 10*time.Second || c.Arena.MaxFighters != 50 {
		t.Fatalf("unexpected arena defaults: %+v", c.Arena)
	}
	if c.Arena.StartingCash != 10000 || c.Arena.TradeFraction != 0.1 {
		t.Fatalf("unexpected cash defaults: %+v", c.Arena)
	}
	if c.PriceFeed.Source != "coingecko" || c.PriceFeed.CoinGecko.CacheTTL != 12*time.Second {
		t.Fatalf("unexpected price feed defaults: %+v", c.PriceFeed)
	}
	if c.Persistence.Backend != "memory" || c.Persistence.Queue != "memory" {
		t.Fatalf("unexpected persistence defaults: %+v", c.Persistence)
	}
}

func TestParseOverrides(t *testing.T) {
	y := `
arena:
  tick_interval: 2s
  max_fighters: 5
persistence:
  backend: sqlite
`
	c, err := Parse([]byte(y))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Arena.TickInterval != 2*time.Second || c.Arena.MaxFighters != 5 {
		t.Fatalf("overrides not applied: %+v", c.Arena)
	}
	if c.Arena.SignalCap != 100 {
		t.Fatalf("expected untouched default signal cap, got %d", c.Arena.SignalCap)
	}
	if c.Persistence.Backend != "sqlite" {
		t.Fatalf("expected sqlite backend, got %s", c.Persistence.Backend)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"bad fraction", "arena:\n  trade_fraction: 1.5\n", "trade_fraction"},
		{"unknown source", "price_feed:\n  source: binance\n", "price_feed.source"},
		{"finnhub without key", "price_feed:\n  source: finnhub\n", "api_key"},
		{"postgres without dsn", "persistence:\n  backend: postgres\n", "postgres.dsn"},
		{"unknown backend", "persistence:\n  backend: mongo\n", "persistence.backend"},
		{"redis queue without redis", "persistence:\n  queue: redis\n", "redis.enabled"},
		{"kafka without brokers", "kafka:\n  enabled: true\n", "brokers"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	c, err := Parse(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c.applyEnv()

	if c.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", c.Server.Port)
	}
	if !c.Redis.Enabled || c.Redis.Addr != "redis:6379" || c.Redis.DB != 3 {
		t.Fatalf("redis env not applied: %+v", c.Redis)
	}
	if !c.Kafka.Enabled || len(c.Kafka.Brokers) != 2 {
		t.Fatalf("kafka env not applied: %+v", c.Kafka)
	}
}

func TestApplyEnv_IgnoresBadPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	c, err := Parse(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c.applyEnv()
	if c.Server.Port != 3001 {
		t.Fatalf("expected default port to survive, got %d", c.Server.Port)
	}
}
