package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("defaults should load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.SearchDelay != 3*time.Second || cfg.IncomingDelay != 2*time.Second || cfg.LoginDelay != time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.KafkaTopic != "ride-events" || cfg.SessionSecret != DevSessionSecret {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadServerConfigFromEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("SEARCH_DELAY", "250ms")
	t.Setenv("MIGRATE", "TRUE")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("MAP_API_KEY", " abc ")
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers %v", cfg.KafkaBrokers)
	}
	if cfg.SearchDelay != 250*time.Millisecond || !cfg.RunMigrations || cfg.LogLevel != "debug" || cfg.MapAPIKey != "abc" {
		t.Fatalf("unexpected cfg %+v", cfg)
	}
}

func TestLoadServerConfigCollectsErrors(t *testing.T) {
	t.Setenv("SEARCH_DELAY", "soon")
	t.Setenv("SESSION_TTL", "0s")
	t.Setenv("MAP_ZOOM", "99")
	_, err := LoadServerConfig()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"SEARCH_DELAY", "SESSION_TTL", "MAP_ZOOM"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadConsumerConfig(t *testing.T) {
	t.Setenv("KAFKA_GROUP", "g1")
	t.Setenv("STATUS_TTL", "1h")
	cfg, err := LoadConsumerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.KafkaGroup != "g1" || cfg.StatusTTL != time.Hour || cfg.KafkaBrokers[0] != "localhost:9092" {
		t.Fatalf("unexpected cfg %+v", cfg)
	}
}
