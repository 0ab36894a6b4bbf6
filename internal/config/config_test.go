package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddress() != ":9000" || cfg.PingInterval() != 30*time.Second || cfg.WriteTimeout() != 15*time.Second {
		t.Fatalf("unexpected transport defaults %+v", cfg)
	}
	if cfg.HeartbeatInterval() != 60 || cfg.CommandTimeout() != 30*time.Second || cfg.ConfigPullDelay() != 2*time.Second {
		t.Fatalf("unexpected ocpp defaults %+v", cfg.OCPP)
	}
	if cfg.Storage.Driver != DriverFile || cfg.Storage.ReadingCap != 500 || cfg.ResetInterval() != 24*time.Hour {
		t.Fatalf("unexpected storage defaults %+v", cfg.Storage)
	}
	if len(cfg.OCPP.ExemptChargers) != 1 || cfg.OCPP.ExemptChargers[0] != "BEDAS01" {
		t.Fatalf("unexpected exempt chargers %v", cfg.OCPP.ExemptChargers)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ocpp.yaml")
	body := `
http:
  port: "9100"
storage:
  driver: sqlite
  dataDir: /var/lib/ocpp
energy:
  units:
    VENDOR_A_07: Wh
auth:
  enabled: true
  chargers:
    CP-1: "$2a$10$hash"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OCPP_EXEMPT_CHARGERS", "BEDAS01, LAB-2")
	t.Setenv("OCPP_HEARTBEAT_INTERVAL", "120")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddress() != ":9100" || cfg.Storage.Driver != DriverSQLite {
		t.Fatalf("file values not applied %+v", cfg)
	}
	if cfg.SQLitePath() != filepath.Join("/var/lib/ocpp", "ocpp.db") {
		t.Fatalf("unexpected sqlite path %s", cfg.SQLitePath())
	}
	if cfg.Energy.Units["VENDOR_A_07"] != "Wh" || cfg.Auth.Chargers["CP-1"] == "" {
		t.Fatalf("maps not loaded %+v %+v", cfg.Energy, cfg.Auth)
	}
	if cfg.HeartbeatInterval() != 120 || len(cfg.OCPP.ExemptChargers) != 2 || cfg.OCPP.ExemptChargers[1] != "LAB-2" {
		t.Fatalf("env overrides not applied %+v", cfg.OCPP)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Driver = DriverPostgres }, wantErr: true},
		{name: "redis with addr", mutate: func(c *Config) { c.Storage.Driver = "REDIS"; c.Storage.RedisAddr = "localhost:6379" }},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "mongo" }, wantErr: true},
		{name: "auth without credentials", mutate: func(c *Config) { c.Auth.Enabled = true }, wantErr: true},
		{name: "bad qos", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
