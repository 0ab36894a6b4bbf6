package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	libconfig "evquota/libs/config"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type HTTPConfig struct {
	Port string `yaml:"port" env:"OCPP_HTTP_PORT"`
}

type WebSocketConfig struct {
	PingIntervalSeconds int `yaml:"pingIntervalSeconds" env:"OCPP_PING_INTERVAL"`
	WriteTimeoutSeconds int `yaml:"writeTimeoutSeconds" env:"OCPP_WRITE_TIMEOUT"`
}

type OCPPConfig struct {
	HeartbeatIntervalSeconds int      `yaml:"heartbeatIntervalSeconds" env:"OCPP_HEARTBEAT_INTERVAL"`
	CommandTimeoutSeconds    int      `yaml:"commandTimeoutSeconds" env:"OCPP_COMMAND_TIMEOUT"`
	ConfigPullDelaySeconds   int      `yaml:"configPullDelaySeconds" env:"OCPP_CONFIG_PULL_DELAY"`
	ExemptChargers           []string `yaml:"exemptChargers" env:"OCPP_EXEMPT_CHARGERS"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver" env:"STORAGE_DRIVER"`
	DataDir     string `yaml:"dataDir" env:"STORAGE_DATA_DIR"`
	SQLitePath  string `yaml:"sqlitePath" env:"STORAGE_SQLITE_PATH"`
	PostgresDSN string `yaml:"postgresDsn" env:"OCPP_POSTGRES_DSN"`
	RedisAddr   string `yaml:"redisAddr" env:"REDIS_ADDR"`
	RedisPass   string `yaml:"redisPassword" env:"REDIS_PASSWORD"`
	RedisDB     int    `yaml:"redisDb" env:"REDIS_DB"`
	RedisPrefix string `yaml:"redisPrefix" env:"REDIS_PREFIX"`
	ReadingCap  int    `yaml:"readingCap" env:"STORAGE_READING_CAP"`
}

type QuotaConfig struct {
	RosterPath           string `yaml:"rosterPath" env:"QUOTA_ROSTER_PATH"`
	WatchRoster          bool   `yaml:"watchRoster" env:"QUOTA_WATCH_ROSTER"`
	ResetIntervalSeconds int    `yaml:"resetIntervalSeconds" env:"QUOTA_RESET_INTERVAL"`
}

type EnergyConfig struct {
	WhFamilies []string `yaml:"whFamilies" env:"ENERGY_WH_FAMILIES"`
	// Units maps a charger id to "Wh" or "kWh". File only.
	Units map[string]string `yaml:"units" env:"-"`
}

type TelemetryConfig struct {
	URL            string `yaml:"url" env:"TELEMETRY_URL"`
	APIKey         string `yaml:"apiKey" env:"TELEMETRY_API_KEY"`
	JWTSecret      string `yaml:"jwtSecret" env:"TELEMETRY_JWT_SECRET"`
	JWTIssuer      string `yaml:"jwtIssuer" env:"TELEMETRY_JWT_ISSUER"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" env:"TELEMETRY_TIMEOUT"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker" env:"MQTT_BROKER"`
	ClientID string `yaml:"clientId" env:"MQTT_CLIENT_ID"`
	Username string `yaml:"username" env:"MQTT_USERNAME"`
	Password string `yaml:"password" env:"MQTT_PASSWORD"`
	Topic    string `yaml:"topic" env:"MQTT_TOPIC"`
	QoS      int    `yaml:"qos" env:"MQTT_QOS"`
}

type AuthConfig struct {
	Enabled bool `yaml:"enabled" env:"OCPP_AUTH_ENABLED"`
	// Chargers maps a charger id to the bcrypt hash of its password. File only.
	Chargers map[string]string `yaml:"chargers" env:"-"`
}

// Config defines OCPP server configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	OCPP      OCPPConfig      `yaml:"ocpp"`
	Storage   StorageConfig   `yaml:"storage"`
	Quota     QuotaConfig     `yaml:"quota"`
	Energy    EnergyConfig    `yaml:"energy"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Auth      AuthConfig      `yaml:"auth"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{Port: "9000"},
		WebSocket: WebSocketConfig{
			PingIntervalSeconds: 30,
			WriteTimeoutSeconds: 15,
		},
		OCPP: OCPPConfig{
			HeartbeatIntervalSeconds: 60,
			CommandTimeoutSeconds:    30,
			ConfigPullDelaySeconds:   2,
			ExemptChargers:           []string{"BEDAS01"},
		},
		Storage: StorageConfig{
			Driver:     DriverFile,
			DataDir:    "./data",
			ReadingCap: 500,
		},
		Quota: QuotaConfig{
			RosterPath:           "./data/users1.csv",
			WatchRoster:          true,
			ResetIntervalSeconds: 24 * 60 * 60,
		},
		Energy: EnergyConfig{
			WhFamilies: []string{"SCHNEIDER", "EVLINKPROAC", "EVLINK"},
		},
		Telemetry: TelemetryConfig{
			JWTIssuer:      "ocpp-server",
			TimeoutSeconds: 10,
		},
		MQTT: MQTTConfig{
			ClientID: "ocpp-server",
			Topic:    "evse/{charger}/readings",
		},
	}
}

// Load reads the optional YAML file at path (CONFIG_FILE when empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	var err error
	if path != "" {
		err = libconfig.LoadConfigFile(path, cfg)
	} else {
		err = libconfig.LoadConfig(cfg)
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case DriverFile, DriverSQLite:
	case DriverPostgres:
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			return errors.New("config: postgres DSN is required for storage driver postgres")
		}
	case DriverRedis:
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			return errors.New("config: redis address is required for storage driver redis")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if strings.TrimSpace(c.Quota.RosterPath) == "" {
		return errors.New("config: roster path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("config: mqtt qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.Auth.Enabled && len(c.Auth.Chargers) == 0 {
		return errors.New("config: auth enabled but no charger credentials configured")
	}
	return nil
}

// HTTPAddress returns :port style address.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "9000"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// SQLitePath returns the database file, defaulting into the data directory.
func (c *Config) SQLitePath() string {
	if p := strings.TrimSpace(c.Storage.SQLitePath); p != "" {
		return p
	}
	return filepath.Join(c.Storage.DataDir, "ocpp.db")
}

func seconds(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}

// PingInterval returns websocket ping interval.
func (c *Config) PingInterval() time.Duration {
	return seconds(c.WebSocket.PingIntervalSeconds, 30)
}

// WriteTimeout returns websocket write timeout.
func (c *Config) WriteTimeout() time.Duration {
	return seconds(c.WebSocket.WriteTimeoutSeconds, 15)
}

// ReadTimeout allows two missed pongs before a connection is considered dead.
func (c *Config) ReadTimeout() time.Duration {
	return 2 * c.PingInterval()
}

func (c *Config) HeartbeatInterval() int {
	if c.OCPP.HeartbeatIntervalSeconds <= 0 {
		return 60
	}
	return c.OCPP.HeartbeatIntervalSeconds
}

func (c *Config) CommandTimeout() time.Duration {
	return seconds(c.OCPP.CommandTimeoutSeconds, 30)
}

func (c *Config) ConfigPullDelay() time.Duration {
	return seconds(c.OCPP.ConfigPullDelaySeconds, 2)
}

func (c *Config) TelemetryTimeout() time.Duration {
	return seconds(c.Telemetry.TimeoutSeconds, 10)
}

func (c *Config) ResetInterval() time.Duration {
	return seconds(c.Quota.ResetIntervalSeconds, 24*60*60)
}
