package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	FritzCfg        *FritzConfig
	MqttCfg         *MqttConfig
	InfluxCfg       *InfluxConfig
	APICfg          *APIConfig
	DatabaseURL     string `env:"DATABASE_URL"`
	MigrationsDir   string `env:"MIGRATIONS_FOLDER" envDefault:"./migrations"`
	AutomationsFile string `env:"AUTOMATIONS_FILE"`
	CleanupSchedule string `env:"CLEANUP_SCHEDULE" envDefault:"0 3 * * *"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"INFO"`
}

// FritzConfig is the data of one config entry: the hub and how to reach it.
type FritzConfig struct {
	EntryID      string        `env:"FRITZ_ENTRY_ID"`
	Host         string        `env:"FRITZ_HOST" envDefault:"fritz.box"`
	Username     string        `env:"FRITZ_USERNAME"`
	Password     string        `env:"FRITZ_PASSWORD"`
	Ssl          bool          `env:"FRITZ_SSL"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"30s"`
}

type MqttConfig struct {
	Host            string `env:"MQTT_HOST"`
	Username        string `env:"MQTT_USER"`
	Password        string `env:"MQTT_PASS"`
	DiscoveryPrefix string `env:"MQTT_DISCOVERY_PREFIX" envDefault:"homeassistant"`
}

type InfluxConfig struct {
	URL    string `env:"INFLUX_URL"`
	Token  string `env:"INFLUX_TOKEN"`
	Org    string `env:"INFLUX_ORG"`
	Bucket string `env:"INFLUX_BUCKET" envDefault:"fritzbox"`
}

type APIConfig struct {
	Addr         string        `env:"API_ADDR" envDefault:"0.0.0.0:8000"`
	PasswordHash string        `env:"API_PASSWORD_HASH"`
	JWTSecret    string        `env:"API_JWT_SECRET"`
	TokenTTL     time.Duration `env:"API_TOKEN_TTL" envDefault:"24h"`
}

// Load reads the configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		FritzCfg:  &FritzConfig{},
		MqttCfg:   &MqttConfig{},
		InfluxCfg: &InfluxConfig{},
		APICfg:    &APIConfig{},
	}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
