package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppName                       string `mapstructure:"APP_NAME"`
	Port                          int    `mapstructure:"PORT"`
	LogLevel                      string `mapstructure:"LOG_LEVEL"`
	PrettyLogs                    bool   `mapstructure:"PRETTY_LOGS"`
	HttpServerWriteTimeoutSeconds int    `mapstructure:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS"`
	HttpServerReadTimeoutSeconds  int    `mapstructure:"HTTP_SERVER_READ_TIMEOUT_SECONDS"`
	HttpServerIdleTimeoutSeconds  int    `mapstructure:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS"`

	// Database settings
	DatabaseDriver              string        `mapstructure:"DB_DRIVER"`
	DatabaseHost                string        `mapstructure:"DB_HOST"`
	DatabasePort                string        `mapstructure:"DB_PORT"`
	DatabaseUserName            string        `mapstructure:"DB_USER_NAME"`
	DatabasePassword            string        `mapstructure:"DB_PASSWORD"`
	DatabaseName                string        `mapstructure:"DB_NAME"`
	DatabaseSSLMode             string        `mapstructure:"DB_SSL_MODE"`
	DatabaseMaxOpenConns        int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DatabaseMaxIdleConns        int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DatabaseConnMaxLifetime     time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`
	DatabaseMigrationFolderPath string        `mapstructure:"DB_MIGRATION_FOLDER_PATH"`
	DatabaseMigrationVersion    uint          `mapstructure:"DB_MIGRATION_VERSION"`

	// Redis settings
	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPort     int    `mapstructure:"REDIS_PORT"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Kafka brokers (comma-separated) and topics
	KafkaBrokers           string `mapstructure:"KAFKA_BROKERS"`
	KafkaNotificationTopic string `mapstructure:"KAFKA_NOTIFICATION_TOPIC"`
	KafkaFunnelTopic       string `mapstructure:"KAFKA_FUNNEL_TOPIC"`

	// Scheduler settings
	SchedulerEnabled          bool          `mapstructure:"SCHEDULER_ENABLED"`
	MonitoringSweepInterval   time.Duration `mapstructure:"MONITORING_SWEEP_INTERVAL"`
	RenewalSweepInterval      time.Duration `mapstructure:"RENEWAL_SWEEP_INTERVAL"`
	StalenessSweepInterval    time.Duration `mapstructure:"STALENESS_SWEEP_INTERVAL"`
	SweepLockTTL              time.Duration `mapstructure:"SWEEP_LOCK_TTL"`

	// Temporal thresholds, in days
	DefaultMonitoringDays   int `mapstructure:"DEFAULT_MONITORING_DAYS"`
	ProspectFollowupDays    int `mapstructure:"PROSPECT_FOLLOWUP_DAYS"`
	ProspectStaleDays       int `mapstructure:"PROSPECT_STALE_DAYS"`
	ProposalStaleDays       int `mapstructure:"PROPOSAL_STALE_DAYS"`
	RenewalTermYears        int `mapstructure:"RENEWAL_TERM_YEARS"`

	// Tracing settings
	OTLPEnabled  bool   `mapstructure:"OTLP_ENABLED"`
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTLP_INSECURE"`
}

// Load reads configuration from the environment, with a .env file as
// an optional local override source.
func Load() (*Config, error) {
	_ = godotenv.Load() // absent .env is fine outside local dev

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	// AutomaticEnv alone does not surface env vars through Unmarshal,
	// so bind every known key explicitly.
	for key := range defaults {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var defaults = map[string]any{
	"APP_NAME":                          "laurel-api",
	"PORT":                              3000,
	"LOG_LEVEL":                         "info",
	"PRETTY_LOGS":                       false,
	"HTTP_SERVER_WRITE_TIMEOUT_SECONDS": 10,
	"HTTP_SERVER_READ_TIMEOUT_SECONDS":  10,
	"HTTP_SERVER_IDLE_TIMEOUT_SECONDS":  10,

	"DB_DRIVER":                "postgres",
	"DB_HOST":                  "localhost",
	"DB_PORT":                  "5432",
	"DB_USER_NAME":             "",
	"DB_PASSWORD":              "",
	"DB_NAME":                  "laurel",
	"DB_SSL_MODE":              "disable",
	"DB_MAX_OPEN_CONNS":        25,
	"DB_MAX_IDLE_CONNS":        10,
	"DB_CONN_MAX_LIFETIME":     "10s",
	"DB_MIGRATION_FOLDER_PATH": "db/pg",
	"DB_MIGRATION_VERSION":     0,

	"REDIS_HOST":     "localhost",
	"REDIS_PORT":     6379,
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,

	"KAFKA_BROKERS":            "localhost:9092",
	"KAFKA_NOTIFICATION_TOPIC": "laurel-notifications",
	"KAFKA_FUNNEL_TOPIC":       "laurel-funnel-events",

	"SCHEDULER_ENABLED":         true,
	"MONITORING_SWEEP_INTERVAL": "1h",
	"RENEWAL_SWEEP_INTERVAL":    "24h",
	"STALENESS_SWEEP_INTERVAL":  "24h",
	"SWEEP_LOCK_TTL":            "10m",

	"DEFAULT_MONITORING_DAYS": 30,
	"PROSPECT_FOLLOWUP_DAYS":  14,
	"PROSPECT_STALE_DAYS":     30,
	"PROPOSAL_STALE_DAYS":     30,
	"RENEWAL_TERM_YEARS":      3,

	"OTLP_ENABLED":  false,
	"OTLP_ENDPOINT": "localhost:4317",
	"OTLP_INSECURE": true,
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// DatabaseURL assembles the Postgres connection string.
func (c *Config) DatabaseURL() string {
	return "postgres://" + c.DatabaseUserName + ":" + c.DatabasePassword +
		"@" + c.DatabaseHost + ":" + c.DatabasePort + "/" + c.DatabaseName +
		"?sslmode=" + c.DatabaseSSLMode
}

// KafkaBrokerList splits the comma-separated broker string.
func (c *Config) KafkaBrokerList() []string {
	parts := strings.Split(c.KafkaBrokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}
