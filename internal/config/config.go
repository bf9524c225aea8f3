package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	NewRelic      NewRelicConfig
	Engine        EngineConfig
	Collaborators CollaboratorConfig
	Simulator     SimulatorConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration, including the connection
// pool limits.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis configuration. PoolSize zero keeps the client
// library's default.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// EngineConfig holds ride engine options.
type EngineConfig struct {
	// IdempotencyBackend selects where creation keys are reserved:
	// "redis" (fast, lost on flush) or "postgres" (durable).
	IdempotencyBackend string
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// CollaboratorConfig holds base URLs of downstream services. Empty URLs
// fall back to in-process stubs.
type CollaboratorConfig struct {
	GeoURL     string
	PricingURL string
	Timeout    time.Duration
}

// SimulatorConfig holds the pacing of the driver lifecycle simulator.
type SimulatorConfig struct {
	AssignDelayMin   time.Duration
	AssignDelayMax   time.Duration
	EtaRefreshDelay  time.Duration
	OnTheWayDelay    time.Duration
	LocationInterval time.Duration
	LocationUpdates  int
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "magadrive"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			PoolSize: getIntEnv("REDIS_POOL_SIZE", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "magadrive-ride-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Engine: EngineConfig{
			IdempotencyBackend: getEnv("IDEMPOTENCY_BACKEND", "redis"),
		},
		Collaborators: CollaboratorConfig{
			GeoURL:     getEnv("GEO_SERVICE_URL", ""),
			PricingURL: getEnv("PRICING_SERVICE_URL", ""),
			Timeout:    getDurationEnv("COLLABORATOR_TIMEOUT", 3*time.Second),
		},
		Simulator: SimulatorConfig{
			AssignDelayMin:   getDurationEnv("SIM_ASSIGN_DELAY_MIN", 2*time.Second),
			AssignDelayMax:   getDurationEnv("SIM_ASSIGN_DELAY_MAX", 5*time.Second),
			EtaRefreshDelay:  getDurationEnv("SIM_ETA_REFRESH_DELAY", 2*time.Second),
			OnTheWayDelay:    getDurationEnv("SIM_ON_THE_WAY_DELAY", 2*time.Second),
			LocationInterval: getDurationEnv("SIM_LOCATION_INTERVAL", 3*time.Second),
			LocationUpdates:  getIntEnv("SIM_LOCATION_UPDATES", 5),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
