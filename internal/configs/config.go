package configs

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StorageType selects the persistence backend.
const (
	StorageCSV      = "csv"
	StorageElastic  = "elasticsearch"
	StoragePostgres = "postgres"
)

type AirbnbConfig struct {
	APIKey   string
	Currency string
	Proxy    string
	Throttle bool
}

type ElasticConfig struct {
	Hosts    []string
	Username string
	Password string
	Index    string
}

type PostgresConfig struct {
	DatabaseURL string
}

type RabbitMQConfig struct {
	Enabled bool
	URL     string
}

type FluentBitConfig struct {
	Enabled bool
	Host    string
	Port    int
	Level   string
}

type StdoutLogConfig struct {
	Level string
}

type ScraperConfig struct {
	// Workers bounds concurrent per-listing fetches; 1 keeps the original
	// sequential politeness.
	Workers int
	// StalenessWindow is how long a record stays fresh before a calendar
	// refresh re-scrapes it.
	StalenessWindow time.Duration
	// Booked runs longer than StripNights are treated as scraping artifacts
	// and removed; runs longer than WarnNights only get a warning. Both are
	// tunable, the thresholds are empirical.
	StripNights int
	WarnNights  int
}

type RESTConfig struct {
	Port string
}

// AppConfig is the full application configuration, read from the environment.
type AppConfig struct {
	AppName      string
	StorageType  string
	Airbnb       AirbnbConfig
	Elastic      ElasticConfig
	Postgres     PostgresConfig
	RabbitMQ     RabbitMQConfig
	FluentBit    FluentBitConfig
	StdoutLogger StdoutLogConfig
	Scraper      ScraperConfig
	Rest         RESTConfig
}

// LoadConfig reads configuration from the environment, optionally seeded from
// a .env file. A missing .env file is not an error.
func LoadConfig(envPath ...string) (*AppConfig, error) {
	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath[0])
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		log.Printf("Info: could not load .env file: %v. Using environment variables.", err)
	}

	cfg := &AppConfig{}

	cfg.AppName = getEnvAsString("APP_NAME", "stl-scraper")
	cfg.StorageType = getEnvAsString("STORAGE_TYPE", StorageCSV)
	switch cfg.StorageType {
	case StorageCSV, StorageElastic, StoragePostgres:
	default:
		return nil, fmt.Errorf("unknown STORAGE_TYPE %q", cfg.StorageType)
	}

	cfg.Airbnb.APIKey = os.Getenv("AIRBNB_API_KEY")
	if cfg.Airbnb.APIKey == "" {
		return nil, fmt.Errorf("AIRBNB_API_KEY environment variable is required")
	}
	cfg.Airbnb.Currency = getEnvAsString("SEARCH_CURRENCY", "USD")
	cfg.Airbnb.Proxy = os.Getenv("PROXY")
	cfg.Airbnb.Throttle = getEnvAsBool("THROTTLE", true)

	if cfg.StorageType == StorageElastic {
		hosts := os.Getenv("ELASTIC_HOSTS")
		if hosts == "" {
			return nil, fmt.Errorf("ELASTIC_HOSTS environment variable is required for elasticsearch storage")
		}
		cfg.Elastic.Hosts = splitAndTrim(hosts)
		cfg.Elastic.Username = os.Getenv("ELASTIC_USERNAME")
		cfg.Elastic.Password = os.Getenv("ELASTIC_PASSWORD")
		cfg.Elastic.Index = getEnvAsString("ELASTIC_INDEX", "stl")
	}

	if cfg.StorageType == StoragePostgres {
		cfg.Postgres.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.Postgres.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required for postgres storage")
		}
	}

	cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")
	cfg.RabbitMQ.Enabled = cfg.RabbitMQ.URL != ""

	cfg.FluentBit.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}
		cfg.FluentBit.Port = getEnvAsInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = getEnvAsString("FLUENTBIT_LOG_LEVEL", "info")
	}

	cfg.StdoutLogger.Level = getEnvAsString("STDOUT_LOG_LEVEL", "info")

	cfg.Scraper.Workers = getEnvAsInt("WORKERS", 1)
	cfg.Scraper.StalenessWindow = getEnvAsDuration("STALENESS_WINDOW", 24*time.Hour)
	cfg.Scraper.StripNights = getEnvAsInt("BOOKING_STRIP_NIGHTS", 62)
	cfg.Scraper.WarnNights = getEnvAsInt("BOOKING_WARN_NIGHTS", 50)

	cfg.Rest.Port = getEnvAsString("PORT", "8080")

	return cfg, nil
}

func splitAndTrim(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: environment variable %s (value: %s) could not be parsed as int: %v. Using default: %d", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueBool, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: environment variable %s (value: %s) could not be parsed as bool: %v. Using default: %t", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueBool
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueDur, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: environment variable %s (value: %s) could not be parsed as duration: %v. Using default: %s", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueDur
}
