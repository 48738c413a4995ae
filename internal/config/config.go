package config

import (
	"time"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DBDriver               string `env:"DB_DRIVER" envDefault:"mysql"` // mysql, postgres or sqlite
	DBUser                 string `env:"DB_USER"`
	DBPassword             string `env:"DB_PASSWORD"`
	DBHost                 string `env:"DB_HOST"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName                 string `env:"DB_NAME" envDefault:"instrument_market"`
	DBPort                 string `env:"DB_PORT" envDefault:"3306"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`
	DatabaseURL            string `env:"DATABASE_URL"`
	SQLitePath             string `env:"SQLITE_PATH" envDefault:"instrument_market.sqlite3"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"dev-secret-key-for-instrument-trading"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"720h"`

	FirebaseProjectID string `env:"FIREBASE_PROJECT_ID"`

	StorageBucket string `env:"STORAGE_BUCKET"`
	UploadDir     string `env:"UPLOAD_DIR" envDefault:"static/uploads"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"` // prefix for local upload URLs, empty for relative

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"order_events"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
