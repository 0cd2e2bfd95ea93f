package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string        `env:"PORT" envDefault:"8080"`
	JWTSecret   string        `env:"JWT_SECRET" envDefault:"supersecretkey"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	AdminAPIKey string        `env:"ADMIN_API_KEY"`
	CSRFAuthKey string        `env:"CSRF_AUTH_KEY"`
	CORSOrigins []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`

	RateLimit       int           `env:"RATE_LIMIT" envDefault:"120"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	ResponseTTL     time.Duration `env:"RESPONSE_CACHE_TTL" envDefault:"30s"`

	DB    DB    `envPrefix:"DB_"`
	Redis Redis `envPrefix:"REDIS_"`
	Log   Log   `envPrefix:"LOG_"`
	AI    AI    `envPrefix:"GENAI_"`
}

type DB struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD" envDefault:"1234"`
	Name     string `env:"NAME" envDefault:"kindly_db"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
}

// DSN renders the postgres connection string.
func (d DB) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type Redis struct {
	Enabled  bool   `env:"ENABLED" envDefault:"true"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"6379"`
	Password string `env:"PASSWORD"`
}

func (r Redis) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type Log struct {
	File   string `env:"FILE" envDefault:"./logs/app.log"`
	Level  string `env:"LEVEL" envDefault:"info"`
	Stdout bool   `env:"STDOUT" envDefault:"false"`
}

type AI struct {
	APIKey string `env:"API_KEY"`
	URL    string `env:"URL"`
	Model  string `env:"MODEL" envDefault:"gemini-2.5-flash"`
}

// Configured reports whether the classifier endpoint is usable.
func (a AI) Configured() bool {
	return a.APIKey != "" && a.URL != ""
}

// Load reads an optional .env file and parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
