package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Pedro-99/taqa-backend/internal/db"
	"github.com/Pedro-99/taqa-backend/internal/oracle"
	"github.com/Pedro-99/taqa-backend/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Database   db.Config        `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Oracle     oracle.Config    `mapstructure:"oracle"`
	Migrations MigrationsConfig `mapstructure:"migrations"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Logger converts the section into a logger configuration writing to stdout.
func (c LogConfig) Logger() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.LogLevel(c.Level)
	cfg.JSON = c.JSON
	return cfg
}

type MigrationsConfig struct {
	AutoRun bool `mapstructure:"auto_run"`
}

// envBindings maps config keys onto the environment variable names used by
// existing deployments.
var envBindings = map[string][]string{
	"database.host":          {"DB_HOST"},
	"database.port":          {"DB_PORT"},
	"database.user":          {"DB_USER"},
	"database.password":      {"DB_PASSWORD"},
	"database.name":          {"DB_NAME"},
	"database.sslmode":       {"DB_SSLMODE"},
	"database.max_conns":     {"DB_MAX_CONNS"},
	"server.addr":            {"SERVER_ADDR", "ADDR"},
	"server.allowed_origins": {"ALLOWED_ORIGINS"},
	"log.level":              {"LOG_LEVEL"},
	"log.json":               {"LOG_JSON"},
	"oracle.simulate":        {"ORACLE_SIMULATE"},
	"oracle.connect_string":  {"ORACLE_CONNECT_STRING"},
	"oracle.user":            {"ORACLE_USER"},
	"oracle.password":        {"ORACLE_PASSWORD"},
	"oracle.sync_schedule":   {"ORACLE_SYNC_SCHEDULE"},
	"migrations.auto_run":    {"MIGRATIONS_AUTO_RUN"},
}

func Default() Config {
	return Config{
		Database: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
		},
		Log:        LogConfig{Level: string(logger.InfoLevel)},
		Oracle:     oracle.DefaultConfig(),
		Migrations: MigrationsConfig{AutoRun: true},
	}
}

// Load reads config.yaml from configPath (optional), applies a .env file from
// the working directory if present and then environment overrides.
func Load(configPath string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v, Default())

	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return Config{}, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// LoadDBConfig returns only the database section.
func LoadDBConfig(configPath string) (db.Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return db.Config{}, err
	}
	return cfg.Database, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.user", d.Database.User)
	v.SetDefault("database.password", d.Database.Password)
	v.SetDefault("database.name", d.Database.DBName)
	v.SetDefault("database.sslmode", d.Database.SSLMode)
	v.SetDefault("database.max_conns", d.Database.MaxConns)
	v.SetDefault("database.connect_timeout", d.Database.ConnectTimeout)
	v.SetDefault("database.idle_timeout", d.Database.MaxConnIdleTime)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", d.Log.JSON)

	v.SetDefault("oracle.simulate", d.Oracle.Simulate)
	v.SetDefault("oracle.connect_string", d.Oracle.ConnectString)
	v.SetDefault("oracle.user", d.Oracle.User)
	v.SetDefault("oracle.password", d.Oracle.Password)
	v.SetDefault("oracle.sync_schedule", d.Oracle.SyncSchedule)

	v.SetDefault("migrations.auto_run", d.Migrations.AutoRun)
}
