package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	LineWorks LineWorksConfig `mapstructure:"lineworks"`
	Artifact  ArtifactConfig  `mapstructure:"artifact"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// LineWorksConfig holds WORKS bot credentials. The credential fields are
// environment-only and never written to the config file.
type LineWorksConfig struct {
	ClientID       string `mapstructure:"client_id"`
	ClientSecret   string `mapstructure:"client_secret"`
	ServiceAccount string `mapstructure:"service_account"`
	PrivateKey     string `mapstructure:"private_key"`
	BotID          string `mapstructure:"bot_id"`
	ChannelID      string `mapstructure:"channel_id"`
}

// Enabled reports whether notification credentials are present. The
// workflow runs without them; sends are skipped and reported as warnings.
func (c LineWorksConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" &&
		c.ServiceAccount != "" && c.PrivateKey != "" && c.BotID != ""
}

// ArtifactConfig holds artifact generation configuration
type ArtifactConfig struct {
	DefaultDir string `mapstructure:"default_dir"`
	FontPath   string `mapstructure:"font_path"`
}

// AuthConfig holds session token configuration
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("database.path", "data/incidents.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	viper.SetDefault("artifact.default_dir", "artifacts")

	viper.SetDefault("auth.token_ttl", 12*time.Hour)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration. The WORKS
// variable names match what the bot console issues.
func bindEnvVars() {
	viper.BindEnv("lineworks.client_id", "LW_API_20_CLIENT_ID")
	viper.BindEnv("lineworks.client_secret", "LW_API_20_CLIENT_SECRET")
	viper.BindEnv("lineworks.service_account", "LW_API_20_SERVICE_ACCOUNT_ID")
	viper.BindEnv("lineworks.private_key", "LW_API_20_PRIVATEKEY")
	viper.BindEnv("lineworks.bot_id", "LW_API_20_BOT_ID")
	viper.BindEnv("lineworks.channel_id", "LW_API_20_CHANNEL_ID")
	viper.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Artifact.DefaultDir == "" {
		return fmt.Errorf("artifact.default_dir is required")
	}
	return nil
}
