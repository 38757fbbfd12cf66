package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the driver application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Ethereum   EthereumConfig   `yaml:"ethereum"`
	Solver     SolverConfig     `yaml:"solver"`
	Submission SubmissionConfig `yaml:"submission"`
	Driver     DriverConfig     `yaml:"driver"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Host                 string        `yaml:"host"`
	Port                 int           `yaml:"port"`
	ReadTimeout          time.Duration `yaml:"read_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	IdleTimeout          time.Duration `yaml:"idle_timeout"`
	CompetitionAuthToken string        `yaml:"competition_auth_token"`
}

// DatabaseConfig represents the PostgreSQL configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MigrationsPath  string        `yaml:"migrations_path"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the PostgreSQL connection URL used by migrations
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.Username), url.QueryEscape(c.Password),
		c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// EthereumConfig represents the chain connection configuration
type EthereumConfig struct {
	RPCURL             string        `yaml:"rpc_url"`
	ChainID            uint64        `yaml:"chain_id"`
	SettlementContract string        `yaml:"settlement_contract"`
	BlockPollInterval  time.Duration `yaml:"block_poll_interval"`
}

// SolverConfig represents the external solver the driver runs on behalf of
type SolverConfig struct {
	Name     string        `yaml:"name"`
	Endpoint string        `yaml:"endpoint"`
	Account  string        `yaml:"account"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SubmissionConfig represents the settlement submission strategy configuration
type SubmissionConfig struct {
	MaxDuration     time.Duration `yaml:"max_duration"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	GasPriceBump    float64       `yaml:"gas_price_bump"`
	BumpInterval    time.Duration `yaml:"bump_interval"`
	MaxGasPriceGwei float64       `yaml:"max_gas_price_gwei"`
	PrivateKey      string        `yaml:"private_key"`
}

// DriverConfig represents solve-loop policies
type DriverConfig struct {
	SolveDeadline time.Duration `yaml:"solve_deadline"`
}

// RedisConfig represents the Redis cache configuration
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// KafkaConfig represents the settlement event publisher configuration
type KafkaConfig struct {
	Brokers []string      `yaml:"brokers"`
	Topic   string        `yaml:"topic"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"`
	MaxAge     int    `yaml:"max_age"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// LoadConfig loads the configuration from a YAML file with environment
// variable overrides for secrets
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Username:        "postgres",
			Database:        "driver",
			SSLMode:         "disable",
			MaxOpenConns:    16,
			MaxIdleConns:    4,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Ethereum: EthereumConfig{
			RPCURL:            "http://localhost:8545",
			ChainID:           1,
			BlockPollInterval: time.Second,
		},
		Solver: SolverConfig{
			Name:    "baseline",
			Timeout: 20 * time.Second,
		},
		Submission: SubmissionConfig{
			MaxDuration:     2 * time.Minute,
			PollInterval:    time.Second,
			GasPriceBump:    1.125,
			BumpInterval:    15 * time.Second,
			MaxGasPriceGwei: 800,
		},
		Driver: DriverConfig{
			SolveDeadline: 25 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			CacheTTL: time.Hour,
		},
		Kafka: KafkaConfig{
			Topic:   "settlement-events",
			Timeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DATABASE_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("ETHEREUM_RPC_URL"); v != "" {
		cfg.Ethereum.RPCURL = v
	}
	if v := os.Getenv("ETHEREUM_CHAIN_ID"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Ethereum.ChainID = id
		}
	}
	if v := os.Getenv("SUBMISSION_PRIVATE_KEY"); v != "" {
		cfg.Submission.PrivateKey = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("COMPETITION_AUTH_TOKEN"); v != "" {
		cfg.Server.CompetitionAuthToken = v
	}
}

// Validate checks the configuration for values the driver cannot run without
func (c *Config) Validate() error {
	if c.Ethereum.SettlementContract == "" {
		return fmt.Errorf("ethereum.settlement_contract is required")
	}
	if c.Solver.Name == "" {
		return fmt.Errorf("solver.name is required")
	}
	if c.Driver.SolveDeadline <= 0 {
		return fmt.Errorf("driver.solve_deadline must be positive")
	}
	return nil
}
