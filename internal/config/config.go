/*-------------------------------------------------------------------------
 *
 * config.go
 *    Configuration management for NeuronDynamic
 *
 * Configuration is layered: built-in defaults, then an optional YAML
 * file, then environment variables (PG_* for the database section and
 * NEURONDYNAMIC_* for everything else), then command-line flags applied
 * by the CLI.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/config/config.go
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

/* Config is the complete NeuronDynamic configuration */
type Config struct {
	Database   DatabaseConfig   `yaml:"database" json:"database"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
	Generation GenerationConfig `yaml:"generation" json:"generation"`
	Query      QueryConfig      `yaml:"query" json:"query"`
}

/* DatabaseConfig holds PostgreSQL connection and pool settings */
type DatabaseConfig struct {
	DSN      string `yaml:"dsn" json:"dsn" env:"DSN"`
	Host     string `yaml:"host" json:"host" env:"HOST"`
	Port     int    `yaml:"port" json:"port" env:"PORT"`
	User     string `yaml:"user" json:"user" env:"USER"`
	Password string `yaml:"password" json:"-" env:"PASSWORD"`
	Database string `yaml:"database" json:"database" env:"DATABASE"`
	SSLMode  string `yaml:"sslmode" json:"sslmode" env:"SSLMODE"`

	MinConns         int           `yaml:"min_conns" json:"min_conns" env:"MIN_CONNS"`
	MaxConns         int           `yaml:"max_conns" json:"max_conns" env:"MAX_CONNS"`
	AcquireTimeout   time.Duration `yaml:"acquire_timeout" json:"acquire_timeout" env:"ACQUIRE_TIMEOUT"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime" json:"max_conn_lifetime" env:"MAX_CONN_LIFETIME"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time" json:"max_conn_idle_time" env:"MAX_CONN_IDLE_TIME"`
	StatementTimeout time.Duration `yaml:"statement_timeout" json:"statement_timeout" env:"STATEMENT_TIMEOUT"`
	ConnectRetries   int           `yaml:"connect_retries" json:"connect_retries" env:"CONNECT_RETRIES"`
	RetryDelay       time.Duration `yaml:"retry_delay" json:"retry_delay" env:"RETRY_DELAY"`
}

/* ServerConfig holds MCP server and transport settings */
type ServerConfig struct {
	Name           string `yaml:"name" json:"name" env:"NAME"`
	Transport      string `yaml:"transport" json:"transport" env:"TRANSPORT"`
	Host           string `yaml:"host" json:"host" env:"HOST"`
	Port           int    `yaml:"port" json:"port" env:"PORT"`
	JWTSecret      string `yaml:"jwt_secret" json:"-" env:"JWT_SECRET"`
	MaxRequestSize int64  `yaml:"max_request_size" json:"max_request_size" env:"MAX_REQUEST_SIZE"`
}

/* LoggingConfig holds logging settings */
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"LEVEL"`
	Format string `yaml:"format" json:"format" env:"FORMAT"`
	Output string `yaml:"output" json:"output" env:"OUTPUT"`
}

/* IgnoreConfig lists columns left out of each operation kind */
type IgnoreConfig struct {
	Insert       []string `yaml:"insert" json:"insert" env:"INSERT" envSeparator:","`
	Select       []string `yaml:"select" json:"select" env:"SELECT" envSeparator:","`
	Update       []string `yaml:"update" json:"update" env:"UPDATE" envSeparator:","`
	Delete       []string `yaml:"delete" json:"delete" env:"DELETE" envSeparator:","`
	SelectJoined []string `yaml:"select_joined" json:"select_joined" env:"SELECT_JOINED" envSeparator:","`
}

/* GenerationConfig controls which operations are generated and where artifacts live */
type GenerationConfig struct {
	ArtifactsDir    string       `yaml:"artifacts_dir" json:"artifacts_dir" env:"ARTIFACTS_DIR"`
	Overwrite       bool         `yaml:"overwrite" json:"overwrite" env:"OVERWRITE"`
	ReadOnly        bool         `yaml:"read_only" json:"read_only" env:"READ_ONLY"`
	Schemas         []string     `yaml:"schemas" json:"schemas" env:"SCHEMAS" envSeparator:","`
	DDLFile         string       `yaml:"ddl_file" json:"ddl_file" env:"DDL_FILE"`
	ReturningColumn string       `yaml:"returning_column" json:"returning_column" env:"RETURNING_COLUMN"`
	Ignore          IgnoreConfig `yaml:"ignore" json:"ignore" envPrefix:"IGNORE_"`
	JoinGroups      [][]string   `yaml:"join_groups" json:"join_groups"`
}

/* QueryConfig controls invocation-time query assembly */
type QueryConfig struct {
	KnnOrder string `yaml:"knn_order" json:"knn_order" env:"KNN_ORDER"`
}

/* Default returns the built-in configuration */
func Default() *Config {
	artifacts := ""
	if home, err := os.UserHomeDir(); err == nil {
		artifacts = filepath.Join(home, ".neurondb-dynamic", "artifacts")
	}
	return &Config{
		Database: DatabaseConfig{
			Host:             "localhost",
			Port:             5432,
			User:             "postgres",
			Database:         "postgres",
			SSLMode:          "prefer",
			MinConns:         1,
			MaxConns:         10,
			AcquireTimeout:   10 * time.Second,
			MaxConnLifetime:  300 * time.Second,
			MaxConnIdleTime:  5 * time.Minute,
			StatementTimeout: 60 * time.Second,
			ConnectRetries:   3,
			RetryDelay:       2 * time.Second,
		},
		Server: ServerConfig{
			Name:           "neurondb-dynamic",
			Transport:      "stdio",
			Host:           "127.0.0.1",
			Port:           8000,
			MaxRequestSize: 10 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Generation: GenerationConfig{
			ArtifactsDir:    artifacts,
			ReturningColumn: "id",
			Ignore: IgnoreConfig{
				Insert: []string{"id", "date_created", "date_updated"},
			},
		},
		Query: QueryConfig{
			KnnOrder: "auto",
		},
	}
}

/* Load builds the configuration from defaults, an optional YAML file and the environment */
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file '%s': %w (expected YAML)", path, err)
	}
	return nil
}

/* ApplyEnv overrides fields from PG_* and NEURONDYNAMIC_* environment variables */
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(&c.Database, env.Options{Prefix: "PG_"}); err != nil {
		return fmt.Errorf("failed to parse PG_* environment variables: %w", err)
	}
	rest := struct {
		Server     *ServerConfig     `envPrefix:"SERVER_"`
		Logging    *LoggingConfig    `envPrefix:"LOG_"`
		Generation *GenerationConfig `envPrefix:"GEN_"`
		Query      *QueryConfig      `envPrefix:"QUERY_"`
	}{&c.Server, &c.Logging, &c.Generation, &c.Query}
	if err := env.ParseWithOptions(&rest, env.Options{Prefix: "NEURONDYNAMIC_"}); err != nil {
		return fmt.Errorf("failed to parse NEURONDYNAMIC_* environment variables: %w", err)
	}
	c.Generation.ArtifactsDir = expandHome(c.Generation.ArtifactsDir)
	return nil
}

/* Validate checks ranges and enumerated values */
func (c *Config) Validate() error {
	d := c.Database
	if d.DSN == "" {
		if d.Host == "" {
			return fmt.Errorf("database host is required when no DSN is given")
		}
		if d.Port <= 0 || d.Port > 65535 {
			return fmt.Errorf("database port %d is out of range", d.Port)
		}
	}
	if d.MinConns < 0 {
		return fmt.Errorf("database min_conns must not be negative, got %d", d.MinConns)
	}
	if d.MaxConns < 1 {
		return fmt.Errorf("database max_conns must be at least 1, got %d", d.MaxConns)
	}
	if d.MinConns > d.MaxConns {
		return fmt.Errorf("database min_conns (%d) exceeds max_conns (%d)", d.MinConns, d.MaxConns)
	}
	if d.AcquireTimeout <= 0 {
		return fmt.Errorf("database acquire_timeout must be positive, got %s", d.AcquireTimeout)
	}

	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("unsupported transport '%s' (expected stdio or http)", c.Server.Transport)
	}
	if c.Server.Transport == "http" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server port %d is out of range", c.Server.Port)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level '%s'", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported log format '%s' (expected json or text)", c.Logging.Format)
	}

	switch c.Query.KnnOrder {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("unsupported knn_order '%s' (expected auto, always or never)", c.Query.KnnOrder)
	}

	for i, group := range c.Generation.JoinGroups {
		if len(group) < 2 {
			return fmt.Errorf("join group %d must name at least two tables, got %v", i, group)
		}
	}
	return nil
}

/* ConnString renders the libpq connection string for the database section */
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	parts := []string{
		fmt.Sprintf("host=%s", d.Host),
		fmt.Sprintf("port=%d", d.Port),
		fmt.Sprintf("user=%s", d.User),
		fmt.Sprintf("dbname=%s", d.Database),
	}
	if d.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", quoteConnValue(d.Password)))
	}
	if d.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", d.SSLMode))
	}
	return strings.Join(parts, " ")
}

/* For returns the ignore list configured for an operation verb */
func (i IgnoreConfig) For(verb string) []string {
	switch verb {
	case "insert":
		return i.Insert
	case "select":
		return i.Select
	case "update":
		return i.Update
	case "delete":
		return i.Delete
	case "select_joined":
		return i.SelectJoined
	}
	return nil
}

func quoteConnValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
