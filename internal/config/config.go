// Package config loads runtime settings from the environment (and an
// optional .env file) and validates them.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Source kinds.
const (
	SourceDir    = "dir"
	SourceHTTP   = "http"
	SourceS3     = "s3"
	SourceSQLite = "sqlite"
)

type Config struct {
	Port      string `validate:"required,numeric"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json console"`
	CacheSize int    `validate:"min=0"`

	Source       SourceConfig
	Capabilities CapabilityConfig
	Neo4j        Neo4jConfig
}

// SourceConfig selects where snapshots come from.
type SourceConfig struct {
	Kind         string `validate:"oneof=dir http s3 sqlite"`
	DataDir      string `validate:"required_if=Kind dir"`
	BaseURL      string `validate:"required_if=Kind http,omitempty,url"`
	Version      string `validate:"required_if=Kind http"`
	Timeout      time.Duration
	FetchRetries uint
	ArchivePath  string `validate:"required_if=Kind sqlite"`
	S3           S3Config
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// CapabilityConfig points at a supplier-capability table. With nothing set
// the table is derived from each snapshot's supplier nodes.
type CapabilityConfig struct {
	File   string
	Driver string `validate:"omitempty,oneof=sqlite pgx"`
	DSN    string `validate:"required_with=Driver"`
}

type Neo4jConfig struct {
	URI      string
	User     string
	Password string
	Database string
}

var validate = validator.New()

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv and validates it.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cacheSize, err := strconv.Atoi(env("SCGRAPH_CACHE_SIZE", "10"))
	if err != nil {
		return nil, fmt.Errorf("parsing SCGRAPH_CACHE_SIZE: %w", err)
	}
	retries, err := strconv.ParseUint(env("SCGRAPH_FETCH_RETRIES", "3"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parsing SCGRAPH_FETCH_RETRIES: %w", err)
	}
	timeout, err := time.ParseDuration(env("SCGRAPH_FETCH_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("parsing SCGRAPH_FETCH_TIMEOUT: %w", err)
	}
	useSSL, err := strconv.ParseBool(env("SCGRAPH_S3_USE_SSL", "false"))
	if err != nil {
		return nil, fmt.Errorf("parsing SCGRAPH_S3_USE_SSL: %w", err)
	}

	cfg := &Config{
		Port:      strings.TrimPrefix(env("PORT", "8080"), ":"),
		LogLevel:  env("LOG_LEVEL", "info"),
		LogFormat: env("LOG_FORMAT", "json"),
		CacheSize: cacheSize,
		Source: SourceConfig{
			Kind:         env("SCGRAPH_SOURCE", SourceDir),
			DataDir:      env("SCGRAPH_DATA_DIR", "data"),
			BaseURL:      env("SCGRAPH_BASE_URL", ""),
			Version:      env("SCGRAPH_VERSION", ""),
			Timeout:      timeout,
			FetchRetries: uint(retries),
			ArchivePath:  env("SCGRAPH_ARCHIVE_PATH", "scgraph.db"),
			S3: S3Config{
				Endpoint:  env("SCGRAPH_S3_ENDPOINT", ""),
				Region:    env("SCGRAPH_S3_REGION", "us-east-1"),
				AccessKey: env("SCGRAPH_S3_ACCESS_KEY", ""),
				SecretKey: env("SCGRAPH_S3_SECRET_KEY", ""),
				Bucket:    env("SCGRAPH_S3_BUCKET", ""),
				Prefix:    env("SCGRAPH_S3_PREFIX", ""),
				UseSSL:    useSSL,
			},
		},
		Capabilities: CapabilityConfig{
			File:   env("SCGRAPH_CAPABILITIES", ""),
			Driver: env("SCGRAPH_CAPABILITIES_DRIVER", ""),
			DSN:    env("SCGRAPH_CAPABILITIES_DSN", ""),
		},
		Neo4j: Neo4jConfig{
			URI:      env("NEO4J_URI", "bolt://localhost:7687"),
			User:     env("NEO4J_USER", "neo4j"),
			Password: env("NEO4J_PASSWORD", "password"),
			Database: env("NEO4J_DATABASE", "neo4j"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints, including the ones that depend on the
// chosen source kind.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if c.Source.Kind == SourceS3 && (c.Source.S3.Endpoint == "" || c.Source.S3.Bucket == "") {
		return fmt.Errorf("s3 source needs SCGRAPH_S3_ENDPOINT and SCGRAPH_S3_BUCKET")
	}
	return nil
}

// formatValidationError formats validation errors into readable messages
func formatValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := e.Namespace()
		switch e.Tag() {
		case "required", "required_if", "required_with":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", field, e.Tag()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
