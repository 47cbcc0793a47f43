package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DataPath        string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KafkaBrokers   []string
	KafkaRunsTopic string
	KafkaEnabled   bool

	// S3-compatible artifact storage. Upload is skipped unless both
	// endpoint and bucket are set.
	ArtifactEndpoint  string
	ArtifactBucket    string
	ArtifactAccessKey string
	ArtifactSecretKey string
	ArtifactUseSSL    bool

	SolverPath    string
	SolverWrapper string
	SolverTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	solverTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("SOLVER_TIMEOUT", "0s"))
	if err != nil || solverTimeout < 0 {
		return nil, errors.New("invalid SOLVER_TIMEOUT")
	}

	kafkaEnabled, err := parseBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}
	useSSL, err := parseBool("ARTIFACT_USE_SSL", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataPath:        sharedcfg.EnvOrDefault("DATA_PATH", "/data"),
		HTTPAddr:        envOrEmpty("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaRunsTopic: sharedcfg.EnvOrDefault("KAFKA_RUNS_TOPIC", "flood-model-runs"),
		KafkaEnabled:   kafkaEnabled,

		ArtifactEndpoint:  sharedcfg.EnvOrDefault("ARTIFACT_ENDPOINT", ""),
		ArtifactBucket:    sharedcfg.EnvOrDefault("ARTIFACT_BUCKET", ""),
		ArtifactAccessKey: sharedcfg.EnvOrDefault("ARTIFACT_ACCESS_KEY", ""),
		ArtifactSecretKey: sharedcfg.EnvOrDefault("ARTIFACT_SECRET_KEY", ""),
		ArtifactUseSSL:    useSSL,

		SolverPath:    sharedcfg.EnvOrDefault("SOLVER_PATH", "citycat.exe"),
		SolverWrapper: envOrEmpty("SOLVER_WRAPPER", defaultWrapper()),
		SolverTimeout: solverTimeout,
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaRunsTopic == "" {
			return nil, errors.New("KAFKA_RUNS_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	if (cfg.ArtifactEndpoint == "") != (cfg.ArtifactBucket == "") {
		return nil, errors.New("ARTIFACT_ENDPOINT and ARTIFACT_BUCKET must be set together")
	}

	return cfg, nil
}

// ArtifactsEnabled reports whether derived artifacts are uploaded.
func (c *Config) ArtifactsEnabled() bool {
	return c.ArtifactEndpoint != "" && c.ArtifactBucket != ""
}

// InputsPath is the root of the input tree.
func (c *Config) InputsPath() string { return filepath.Join(c.DataPath, "inputs") }

// OutputsPath is the root of the output tree.
func (c *Config) OutputsPath() string { return filepath.Join(c.DataPath, "outputs") }

// RunPath is the solver working directory.
func (c *Config) RunPath() string { return filepath.Join(c.OutputsPath(), "run") }

// ParametersPath holds the parameter files layered over the environment.
func (c *Config) ParametersPath() string { return filepath.Join(c.InputsPath(), "parameters") }

// envOrEmpty is like EnvOrDefault but lets an explicitly empty variable
// disable the setting.
func envOrEmpty(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func parseBool(key string, fallback bool) (bool, error) {
	s := sharedcfg.EnvOrDefault(key, "")
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, errors.New("invalid " + key)
	}
	return b, nil
}

func defaultWrapper() string {
	if runtime.GOOS == "windows" {
		return ""
	}
	return "wine64"
}
