package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DBPath string

	// RootRedirect is where "/" is sent. Empty disables the rule.
	RootRedirect string

	// Client address resolution.
	TrustedProxyCIDRs []string
	TrustHeaders      bool

	// Kafka relay configuration.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaTopic         string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	trustHeaders, err := parseBool("CLIENT_IP_TRUST_HEADERS", true)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DBPath:       sharedcfg.EnvOrDefault("DB_PATH", "snowinfo.db"),
		RootRedirect: parseRootRedirect(),

		TrustedProxyCIDRs: splitList(os.Getenv("TRUSTED_PROXY_CIDRS")),
		TrustHeaders:      trustHeaders,

		KafkaEnabled:       kafkaEnabled,
		KafkaBrokers:       brokers,
		KafkaTopic:         sharedcfg.EnvOrDefault("KAFKA_TOPIC", "snow-reports"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if cfg.DBPath == "" {
		return nil, errors.New("DB_PATH is required")
	}
	if err := validateRootRedirect(cfg.RootRedirect); err != nil {
		return nil, err
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}

	return cfg, nil
}

func parseRootRedirect() string {
	v, ok := os.LookupEnv("ROOT_REDIRECT")
	if !ok {
		return "/api/reports"
	}
	if v == "off" {
		return ""
	}
	return strings.TrimSpace(v)
}

// validateRootRedirect accepts empty or a same-host absolute path other
// than "/" itself. "//host" and "/\host" are read by browsers as another
// host and are rejected.
func validateRootRedirect(target string) error {
	if target == "" {
		return nil
	}
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fmt.Errorf("ROOT_REDIRECT must be an absolute path on this host, got %q", target)
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid ROOT_REDIRECT %q: %w", target, err)
	}
	if u.Host != "" || u.Scheme != "" {
		return fmt.Errorf("ROOT_REDIRECT must be an absolute path on this host, got %q", target)
	}
	if u.Path == "/" {
		return errors.New("ROOT_REDIRECT cannot redirect / to itself")
	}
	return nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, s)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
