package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	AdminAPIKey string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ArtifactRoot         string
	KeyDir               string
	TrustRootDir         string
	TrustIntermediateDir string
	TrustReloadMinutes   int

	TSAURL          string
	TSATimeoutSecs  int
	OCSPTimeoutSecs int

	PolicyBundlePath string

	ValidityCacheTTLSecs  int
	ExpirySweepMinutes    int
	ExpiryWarnDaysCSV     string
	RequestSweepMinutes   int
	BatchWorkers          int
	SignatureResultTTLMin int

	WebhookURL         string
	WebhookTimeoutSecs int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:              addr,
		PostgresDSN:           os.Getenv("POSTGRES_DSN"),
		LogLevel:              envDefault("LOG_LEVEL", "info"),
		AdminAPIKey:           os.Getenv("ADMIN_API_KEY"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               envIntDefault("REDIS_DB", 0),
		ArtifactRoot:          envDefault("ARTIFACT_ROOT", "/var/lib/firmaflow/artifacts"),
		KeyDir:                os.Getenv("KEY_DIR"),
		TrustRootDir:          os.Getenv("TRUST_ROOT_DIR"),
		TrustIntermediateDir:  os.Getenv("TRUST_INTERMEDIATE_DIR"),
		TrustReloadMinutes:    envIntDefault("TRUST_RELOAD_MINUTES", 60),
		TSAURL:                os.Getenv("TSA_URL"),
		TSATimeoutSecs:        envIntDefault("TSA_TIMEOUT_SECONDS", 10),
		OCSPTimeoutSecs:       envIntDefault("OCSP_TIMEOUT_SECONDS", 10),
		PolicyBundlePath:      os.Getenv("POLICY_BUNDLE_PATH"),
		ValidityCacheTTLSecs:  envIntDefault("VALIDITY_CACHE_TTL_SECONDS", 300),
		ExpirySweepMinutes:    envIntDefault("EXPIRY_SWEEP_MINUTES", 60),
		ExpiryWarnDaysCSV:     envDefault("EXPIRY_WARN_DAYS", "30,15,7,1"),
		RequestSweepMinutes:   envIntDefault("REQUEST_SWEEP_MINUTES", 5),
		BatchWorkers:          envIntDefault("BATCH_WORKERS", 8),
		SignatureResultTTLMin: envIntDefault("SIGNATURE_RESULT_TTL_MINUTES", 60),
		WebhookURL:            os.Getenv("WEBHOOK_URL"),
		WebhookTimeoutSecs:    envIntDefault("WEBHOOK_TIMEOUT_SECONDS", 10),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func (c Config) ValidityCacheTTL() time.Duration {
	return time.Duration(c.ValidityCacheTTLSecs) * time.Second
}

func (c Config) SignatureResultTTL() time.Duration {
	return time.Duration(c.SignatureResultTTLMin) * time.Minute
}

func (c Config) ExpirySweepInterval() time.Duration {
	return time.Duration(c.ExpirySweepMinutes) * time.Minute
}

func (c Config) RequestSweepInterval() time.Duration {
	return time.Duration(c.RequestSweepMinutes) * time.Minute
}

func (c Config) TrustReloadInterval() time.Duration {
	return time.Duration(c.TrustReloadMinutes) * time.Minute
}

func (c Config) TSATimeout() time.Duration {
	return time.Duration(c.TSATimeoutSecs) * time.Second
}

func (c Config) OCSPTimeout() time.Duration {
	return time.Duration(c.OCSPTimeoutSecs) * time.Second
}

func (c Config) WebhookTimeout() time.Duration {
	return time.Duration(c.WebhookTimeoutSecs) * time.Second
}

// ExpiryWarnDays parses the comma-separated warn thresholds, dropping
// anything non-positive.
func (c Config) ExpiryWarnDays() []int {
	parts := strings.Split(c.ExpiryWarnDaysCSV, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			continue
		}
		out = append(out, n)
	}
	return out
}
