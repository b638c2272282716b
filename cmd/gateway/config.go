package main

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"cart-guard/middleware/ratelimit/application"
)

type config struct {
	listenAddr  string
	upstreamURL string
	logLevel    string
	metricsPath string

	redisAddr     string
	redisPassword string
	redisDB       int
	storeTimeout  time.Duration

	policyFile string
	authHeader string
	trustXFF   bool
	addHeaders bool

	allowlistEnabled bool
	allowlistIPs     string

	concurrencyMax      int
	concurrencyTimeout  time.Duration
	violationLogWorkers int
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")
	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.metricsPath = getenvDefault("METRICS_PATH", "/metrics")

	cfg.redisAddr = getenvDefault("REDIS_ADDR", "localhost:6379")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)
	cfg.storeTimeout = getenvDurationDefault("STORE_TIMEOUT", application.DefaultStoreTimeout)

	cfg.policyFile = os.Getenv("POLICY_FILE")
	cfg.authHeader = getenvDefault("AUTH_HEADER", "X-User-ID")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", true)
	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", true)

	cfg.allowlistEnabled = getenvBoolDefault("ALLOWLIST_ENABLED", false)
	cfg.allowlistIPs = os.Getenv("ALLOWLIST_IPS")

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 0)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)
	cfg.violationLogWorkers = getenvIntDefault("VIOLATION_LOG_WORKERS", 32)

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if strings.TrimSpace(cfg.redisAddr) == "" {
		return config{}, errors.New("REDIS_ADDR must not be empty")
	}
	if cfg.storeTimeout <= 0 {
		return config{}, errors.New("STORE_TIMEOUT must be > 0")
	}
	if !strings.HasPrefix(cfg.metricsPath, "/") {
		return config{}, errors.New("METRICS_PATH must start with /")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if cfg.violationLogWorkers <= 0 {
		return config{}, errors.New("VIOLATION_LOG_WORKERS must be > 0")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
