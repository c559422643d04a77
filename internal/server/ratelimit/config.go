package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Rule limits one endpoint. A Path ending in "/" matches by prefix.
type Rule struct {
	Method string
	Path   string
	Limit  int
	Window time.Duration
	Burst  int
}

func (r Rule) matches(method, path string) bool {
	if r.Method != method {
		return false
	}
	if strings.HasSuffix(r.Path, "/") {
		return strings.HasPrefix(path, r.Path)
	}
	return r.Path == path
}

// Config holds rate limiting configuration
type Config struct {
	Enabled         bool
	Default         Rule
	Rules           []Rule
	CleanupInterval time.Duration
	Allowlist       map[string]bool
	Blocklist       map[string]bool
}

// DefaultRules limits run submissions, which are CPU heavy, far more
// strictly than reads. Font downloads and health checks are unlimited.
func DefaultRules() []Rule {
	return []Rule{
		{Method: "POST", Path: "/runs", Limit: 30, Window: time.Hour, Burst: 3},
		{Method: "POST", Path: "/runs/stream", Limit: 30, Window: time.Hour, Burst: 3},
		{Method: "GET", Path: "/health"},
		{Method: "GET", Path: "/webfonts/"},
	}
}

// DefaultConfig returns the configuration used without environment overrides
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		Default:         Rule{Limit: 600, Window: time.Minute},
		Rules:           DefaultRules(),
		CleanupInterval: 5 * time.Minute,
		Allowlist:       map[string]bool{},
		Blocklist:       map[string]bool{},
	}
}

// Match returns the first rule for method and path, or the default rule
func (c *Config) Match(method, path string) Rule {
	for _, r := range c.Rules {
		if r.matches(method, path) {
			return r
		}
	}
	d := c.Default
	d.Method, d.Path = method, path
	return d
}

// LoadConfig reads RATE_LIMIT_* environment variables over DefaultConfig
func LoadConfig() *Config {
	cfg := DefaultConfig()
	cfg.Enabled = envBool("RATE_LIMIT_ENABLED", cfg.Enabled)
	cfg.Default.Limit = envInt("RATE_LIMIT_DEFAULT_LIMIT", cfg.Default.Limit)
	cfg.Default.Window = envDuration("RATE_LIMIT_DEFAULT_WINDOW", cfg.Default.Window)
	cfg.CleanupInterval = envDuration("RATE_LIMIT_CLEANUP_INTERVAL", cfg.CleanupInterval)
	cfg.Allowlist = parseIPList(os.Getenv("RATE_LIMIT_ALLOWLIST"))
	cfg.Blocklist = parseIPList(os.Getenv("RATE_LIMIT_BLOCKLIST"))
	return cfg
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func parseIPList(list string) map[string]bool {
	out := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			out[ip] = true
		}
	}
	return out
}
