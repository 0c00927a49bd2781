package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// GuestRateWindow is the span over which guest requests are counted.
// It is fixed; only the per-window limit is configurable.
const GuestRateWindow = time.Hour

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	Port              string
	Environment       string
	DatabaseURL       string // empty selects the in-memory store
	TablePrefix       string
	AuthJWKSURL       string // empty disables bearer authentication (everyone is a guest)
	CORSOrigins       string
	TrustProxyHeaders bool
	TrustedProxies    []string // CIDRs or addresses; empty trusts only the immediate peer

	// Completion provider
	CompletionProvider  string
	CompletionAPIKey    string
	CompletionBaseURL   string
	CompletionModel     string
	CompletionTimeout   time.Duration
	CompletionMaxTokens int
	SystemInstruction   string // overrides the built-in instruction when set

	// Guest rate limiting
	GuestRateLimit         int
	GuestCounterTTL        time.Duration // 0 disables the sweeper
	GuestCounterSweepEvery time.Duration

	// Logging
	LogDir      string
	LogMaxFiles int
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:              getEnv("PORT", "8080"),
		Environment:       env,
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		TablePrefix:       getTablePrefix(env),
		AuthJWKSURL:       getEnv("AUTH_JWKS_URL", ""),
		CORSOrigins:       getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TrustProxyHeaders: getEnv("TRUST_PROXY_HEADERS", "false") == "true",
		TrustedProxies:    getList("TRUSTED_PROXIES"),

		CompletionProvider:  strings.ToLower(getEnv("COMPLETION_PROVIDER", ProviderOpenAI)),
		CompletionAPIKey:    getEnv("COMPLETION_API_KEY", ""),
		CompletionBaseURL:   getEnv("COMPLETION_BASE_URL", ""),
		CompletionModel:     getEnv("COMPLETION_MODEL", "gpt-4o-mini"),
		CompletionTimeout:   getDuration("COMPLETION_TIMEOUT", 60*time.Second),
		CompletionMaxTokens: getInt("COMPLETION_MAX_TOKENS", 0),
		SystemInstruction:   getEnv("SYSTEM_INSTRUCTION", ""),

		GuestRateLimit:         getInt("GUEST_RATE_LIMIT", 5),
		GuestCounterTTL:        getDuration("GUEST_COUNTER_TTL", 0),
		GuestCounterSweepEvery: getDuration("GUEST_COUNTER_SWEEP_INTERVAL", 15*time.Minute),

		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getInt("LOG_MAX_FILES", 10),
	}
}

// Validate reports configuration that would make the server misbehave at runtime.
func (c *Config) Validate() error {
	if c.GuestRateLimit <= 0 {
		return fmt.Errorf("GUEST_RATE_LIMIT must be positive, got %d", c.GuestRateLimit)
	}
	if c.GuestCounterTTL < 0 {
		return fmt.Errorf("GUEST_COUNTER_TTL must not be negative")
	}
	// A counter younger than the window still decides admissions.
	if c.GuestCounterTTL > 0 && c.GuestCounterTTL < GuestRateWindow {
		return fmt.Errorf("GUEST_COUNTER_TTL (%s) must be at least the rate window (%s)", c.GuestCounterTTL, GuestRateWindow)
	}
	if c.GuestCounterTTL > 0 && c.GuestCounterSweepEvery <= 0 {
		return fmt.Errorf("GUEST_COUNTER_SWEEP_INTERVAL must be positive when the sweeper is enabled")
	}
	switch c.CompletionProvider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown COMPLETION_PROVIDER %q", c.CompletionProvider)
	}
	if c.CompletionTimeout <= 0 {
		return fmt.Errorf("COMPLETION_TIMEOUT must be positive")
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	return nil
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is a
// single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, entry := range c.TrustedProxies {
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// UsesMemoryStore reports whether the in-memory store backs the repositories.
func (c *Config) UsesMemoryStore() bool {
	return c.DatabaseURL == ""
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid %s=%q, using %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid %s=%q, using %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}
