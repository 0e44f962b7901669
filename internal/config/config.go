package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request timeout for the favorites API

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Database
	DBDriver          string        // "mysql" | "sqlite"
	MySQLHost         string        // ex: "db.internal"
	MySQLPort         string        // ex: "3306"
	MySQLUser         string        //
	MySQLPassword     string        //
	MySQLDatabase     string        //
	MySQLTLS          bool          // verify server certificate
	SQLitePath        string        // ex: "/data/tidy.db"
	DBMaxOpenConns    int           // pool size, also bounds rating write fan-out by default
	DBMaxIdleConns    int           //
	DBConnMaxLifetime time.Duration //
	DBConnectTimeout  time.Duration // total time to retry connecting (ex: 30s)
	DBRetryInterval   time.Duration // initial wait between retries (grows exponentially)
	DBMaxWait         time.Duration // max wait between retries
	DBPingTimeout     time.Duration // timeout for each ping attempt
	DBWarnThreshold   int           // warn after this many attempts, then log errors

	// GitHub
	GitHubToken      string // personal access token used for GraphQL and REST
	GitHubGraphQLURL string // ex: "https://api.github.com/graphql"

	// Star refresh
	RefreshWeekday          string        // "friday" | ... | "any"
	RefreshTimezone         string        // IANA name, ex: "UTC"
	RefreshInterval         time.Duration // in-process scheduler tick (default: 24h)
	RefreshScheduler        bool          // false => only the HTTP trigger runs the job
	RefreshBatchSize        int           // repositories per GraphQL query (max 50)
	RefreshWriteConcurrency int           // concurrent rating writes per batch
	CronSecret              string        // shared secret expected on the trigger endpoint
	CronAllowedCIDRS        []string      // optional, restrict the trigger endpoint

	// Sessions
	JWTSecret       string            // current HS256 signing key
	JWTKeyID        string            // kid of the current key
	JWTRetiredKeys  map[string]string // kid -> secret, verification only
	SessionTTL      time.Duration     // token and cookie lifetime
	CookieSecure    bool              //
	LoginBurst      int               // login attempts per IP before throttling
	LoginRefillRate int               // login attempts regained per minute

	// Redis (optional, empty address disables report history and session revocation)
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict readyz to specific IPs/CIDRs
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("TIDY_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("TIDY_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("TIDY_REQUEST_TIMEOUT", 10*time.Second),

		// Logging
		LogLevel:  getenv("TIDY_LOG_LEVEL", "info"),
		PrettyLog: mustBool("TIDY_PRETTY_LOG", true),

		// Database settings
		DBDriver:          strings.ToLower(getenv("TIDY_DB_DRIVER", "mysql")),
		MySQLHost:         getenv("TIDY_MYSQL_HOST", "127.0.0.1"),
		MySQLPort:         getenv("TIDY_MYSQL_PORT", "3306"),
		MySQLUser:         getenv("TIDY_MYSQL_USER", ""),
		MySQLPassword:     getenv("TIDY_MYSQL_PASSWORD", ""),
		MySQLDatabase:     getenv("TIDY_MYSQL_DATABASE", ""),
		MySQLTLS:          mustBool("TIDY_MYSQL_TLS", true),
		SQLitePath:        getenv("TIDY_SQLITE_PATH", "tidy.db"),
		DBMaxOpenConns:    getenvInt("TIDY_DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    getenvInt("TIDY_DB_MAX_IDLE_CONNS", 10),
		DBConnMaxLifetime: mustDuration("TIDY_DB_CONN_MAX_LIFETIME", time.Hour),
		DBConnectTimeout:  mustDuration("TIDY_DB_CONNECT_TIMEOUT", 30*time.Second),
		DBRetryInterval:   mustDuration("TIDY_DB_RETRY_INTERVAL", 2*time.Second),
		DBMaxWait:         mustDuration("TIDY_DB_MAX_WAIT", 10*time.Second),
		DBPingTimeout:     mustDuration("TIDY_DB_PING_TIMEOUT", 5*time.Second),
		DBWarnThreshold:   getenvInt("TIDY_DB_WARN_THRESHOLD", 3),

		// GitHub settings
		GitHubToken:      requireEnv("TIDY_GITHUB_TOKEN"),
		GitHubGraphQLURL: getenv("TIDY_GITHUB_GRAPHQL_URL", "https://api.github.com/graphql"),

		// Star refresh settings
		RefreshWeekday:          strings.ToLower(getenv("TIDY_REFRESH_WEEKDAY", "friday")),
		RefreshTimezone:         getenv("TIDY_REFRESH_TIMEZONE", "UTC"),
		RefreshInterval:         mustDuration("TIDY_REFRESH_INTERVAL", 24*time.Hour),
		RefreshScheduler:        mustBool("TIDY_REFRESH_SCHEDULER", true),
		RefreshBatchSize:        getenvInt("TIDY_REFRESH_BATCH_SIZE", 50),
		RefreshWriteConcurrency: getenvInt("TIDY_REFRESH_WRITE_CONCURRENCY", 10),
		CronSecret:              getenv("TIDY_CRON_SECRET", ""),
		CronAllowedCIDRS:        parseAllowedIPs(getenv("TIDY_CRON_ALLOWED_CIDRS", "")),

		// Session settings
		JWTSecret:       requireEnv("TIDY_JWT_SECRET"),
		JWTKeyID:        getenv("TIDY_JWT_KEY_ID", "v2"),
		JWTRetiredKeys:  parseKeyPairs(getenv("TIDY_JWT_RETIRED_KEYS", "")),
		SessionTTL:      mustDuration("TIDY_SESSION_TTL", 7*24*time.Hour),
		CookieSecure:    mustBool("TIDY_COOKIE_SECURE", true),
		LoginBurst:      getenvInt("TIDY_LOGIN_BURST", 5),
		LoginRefillRate: getenvInt("TIDY_LOGIN_REFILL_PER_MIN", 5),

		// Redis settings
		RedisAddr:             getenv("TIDY_REDIS_ADDR", ""),
		RedisUser:             getenv("TIDY_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("TIDY_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("TIDY_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("TIDY_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("TIDY_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("TIDY_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("TIDY_TRUST_PROXY", true),
	}

	switch cfg.DBDriver {
	case "mysql":
		if cfg.MySQLDatabase == "" {
			panic("❌ FATAL: TIDY_MYSQL_DATABASE is required when TIDY_DB_DRIVER=mysql")
		}
	case "sqlite":
	default:
		panic(fmt.Sprintf("❌ FATAL: unsupported TIDY_DB_DRIVER %q (want mysql or sqlite)", cfg.DBDriver))
	}

	// Validate Redis password configuration
	if cfg.RedisAddr != "" && cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: TIDY_REDIS_PASSWORD is required when TIDY_REDIS_PASSWORD_REQUIRED=true")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	const redacted = "***REDACTED***"
	cp := *c
	cp.MySQLPassword = redacted
	cp.GitHubToken = redacted
	cp.JWTSecret = redacted
	cp.JWTRetiredKeys = nil
	if cp.CronSecret != "" {
		cp.CronSecret = redacted
	}
	cp.RedisPassword = redacted
	if cp.RedisUser != "" {
		cp.RedisUser = redacted
	}
	return cp
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

// parseKeyPairs parses "kid:secret,kid2:secret2". Malformed pairs are ignored.
func parseKeyPairs(s string) map[string]string {
	pairs := splitAndTrim(s)
	if len(pairs) == 0 {
		return nil
	}
	keys := make(map[string]string, len(pairs))
	for _, p := range pairs {
		kid, secret, ok := strings.Cut(p, ":")
		kid = strings.TrimSpace(kid)
		if !ok || kid == "" || secret == "" {
			continue
		}
		keys[kid] = secret
	}
	return keys
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
