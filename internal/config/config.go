package config

import (
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the core runtime configuration for the service.
// Values are sourced from environment variables (optionally via a .env
// file loaded in main), with defaults matching the docker-compose setup.
type Config struct {
	Environment string
	Version     string

	ListenAddr     string
	AllowedOrigins []string
	LogLevel       string

	// DatabaseURL is the full PostgreSQL URL. When DATABASE_URL is unset it
	// is assembled from the DATABASE_HOST/PORT/NAME/USER/PASSWORD parts.
	DatabaseURL string

	// Connection details reported by /api/test-db. Parsed from DatabaseURL
	// when it was given directly.
	DatabaseHost string
	DatabasePort int
	DatabaseName string

	DBPoolSize        int
	DBPoolRecycle     time.Duration
	DBConnectTimeout  time.Duration
	DBApplicationName string

	// TelemetryTimeout bounds a single recorder append or aggregator query.
	TelemetryTimeout time.Duration
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		Environment:       getenv("ENVIRONMENT", "development"),
		Version:           getenv("APP_VERSION", "1.0.0"),
		ListenAddr:        ":" + getenv("PORT", "5000"),
		AllowedOrigins:    splitList(getenv("ALLOWED_ORIGINS", "*")),
		LogLevel:          strings.ToUpper(getenv("LOG_LEVEL", "INFO")),
		DBPoolSize:        getint("DB_POOL_SIZE", 10),
		DBPoolRecycle:     time.Duration(getint("DB_POOL_RECYCLE_SECONDS", 120)) * time.Second,
		DBConnectTimeout:  time.Duration(getint("DB_CONNECT_TIMEOUT_SECONDS", 30)) * time.Second,
		DBApplicationName: getenv("DB_APPLICATION_NAME", "infraprime-backend"),
		TelemetryTimeout:  time.Duration(getint("TELEMETRY_TIMEOUT_MS", 2000)) * time.Millisecond,
	}

	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseName = describeURL(v)
		return cfg
	}

	cfg.DatabaseHost = getenv("DATABASE_HOST", "database")
	cfg.DatabasePort = getint("DATABASE_PORT", 5432)
	cfg.DatabaseName = getenv("DATABASE_NAME", "infraprime")
	user := getenv("DATABASE_USER", "admin")
	password := getenv("DATABASE_PASSWORD", "dev_password_123")

	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(user, password),
		Host:   net.JoinHostPort(cfg.DatabaseHost, strconv.Itoa(cfg.DatabasePort)),
		Path:   "/" + cfg.DatabaseName,
	}
	cfg.DatabaseURL = u.String()
	return cfg
}

// DSN returns DatabaseURL with the connect timeout and application name
// appended as query parameters, unless the URL already sets them.
func (c *Config) DSN() string {
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return c.DatabaseURL
	}
	q := u.Query()
	if q.Get("connect_timeout") == "" && c.DBConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(c.DBConnectTimeout/time.Second)))
	}
	if q.Get("application_name") == "" && c.DBApplicationName != "" {
		q.Set("application_name", c.DBApplicationName)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// OriginAllowed reports whether origin may make cross-origin requests.
func (c *Config) OriginAllowed(origin string) bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func describeURL(raw string) (host string, port int, name string) {
	host, port, name = "unknown", 5432, "unknown"
	u, err := url.Parse(raw)
	if err != nil {
		return host, port, name
	}
	if h := u.Hostname(); h != "" {
		host = h
	}
	if p, err := strconv.Atoi(u.Port()); err == nil {
		port = p
	}
	if n := strings.TrimPrefix(u.Path, "/"); n != "" {
		name = n
	}
	return host, port, name
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
