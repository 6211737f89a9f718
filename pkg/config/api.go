package config

import "time"

// APIConfig holds runtime configuration for the API service. It is loaded
// once in main and passed explicitly into constructors; nothing reads the
// environment after startup.
type APIConfig struct {
	Environment        string
	Addr               string
	DatabaseURL        string
	MigrationsDir      string
	JWTSecret          string
	SessionTTL         time.Duration
	CookieDomain       string
	StorageTimeout     time.Duration
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// Production reports whether the service runs with production hardening
// (Secure cookies, cross-site SameSite policy).
func (c APIConfig) Production() bool {
	return c.Environment == "production"
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":4000"),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://floodwatch:floodwatch@db:5432/floodwatch?sslmode=disable"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "./db/migrations"),
		JWTSecret:          GetString("JWT_SECRET", ""),
		SessionTTL:         time.Duration(GetInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		CookieDomain:       GetString("COOKIE_DOMAIN", ""),
		StorageTimeout:     time.Duration(GetInt("STORAGE_TIMEOUT_SECONDS", 5)) * time.Second,
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}
