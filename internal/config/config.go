package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort string
	MySQLDSN   string
	RedisAddr  string
	RedisDB    int
	RedisPass  string

	JWTSecret       string
	SessionTokenTTL time.Duration
	VerifyTokenTTL  time.Duration
	OTPTTL          time.Duration

	// AppBaseURL is the externally reachable base URL used to build
	// verification links sent by email.
	AppBaseURL string
	// VerifiedRedirectURL is where a successful verification link visit
	// redirects to.
	VerifiedRedirectURL string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	SwaggerHost string
}

// Load builds Config from environment with sensible defaults. A .env file in
// the working directory is honored when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		MySQLDSN:   getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/userhub?charset=utf8mb4&parseTime=True&loc=Local"),
		RedisAddr:  getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:    getEnvInt("REDIS_DB", 0),
		RedisPass:  os.Getenv("REDIS_PASSWORD"),

		JWTSecret:       getEnv("JWT_SECRET", "change-me"),
		SessionTokenTTL: getEnvMinutes("SESSION_TOKEN_TTL_MINUTES", 60),
		VerifyTokenTTL:  getEnvMinutes("VERIFY_TOKEN_TTL_MINUTES", 30),
		OTPTTL:          getEnvMinutes("OTP_TTL_MINUTES", 5),

		AppBaseURL:          getEnv("APP_BASE_URL", "http://localhost:8080"),
		VerifiedRedirectURL: getEnv("VERIFIED_REDIRECT_URL", "http://localhost:8080/verified"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getEnv("SMTP_FROM", "no-reply@userhub.local"),

		SwaggerHost: os.Getenv("SWAGGER_HOST"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvMinutes(key string, def int) time.Duration {
	return time.Duration(getEnvInt(key, def)) * time.Minute
}
