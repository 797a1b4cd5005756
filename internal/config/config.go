package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the API server and
// supporting services.
type Config struct {
	ListenAddr          string
	MySQLDSN            string
	FreepikAPIKey       string
	FreepikBaseURL      string
	RequestTimeout      time.Duration
	RestorePollAttempts int
	ExportPollAttempts  int
	PollInterval        time.Duration
	SignupBonusCredits  int
	SubscriptionCredits int
	SessionTTL          time.Duration
	SecureCookies       bool
	S3Endpoint          string
	S3Region            string
	S3AccessKey         string
	S3SecretKey         string
	S3Bucket            string
	S3PublicBaseURL     string
	S3UsePathStyle      bool
	S3Prefix            string
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	const defaultFreepikBaseURL = "https://api.freepik.com"

	cfg := Config{
		ListenAddr:          getEnv("HTTP_LISTEN_ADDR", ":8080"),
		FreepikBaseURL:      normalizeBaseURL(getEnv("FREEPIK_BASE_URL", defaultFreepikBaseURL), defaultFreepikBaseURL),
		RequestTimeout:      time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 300)),
		RestorePollAttempts: getInt("RESTORE_POLL_ATTEMPTS", 60),
		ExportPollAttempts:  getInt("EXPORT_POLL_ATTEMPTS", 40),
		PollInterval:        time.Millisecond * time.Duration(getInt("POLL_INTERVAL_MS", 3000)),
		SignupBonusCredits:  getInt("SIGNUP_BONUS_CREDITS", 3),
		SubscriptionCredits: getInt("SUBSCRIPTION_CREDITS", 50),
		SessionTTL:          time.Hour * time.Duration(getInt("SESSION_TTL_HOURS", 720)),
		SecureCookies:       getBool("SECURE_COOKIES", false),
		S3Endpoint:          getEnv("S3_ENDPOINT", ""),
		S3Region:            os.Getenv("S3_REGION"),
		S3AccessKey:         os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:         os.Getenv("S3_SECRET_KEY"),
		S3Bucket:            os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:     os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:      getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:            getEnv("S3_PREFIX", "uploads"),
	}

	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
	cfg.FreepikAPIKey = os.Getenv("FREEPIK_API_KEY")

	var missing []string
	if cfg.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if cfg.FreepikAPIKey == "" {
		missing = append(missing, "FREEPIK_API_KEY")
	}
	if cfg.S3Region == "" {
		missing = append(missing, "S3_REGION")
	}
	if cfg.S3AccessKey == "" {
		missing = append(missing, "S3_ACCESS_KEY")
	}
	if cfg.S3SecretKey == "" {
		missing = append(missing, "S3_SECRET_KEY")
	}
	if cfg.S3Bucket == "" {
		missing = append(missing, "S3_BUCKET")
	}
	if cfg.S3PublicBaseURL == "" {
		missing = append(missing, "S3_PUBLIC_BASE_URL")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return cfg, nil
}

// normalizeBaseURL keeps the provider URL pointed at the API host even when
// the env var carries a bare domain or a trailing slash.
func normalizeBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}

	return strings.TrimRight(parsed.String(), "/")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	// Running without an env file is fine; the environment may already be set.
	return nil
}
