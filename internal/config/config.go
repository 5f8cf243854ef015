package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minJWTSecretLen = 32

// S3Config holds S3-compatible storage configuration for backups.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Configured reports whether enough is set to reach a bucket.
func (c S3Config) Configured() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string
	BaseURL   string
	Location  *time.Location

	JWTSecret      string
	DocstoreURL    string // empty selects the in-memory document store
	SpoonacularKey string

	// AdminEmails may list and run backups. Empty leaves backups to the schedule.
	AdminEmails []string
	// TrustProxy keys rate limits on forwarding headers instead of the peer address.
	TrustProxy  bool

	ReminderSchedule string
	BackupSchedule   string
	BackupPassphrase string
	S3               S3Config

	VAPIDPublicKey  string
	VAPIDPrivateKey string

	PostmarkToken string
	FromEmail     string
}

// Load reads configuration from the environment, after merging any .env file
// in the working directory. It fails with every missing required value listed.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	var missing []string

	cfg := &Config{
		Port:             getenv("HEARTH_PORT", "8080"),
		DBPath:           getenv("HEARTH_DB_PATH", "hearth.db"),
		LogLevel:         os.Getenv("HEARTH_LOG_LEVEL"),
		LogFormat:        os.Getenv("HEARTH_LOG_FORMAT"),
		JWTSecret:        os.Getenv("HEARTH_JWT_SECRET"),
		DocstoreURL:      os.Getenv("HEARTH_DOCSTORE_URL"),
		SpoonacularKey:   os.Getenv("HEARTH_SPOONACULAR_KEY"),
		ReminderSchedule: getenv("HEARTH_REMINDER_SCHEDULE", "0 9 * * *"),
		BackupSchedule:   getenv("HEARTH_BACKUP_SCHEDULE", "0 3 * * *"),
		BackupPassphrase: os.Getenv("HEARTH_BACKUP_PASSPHRASE"),
		S3: S3Config{
			Endpoint:  os.Getenv("HEARTH_S3_ENDPOINT"),
			Bucket:    os.Getenv("HEARTH_S3_BUCKET"),
			Region:    getenv("HEARTH_S3_REGION", "us-east-1"),
			AccessKey: os.Getenv("HEARTH_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("HEARTH_S3_SECRET_KEY"),
		},
		VAPIDPublicKey:  os.Getenv("HEARTH_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("HEARTH_VAPID_PRIVATE_KEY"),
		PostmarkToken:   os.Getenv("HEARTH_POSTMARK_TOKEN"),
		FromEmail:       getenv("HEARTH_FROM_EMAIL", "noreply@hearth.local"),
	}
	cfg.BaseURL = getenv("HEARTH_BASE_URL", "http://localhost:"+cfg.Port)
	cfg.AdminEmails = splitEmails(os.Getenv("HEARTH_ADMIN_EMAILS"))

	if v := os.Getenv("HEARTH_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid HEARTH_TRUST_PROXY: %w", err)
		}
		cfg.TrustProxy = trust
	}

	if cfg.JWTSecret == "" {
		missing = append(missing, "HEARTH_JWT_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if len(cfg.JWTSecret) < minJWTSecretLen {
		return nil, fmt.Errorf("HEARTH_JWT_SECRET must be at least %d bytes", minJWTSecretLen)
	}

	loc, err := time.LoadLocation(getenv("HEARTH_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid HEARTH_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	return cfg, nil
}

// splitEmails parses a comma-separated list, lower-cased with blanks dropped.
func splitEmails(s string) []string {
	var emails []string
	for _, e := range strings.Split(s, ",") {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			emails = append(emails, e)
		}
	}
	return emails
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
