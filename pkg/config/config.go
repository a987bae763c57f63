package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/diagnosis/reservations/internal/domain"
)

const (
	ProviderEmailJS    = "emailjs"
	ProviderMailerSend = "mailersend"
	ProviderSendGrid   = "sendgrid"
	ProviderDev        = "dev"

	DefaultEmailJSURL = "https://api.emailjs.com/api/v1.0/email/send"
)

type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Redis   RedisConfig
	NATS    NATSConfig
	Email   EmailConfig
	Form    FormConfig
	Session SessionConfig
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
	MaxBodyBytes   int
}

type LogConfig struct {
	Level  string
	Format string
}

// RedisConfig backs the idempotency store. An empty URL selects the in-memory store.
type RedisConfig struct {
	URL string
}

// NATSConfig enables reservation events. An empty URL disables publishing.
type NATSConfig struct {
	URL string
}

type EmailConfig struct {
	Provider        string
	AdminTemplateID string
	UserTemplateID  string
	AdminEmail      string
	AdminName       string
	FromEmail       string
	FromName        string
	Timeout         time.Duration

	EmailJS       EmailJSConfig
	MailerSendKey string
	SendGridKey   string
}

type EmailJSConfig struct {
	ServiceID  string
	PublicKey  string
	PrivateKey string
	APIURL     string
}

type FormConfig struct {
	OpenTime     string
	CloseTime    string
	SlotStep     time.Duration
	Timezone     string
	SettingsFile string
}

// SessionConfig holds base64 encoded securecookie keys. Empty keys are
// generated per process, which only invalidates in-flight flash messages on restart.
type SessionConfig struct {
	HashKey  string
	BlockKey string
}

// LoadEnvFiles loads .env.local then .env when present. Values already set in
// the environment win.
func LoadEnvFiles(files ...string) {
	if len(files) == 0 {
		files = []string{".env.local", ".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			ReadTimeout:    getDuration("SERVER_READ_TIMEOUT", 5*time.Second),
			WriteTimeout:   getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			MaxBodyBytes:   getInt("SERVER_MAX_BODY_BYTES", 64<<10),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Email: EmailConfig{
			Provider:        strings.ToLower(getEnv("EMAIL_PROVIDER", ProviderEmailJS)),
			AdminTemplateID: getEnv("EMAIL_TEMPLATE_ID_ADMIN", getEnv("EMAIL_TEMPLATE_ID", "")),
			UserTemplateID:  getEnv("EMAIL_TEMPLATE_ID_USER", ""),
			AdminEmail:      getEnv("ADMIN_EMAIL", ""),
			AdminName:       getEnv("ADMIN_NAME", "Reservations"),
			FromEmail:       getEnv("MAIL_FROM_EMAIL", ""),
			FromName:        getEnv("MAIL_FROM_NAME", "Reservations"),
			Timeout:         getDuration("EMAIL_TIMEOUT", 10*time.Second),
			EmailJS: EmailJSConfig{
				ServiceID:  getEnv("EMAILJS_SERVICE_ID", ""),
				PublicKey:  getEnv("EMAILJS_PUBLIC_KEY", ""),
				PrivateKey: getEnv("EMAILJS_PRIVATE_KEY", ""),
				APIURL:     getEnv("EMAILJS_API_URL", DefaultEmailJSURL),
			},
			MailerSendKey: getEnv("MAILERSEND_API_KEY", ""),
			SendGridKey:   getEnv("SENDGRID_API_KEY", ""),
		},
		Form: FormConfig{
			OpenTime:     getEnv("SERVICE_OPEN_TIME", "11:00"),
			CloseTime:    getEnv("SERVICE_CLOSE_TIME", "22:00"),
			SlotStep:     getDuration("SERVICE_SLOT_STEP", 5*time.Minute),
			Timezone:     getEnv("RESTAURANT_TIMEZONE", "Local"),
			SettingsFile: getEnv("RESERVATION_SETTINGS_FILE", ""),
		},
		Session: SessionConfig{
			HashKey:  getEnv("SESSION_HASH_KEY", ""),
			BlockKey: getEnv("SESSION_BLOCK_KEY", ""),
		},
	}
}

// MissingEmailSettings names the environment variables the selected provider
// needs but which are unset.
func (c *Config) MissingEmailSettings() []string {
	e := c.Email
	var missing []string
	if e.AdminTemplateID == "" {
		missing = append(missing, "EMAIL_TEMPLATE_ID_ADMIN")
	}

	switch e.Provider {
	case ProviderEmailJS:
		if e.EmailJS.ServiceID == "" {
			missing = append(missing, "EMAILJS_SERVICE_ID")
		}
		if e.EmailJS.PublicKey == "" {
			missing = append(missing, "EMAILJS_PUBLIC_KEY")
		}
	case ProviderMailerSend:
		if e.MailerSendKey == "" {
			missing = append(missing, "MAILERSEND_API_KEY")
		}
		if e.FromEmail == "" {
			missing = append(missing, "MAIL_FROM_EMAIL")
		}
		if e.AdminEmail == "" {
			missing = append(missing, "ADMIN_EMAIL")
		}
	case ProviderSendGrid:
		if e.SendGridKey == "" {
			missing = append(missing, "SENDGRID_API_KEY")
		}
		if e.FromEmail == "" {
			missing = append(missing, "MAIL_FROM_EMAIL")
		}
		if e.AdminEmail == "" {
			missing = append(missing, "ADMIN_EMAIL")
		}
	}
	return missing
}

// Validate reports every configuration problem that would make submissions fail.
func (c *Config) Validate() error {
	var errs []error

	switch c.Email.Provider {
	case ProviderEmailJS, ProviderMailerSend, ProviderSendGrid, ProviderDev:
	default:
		errs = append(errs, fmt.Errorf("EMAIL_PROVIDER %q is not one of emailjs, mailersend, sendgrid, dev", c.Email.Provider))
	}
	if missing := c.MissingEmailSettings(); len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing email settings: %s", strings.Join(missing, ", ")))
	}
	if c.Email.Timeout <= 0 {
		errs = append(errs, errors.New("EMAIL_TIMEOUT must be positive"))
	}
	window := domain.ServiceWindow{Open: c.Form.OpenTime, Close: c.Form.CloseTime}
	if err := window.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("SERVICE_OPEN_TIME/SERVICE_CLOSE_TIME: %w", err))
	}
	if c.Form.SlotStep <= 0 || c.Form.SlotStep%time.Minute != 0 {
		errs = append(errs, fmt.Errorf("SERVICE_SLOT_STEP %s must be a positive whole number of minutes", c.Form.SlotStep))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, _, err := c.SessionKeys(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Location resolves the restaurant's time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Form.Timezone == "" || c.Form.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Form.Timezone)
	if err != nil {
		return nil, fmt.Errorf("RESTAURANT_TIMEZONE: %w", err)
	}
	return loc, nil
}

// SessionKeys decodes the configured cookie keys. Both are nil when unset.
func (c *Config) SessionKeys() (hashKey, blockKey []byte, err error) {
	if c.Session.HashKey == "" && c.Session.BlockKey == "" {
		return nil, nil, nil
	}
	hashKey, err = base64.StdEncoding.DecodeString(strings.TrimSpace(c.Session.HashKey))
	if err != nil || len(hashKey) < 32 {
		return nil, nil, errors.New("SESSION_HASH_KEY must be base64 of at least 32 bytes")
	}
	if c.Session.BlockKey == "" {
		return hashKey, nil, nil
	}
	blockKey, err = base64.StdEncoding.DecodeString(strings.TrimSpace(c.Session.BlockKey))
	if err != nil {
		return nil, nil, fmt.Errorf("SESSION_BLOCK_KEY: %w", err)
	}
	switch len(blockKey) {
	case 16, 24, 32:
	default:
		return nil, nil, errors.New("SESSION_BLOCK_KEY must decode to 16, 24 or 32 bytes")
	}
	return hashKey, blockKey, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
