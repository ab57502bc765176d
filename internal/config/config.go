package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration of the API. Values load from an
// optional YAML file first, then environment variables override field by
// field. Secrets are expected to arrive via environment only.
type Config struct {
	App    AppConfig    `yaml:"app"`
	DB     DBConfig     `yaml:"db"`
	Auth   AuthConfig   `yaml:"auth"`
	TFA    TFAConfig    `yaml:"tfa"`
	Mail   MailConfig   `yaml:"mail"`
	Google GoogleConfig `yaml:"google"`
	HTTP   HTTPConfig   `yaml:"http"`
	Front  FrontConfig  `yaml:"frontend"`
}

type AppConfig struct {
	Name string `yaml:"name"`
	Env  string `yaml:"env"`
	Addr string `yaml:"addr"`
}

type DBConfig struct {
	DSN string `yaml:"dsn"`
}

type AuthConfig struct {
	Issuer        string        `yaml:"issuer"`
	AccessSecret  string        `yaml:"-"`
	RefreshSecret string        `yaml:"-"`
	TempSecret    string        `yaml:"-"`
	AccessTTL     time.Duration `yaml:"access_ttl"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl"`
	TempTTL       time.Duration `yaml:"temp_ttl"`
}

// UnmarshalYAML parses TTL fields from Go duration strings ("15m", "2h").
func (a *AuthConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Issuer     string `yaml:"issuer"`
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
		TempTTL    string `yaml:"temp_ttl"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Issuer != "" {
		a.Issuer = raw.Issuer
	}
	for _, f := range []struct {
		val string
		dst *time.Duration
	}{
		{raw.AccessTTL, &a.AccessTTL},
		{raw.RefreshTTL, &a.RefreshTTL},
		{raw.TempTTL, &a.TempTTL},
	} {
		if f.val == "" {
			continue
		}
		d, err := time.ParseDuration(f.val)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", f.val, err)
		}
		*f.dst = d
	}
	return nil
}

type TFAConfig struct {
	Issuer string `yaml:"issuer"`
}

type MailConfig struct {
	APIKey string `yaml:"-"`
	From   string `yaml:"from"`
}

type GoogleConfig struct {
	ClientID string `yaml:"client_id"`
}

type HTTPConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateBurst      int      `yaml:"rate_burst"`
	RatePerSecond  int      `yaml:"rate_per_second"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`
}

type FrontConfig struct {
	URL string `yaml:"url"`
}

// Production reports whether the service runs with production hardening
// (secure cookies, strict same-site).
func (c Config) Production() bool {
	return strings.EqualFold(c.App.Env, "production")
}

// Load builds the configuration from SMS_CONFIG (optional YAML path) and
// SMS_* environment variables, then validates it.
func Load() (Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("SMS_CONFIG")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		App: AppConfig{
			Name: "sms-api",
			Env:  "development",
			Addr: ":3000",
		},
		Auth: AuthConfig{
			Issuer:     "fpolysms",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 2 * time.Hour,
			TempTTL:    5 * time.Minute,
		},
		TFA: TFAConfig{Issuer: "FPOLY_SMS"},
		HTTP: HTTPConfig{
			AllowedOrigins: []string{"http://localhost:5173"},
			RateBurst:      20,
			RatePerSecond:  10,
			MaxBodyBytes:   1 << 20,
		},
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.App.Name, "SMS_APP_NAME")
	setString(&cfg.App.Env, "SMS_ENV")
	setString(&cfg.App.Addr, "SMS_ADDR")
	setString(&cfg.DB.DSN, "SMS_PG_DSN")
	setString(&cfg.Auth.Issuer, "SMS_JWT_ISSUER")
	setString(&cfg.Auth.AccessSecret, "SMS_JWT_SECRET")
	setString(&cfg.Auth.RefreshSecret, "SMS_REFRESH_TOKEN_SECRET")
	setString(&cfg.Auth.TempSecret, "SMS_TEMP_TOKEN_SECRET")
	setDuration(&cfg.Auth.AccessTTL, "SMS_JWT_EXPIRES_IN")
	setDuration(&cfg.Auth.RefreshTTL, "SMS_REFRESH_TOKEN_EXPIRES_IN")
	setDuration(&cfg.Auth.TempTTL, "SMS_TEMP_TOKEN_EXPIRES_IN")
	setString(&cfg.TFA.Issuer, "SMS_TFA_ISSUER")
	setString(&cfg.Mail.APIKey, "SMS_RESEND_API_KEY")
	setString(&cfg.Mail.From, "SMS_MAIL_FROM")
	setString(&cfg.Google.ClientID, "SMS_GOOGLE_CLIENT_ID")
	setString(&cfg.Front.URL, "SMS_FRONTEND_URL")

	if raw := strings.TrimSpace(os.Getenv("SMS_ALLOWED_ORIGINS")); raw != "" {
		var origins []string
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) > 0 {
			cfg.HTTP.AllowedOrigins = origins
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		*dst = d
	}
}

func (c Config) validate() error {
	if c.Auth.AccessSecret == "" {
		return errors.New("config: SMS_JWT_SECRET is required")
	}
	if c.Auth.RefreshSecret == "" {
		return errors.New("config: SMS_REFRESH_TOKEN_SECRET is required")
	}
	if c.Auth.TempSecret == "" {
		return errors.New("config: SMS_TEMP_TOKEN_SECRET is required")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret ||
		c.Auth.TempSecret == c.Auth.AccessSecret ||
		c.Auth.TempSecret == c.Auth.RefreshSecret {
		return errors.New("config: access, refresh and temporary secrets must differ")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 || c.Auth.TempTTL <= 0 {
		return errors.New("config: token lifetimes must be positive")
	}
	return nil
}
