package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keeps runtime settings for the back office.
type Config struct {
	TelegramToken     string
	DatabaseURL       string
	LogLevel          string
	LogPretty         bool
	Timezone          string
	Location          *time.Location
	CountdownInterval time.Duration
	DigestTime        string
	HTTPAddr          string
	PublicURL         string
	PrintTTL          time.Duration
	LockFile          string
	Currency          string
	CategoriesFile    string
	Admins            []string
}

// Load reads the optional config file and BACKOFFICE_* environment variables.
// An empty path looks for backoffice.yaml in the working directory.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("backoffice")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("backoffice")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		TelegramToken:     strings.TrimSpace(v.GetString("telegram_token")),
		DatabaseURL:       strings.TrimSpace(v.GetString("database_url")),
		LogLevel:          strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		LogPretty:         v.GetBool("log_pretty"),
		Timezone:          strings.TrimSpace(v.GetString("timezone")),
		CountdownInterval: v.GetDuration("countdown_interval"),
		DigestTime:        strings.TrimSpace(v.GetString("digest_time")),
		HTTPAddr:          strings.TrimSpace(v.GetString("http_addr")),
		PublicURL:         strings.TrimRight(strings.TrimSpace(v.GetString("public_url")), "/"),
		PrintTTL:          v.GetDuration("print_ttl"),
		LockFile:          strings.TrimSpace(v.GetString("lock_file")),
		Currency:          strings.TrimSpace(v.GetString("currency")),
		CategoriesFile:    strings.TrimSpace(v.GetString("categories_file")),
		Admins:            normalizeNames(v.GetStringSlice("admins")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "backoffice.db"
	}

	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return cfg, err
	}
	cfg.Location = loc

	if cfg.CountdownInterval <= 0 {
		return cfg, fmt.Errorf("countdown_interval must be positive")
	}
	if cfg.PrintTTL <= 0 {
		return cfg, fmt.Errorf("print_ttl must be positive")
	}
	if cfg.DigestTime != "" {
		if _, _, err := ParseClock(cfg.DigestTime); err != nil {
			return cfg, fmt.Errorf("digest_time: %w", err)
		}
	}

	return cfg, nil
}

// RequireTelegram fails when the bot token is missing.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("BACKOFFICE_TELEGRAM_TOKEN is required")
	}
	return nil
}

// IsAdminUsername reports whether the username is listed in admins.
func (c Config) IsAdminUsername(username string) bool {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	if name == "" {
		return false
	}
	for _, admin := range c.Admins {
		if admin == name {
			return true
		}
	}
	return false
}

// ParseClock parses an HH:MM string.
func ParseClock(value string) (int, int, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour, minute, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_url", "backoffice.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("timezone", "Local")
	v.SetDefault("countdown_interval", "60s")
	v.SetDefault("digest_time", "09:00")
	v.SetDefault("http_addr", "")
	v.SetDefault("public_url", "")
	v.SetDefault("print_ttl", "15m")
	v.SetDefault("lock_file", "backoffice.lock")
	v.SetDefault("currency", "UGX")
	v.SetDefault("categories_file", "")
	v.SetDefault("admins", []string{})
	// Bound explicitly so AutomaticEnv sees keys with no default.
	_ = v.BindEnv("telegram_token")
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", name, err)
	}
	return loc, nil
}

func normalizeNames(raw []string) []string {
	var out []string
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(part), "@"))
			if name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}
