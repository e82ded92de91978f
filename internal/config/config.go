package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultCategoryPattern matches everything outside letters, digits,
// underscore, whitespace, comma, parentheses and slash. \s alone is ASCII
// only, so \v and the Unicode space separators are listed too.
const DefaultCategoryPattern = `[^\p{L}\p{N}_\s\v\p{Z},()/]`

type Config struct {
	DBPath           string `validate:"required"`
	OutputDir        string `validate:"required"`
	WatchDir         string
	WatchIntervalSec int `validate:"gte=1"`

	IDColumn       string `validate:"required"`
	EmailColumn    string `validate:"required"`
	EmailDelimiter string `validate:"len=1"`
	EmailPrefix    string `validate:"required"`

	CategoryColumn         string `validate:"required"`
	CategoryDelimiter      string `validate:"len=1"`
	CategoryPrefix         string `validate:"required"`
	CategoryAllowedPattern string `validate:"required"`

	TrimTokens      bool
	KeepEmptyTokens bool

	WebsiteColumn     string `validate:"required"`
	CanonicalProtocol string `validate:"required"`
	RepairRules       string
	ExtensionStrategy string `validate:"oneof=heuristic publicsuffix"`

	CSVComma string `validate:"len=1"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json text"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:           getEnv("DB_PATH", filepath.Join(cwd, "data", "runs.db")),
		OutputDir:        getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		WatchDir:         getEnv("WATCH_DIR", filepath.Join(cwd, "data", "inbox")),
		WatchIntervalSec: getEnvInt("WATCH_INTERVAL_SEC", 60),

		IDColumn:       getEnv("ID_COLUMN", "ID"),
		EmailColumn:    getEnv("EMAIL_COLUMN", "email"),
		EmailDelimiter: getEnv("EMAIL_DELIMITER", ","),
		EmailPrefix:    getEnv("EMAIL_PREFIX", "email_"),

		CategoryColumn:         getEnv("CATEGORY_COLUMN", "category"),
		CategoryDelimiter:      getEnv("CATEGORY_DELIMITER", ","),
		CategoryPrefix:         getEnv("CATEGORY_PREFIX", "category"),
		CategoryAllowedPattern: getEnv("CATEGORY_ALLOWED_PATTERN", DefaultCategoryPattern),

		TrimTokens:      getEnvBool("TRIM_TOKENS", true),
		KeepEmptyTokens: getEnvBool("KEEP_EMPTY_TOKENS", false),

		WebsiteColumn:     getEnv("WEBSITE_COLUMN", "website"),
		CanonicalProtocol: getEnv("CANONICAL_PROTOCOL", "https://"),
		RepairRules:       getEnv("REPAIR_RULES", ""),
		ExtensionStrategy: strings.ToLower(getEnv("EXTENSION_STRATEGY", "heuristic")),

		CSVComma: getEnv("CSV_COMMA", ","),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	return cfg, nil
}

var validate = validator.New()

// Validate checks the loaded values before any service is built from them.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q", first.Field(), first.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
