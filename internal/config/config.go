package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"cooking-ops/internal/shared"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported LLM providers.
const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
)

// Config holds the configuration for the application.
type Config struct {
	LLMProvider  string
	GeminiAPIKey string
	GeminiModel  string
	GroqAPIKey   string
	GroqModel    string

	DatabasePath   string
	CatalogOwnerID string

	// Ghost Config (optional, used by ingest and clip)
	GhostURL        string
	GhostContentKey string
	GhostAdminKey   string

	// Telegram Config (optional, bot disabled without a token)
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64

	Port      string
	LogLevel  string
	LogFormat string

	// Planner defaults
	DefaultCooks             int
	DefaultStoves            int
	DefaultPlanDays          int
	DefaultServingsBreakfast int
	DefaultServingsLunch     int
	DefaultServingsSnack     int
}

// NewFromEnv creates a new Config object from environment variables.
// A .env file in the working directory is loaded first when present.
func NewFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("LLM_PROVIDER", ProviderGemini)
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-pro")
	v.SetDefault("GROQ_MODEL", "llama-3.3-70b-versatile")
	v.SetDefault("DATABASE_PATH", "data/cooking-ops.db")
	v.SetDefault("CATALOG_OWNER_ID", "default")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("DEFAULT_COOKS", 2)
	v.SetDefault("DEFAULT_STOVES", 4)
	v.SetDefault("DEFAULT_PLAN_DAYS", 7)
	v.SetDefault("DEFAULT_SERVINGS_BREAKFAST", 2)
	v.SetDefault("DEFAULT_SERVINGS_LUNCH", 4)
	v.SetDefault("DEFAULT_SERVINGS_SNACK", 2)

	provider := strings.ToLower(strings.TrimSpace(v.GetString("LLM_PROVIDER")))
	if provider != ProviderGemini && provider != ProviderGroq {
		return nil, fmt.Errorf("LLM_PROVIDER environment variable must be %q or %q, got %q", ProviderGemini, ProviderGroq, provider)
	}

	ghostContentKey := v.GetString("GHOST_CONTENT_API_KEY")
	ghostAdminKey := v.GetString("GHOST_ADMIN_API_KEY")

	allowed, err := parseIDList(v.GetString("TELEGRAM_ALLOWED_USER_IDS"))
	if err != nil {
		return nil, fmt.Errorf("TELEGRAM_ALLOWED_USER_IDS environment variable is invalid: %w", err)
	}

	var adminID int64
	if raw := v.GetString("ADMIN_TELEGRAM_ID"); raw != "" {
		adminID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_ID environment variable is invalid: %w", err)
		}
	}

	cfg := &Config{
		LLMProvider:            provider,
		GeminiAPIKey:           v.GetString("GEMINI_API_KEY"),
		GeminiModel:            v.GetString("GEMINI_MODEL"),
		GroqAPIKey:             v.GetString("GROQ_API_KEY"),
		GroqModel:              v.GetString("GROQ_MODEL"),
		DatabasePath:           v.GetString("DATABASE_PATH"),
		CatalogOwnerID:         v.GetString("CATALOG_OWNER_ID"),
		GhostURL:               strings.TrimRight(v.GetString("GHOST_API_URL"), "/"),
		GhostContentKey:        ghostContentKey,
		GhostAdminKey:          ghostAdminKey,
		TelegramBotToken:       v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL:     v.GetString("TELEGRAM_WEBHOOK_URL"),
		TelegramAllowedUserIDs: allowed,
		AdminTelegramID:        adminID,
		Port:                   v.GetString("PORT"),
		LogLevel:               v.GetString("LOG_LEVEL"),
		LogFormat:              v.GetString("LOG_FORMAT"),
	}

	bounded := []struct {
		key      string
		min, max int
		dst      *int
	}{
		{"DEFAULT_COOKS", 1, shared.MaxCooks, &cfg.DefaultCooks},
		{"DEFAULT_STOVES", 1, shared.MaxStoves, &cfg.DefaultStoves},
		{"DEFAULT_PLAN_DAYS", 1, shared.MaxPlanDays, &cfg.DefaultPlanDays},
		{"DEFAULT_SERVINGS_BREAKFAST", 0, shared.MaxServings, &cfg.DefaultServingsBreakfast},
		{"DEFAULT_SERVINGS_LUNCH", 0, shared.MaxServings, &cfg.DefaultServingsLunch},
		{"DEFAULT_SERVINGS_SNACK", 0, shared.MaxServings, &cfg.DefaultServingsSnack},
	}
	for _, b := range bounded {
		n, err := strconv.Atoi(v.GetString(b.key))
		if err != nil || n < b.min || n > b.max {
			return nil, fmt.Errorf("%s environment variable must be an integer between %d and %d", b.key, b.min, b.max)
		}
		*b.dst = n
	}

	return cfg, nil
}

// OptimizationAvailable reports whether the selected LLM provider has a credential.
func (c *Config) OptimizationAvailable() bool {
	switch c.LLMProvider {
	case ProviderGroq:
		return c.GroqAPIKey != ""
	default:
		return c.GeminiAPIKey != ""
	}
}

// GhostEnabled reports whether recipe ingestion from Ghost is configured.
func (c *Config) GhostEnabled() bool {
	return c.GhostURL != "" && c.GhostContentKey != ""
}

func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
