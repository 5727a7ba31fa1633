package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "")
		t.Setenv("GEMINI_API_KEY", "")

		cfg, err := NewFromEnv()
		require.NoError(t, err)

		assert.Equal(t, ProviderGemini, cfg.LLMProvider)
		assert.Equal(t, 2, cfg.DefaultCooks)
		assert.Equal(t, 4, cfg.DefaultStoves)
		assert.Equal(t, 7, cfg.DefaultPlanDays)
		assert.Equal(t, 2, cfg.DefaultServingsBreakfast)
		assert.Equal(t, 4, cfg.DefaultServingsLunch)
		assert.Equal(t, 2, cfg.DefaultServingsSnack)
		assert.False(t, cfg.OptimizationAvailable())
	})

	t.Run("GeminiKey", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "gemini")
		t.Setenv("GEMINI_API_KEY", "gemini_key")

		cfg, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "gemini_key", cfg.GeminiAPIKey)
		assert.True(t, cfg.OptimizationAvailable())
	})

	t.Run("GroqProviderNeedsGroqKey", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "GROQ")
		t.Setenv("GEMINI_API_KEY", "gemini_key")
		t.Setenv("GROQ_API_KEY", "")

		cfg, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, ProviderGroq, cfg.LLMProvider)
		assert.False(t, cfg.OptimizationAvailable())
	})

	t.Run("InvalidProvider", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "openai")

		_, err := NewFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "LLM_PROVIDER environment variable")
	})

	t.Run("AllowedUserIDs", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "")
		t.Setenv("TELEGRAM_ALLOWED_USER_IDS", "12, 34,,56")

		cfg, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, []int64{12, 34, 56}, cfg.TelegramAllowedUserIDs)
	})

	t.Run("InvalidAllowedUserIDs", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "")
		t.Setenv("TELEGRAM_ALLOWED_USER_IDS", "12,abc")

		_, err := NewFromEnv()
		require.Error(t, err)
	})

	t.Run("NonPositiveCooks", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "")
		t.Setenv("DEFAULT_COOKS", "0")

		_, err := NewFromEnv()
		require.EqualError(t, err, "DEFAULT_COOKS environment variable must be an integer between 1 and 8")
	})

	t.Run("PlanDaysAboveLimit", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "")
		t.Setenv("DEFAULT_PLAN_DAYS", "100000")

		_, err := NewFromEnv()
		require.EqualError(t, err, "DEFAULT_PLAN_DAYS environment variable must be an integer between 1 and 14")
	})

	t.Run("NegativeServings", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "")
		t.Setenv("DEFAULT_SERVINGS_SNACK", "-1")

		_, err := NewFromEnv()
		require.Error(t, err)
	})

	t.Run("GhostEnabled", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "")
		t.Setenv("GHOST_API_URL", "http://ghost.test/")
		t.Setenv("GHOST_CONTENT_API_KEY", "ghost_key")

		cfg, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "http://ghost.test", cfg.GhostURL)
		assert.True(t, cfg.GhostEnabled())
	})
}
