package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("GEMINI_API_KEY", "gemini")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash-image-preview", cfg.GeminiModel)
	assert.Equal(t, "ImagePoster", cfg.SupabaseStorageBucket)
	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.CleanupOrphanedUploads)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, time.Hour, cfg.WorkspaceIdleTimeout)
	assert.Equal(t, "anon", cfg.DataKey())
	assert.True(t, cfg.ForwardsUserTokens())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CLEANUP_ORPHANED_UPLOADS", "true")
	t.Setenv("FETCH_TIMEOUT_SECONDS", "5")
	t.Setenv("HTTP_WRITE_TIMEOUT_SECONDS", "not-a-number")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service")
	t.Setenv("MAX_UPLOAD_BYTES", "2048")
	t.Setenv("WORKSPACE_IDLE_TIMEOUT_SECONDS", "-1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(2048), cfg.MaxUploadBytes)
	assert.Equal(t, time.Hour, cfg.WorkspaceIdleTimeout)
	assert.False(t, cfg.ForwardsUserTokens())

	assert.True(t, cfg.CleanupOrphanedUploads)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 120*time.Second, cfg.HTTPWriteTimeout)
	assert.Equal(t, "service", cfg.DataKey())
}

func TestLoad_PublishableKeyAlias(t *testing.T) {
	setRequired(t)
	t.Setenv("SUPABASE_ANON_KEY", "")
	t.Setenv("SUPABASE_PUBLISHABLE_KEY", "publishable")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "publishable", cfg.SupabaseAnonKey)
}

func TestLoad_MissingRequired(t *testing.T) {
	cases := []struct {
		name string
		key  string
	}{
		{name: "url", key: "SUPABASE_URL"},
		{name: "anon key", key: "SUPABASE_ANON_KEY"},
		{name: "gemini key", key: "GEMINI_API_KEY"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv("SUPABASE_PUBLISHABLE_KEY", "")
			t.Setenv("API_KEY", "")
			t.Setenv(tc.key, "")

			cfg, err := Load()
			require.Error(t, err)
			require.NotNil(t, cfg, "config is returned with the error")
			assert.True(t, IsConfigurationError(err))

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tc.key, cfgErr.Key)
			assert.Contains(t, cfgErr.Error(), "Configuration Error")
		})
	}
}

func TestValidate_PlaceholderCountsAsMissing(t *testing.T) {
	cfg := &Config{
		SupabaseURL:           "__SUPABASE_URL__",
		SupabaseAnonKey:       "anon",
		GeminiAPIKey:          "gemini",
		SupabaseStorageBucket: "ImagePoster",
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_URL")
}

func TestString_OmitsSecrets(t *testing.T) {
	cfg := &Config{
		GeminiAPIKey:       "gemini-secret",
		SupabaseAnonKey:    "anon-secret",
		SupabaseServiceKey: "service-secret",
		SupabaseJWTSecret:  "jwt-secret",
	}

	s := cfg.String()
	assert.NotContains(t, s, "secret")
	assert.Contains(t, s, "jwt_verify=true")
}
