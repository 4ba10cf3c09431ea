package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"debatehub/internal/debate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 8080
  allowedOrigins: ["http://localhost:5173"]
gemini:
  apiKey: file-key
database:
  uri: mongodb://localhost:27017/debatehub
jwt:
  secret: file-secret
debate:
  countdown: 5s
  phaseSeconds:
    openingFor: 90
log:
  level: debug
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "file-key", cfg.Gemini.ApiKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 5*time.Second, cfg.Debate.Countdown)
	assert.Equal(t, 2*time.Minute, cfg.Debate.JudgeTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)

	durations := cfg.Durations()
	assert.Equal(t, 90*time.Second, durations.For(debate.PhaseOpeningFor))
	assert.Equal(t, debate.DefaultDurations()[debate.PhaseClosingAgainst], durations.For(debate.PhaseClosingAgainst))
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("MONGO_URI", "mongodb://db:27017/prod")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("PORT", "9000")

	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Gemini.ApiKey)
	assert.Equal(t, "env-secret", cfg.JWT.Secret)
	assert.Equal(t, "mongodb://db:27017/prod", cfg.Database.URI)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestInvalidPortEnv(t *testing.T) {
	t.Setenv("PORT", "eighty")
	_, err := LoadConfig(writeConfig(t, sampleYAML))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PORT")
}

func TestMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		var cfg Config
		cfg.JWT.Secret = "s"
		cfg.ApplyDefaults()
		return &cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing secret", func(c *Config) { c.JWT.Secret = "" }, "jwt.secret"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"unknown phase", func(c *Config) { c.Debate.PhaseSeconds = map[string]int{"rebuttal": 30} }, "rebuttal"},
		{"setup is not timed", func(c *Config) { c.Debate.PhaseSeconds = map[string]int{"setup": 30} }, "setup"},
		{"negative duration", func(c *Config) { c.Debate.PhaseSeconds = map[string]int{"closingFor": -1} }, "closingFor"},
		{"poll slower than timeout", func(c *Config) { c.Debate.JudgePollInterval = 5 * time.Minute }, "judgePollInterval"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
