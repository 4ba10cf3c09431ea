package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"debatehub/internal/debate"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Gemini struct {
		ApiKey   string `yaml:"apiKey"`
		Model    string `yaml:"model"`
		BotLevel string `yaml:"botLevel"`
	} `yaml:"gemini"`

	Database struct {
		URI string `yaml:"uri"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	JWT struct {
		Secret string `yaml:"secret"`
		Expiry int    `yaml:"expiry"` // minutes
	} `yaml:"jwt"`

	Debate struct {
		// PhaseSeconds overrides individual phase limits, keyed by phase name.
		PhaseSeconds      map[string]int `yaml:"phaseSeconds"`
		Countdown         time.Duration  `yaml:"countdown"`
		TimerSync         time.Duration  `yaml:"timerSync"`
		EvictionGrace     time.Duration  `yaml:"evictionGrace"`
		JudgeTimeout      time.Duration  `yaml:"judgeTimeout"`
		JudgePollInterval time.Duration  `yaml:"judgePollInterval"`
		StaleClaimAfter   time.Duration  `yaml:"staleClaimAfter"`
		// ResultRetention bounds how long the in-memory store keeps a room.
		ResultRetention   time.Duration  `yaml:"resultRetention"`
		MessagesPerSecond float64        `yaml:"messagesPerSecond"`
		MessageBurst      int            `yaml:"messageBurst"`
	} `yaml:"debate"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// LoadConfig reads the YAML file at path, loads .env if present, applies
// environment overrides and defaults, and validates the result. An empty
// path skips the file.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("GEMINI_API_KEY"); ok {
		c.Gemini.ApiKey = v
	}
	if v, ok := lookup("JWT_SECRET"); ok {
		c.JWT.Secret = v
	}
	if v, ok := lookup("MONGO_URI"); ok {
		c.Database.URI = v
	}
	if v, ok := lookup("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := lookup("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}

func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 1313
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	if c.Gemini.BotLevel == "" {
		c.Gemini.BotLevel = "medium"
	}
	if c.JWT.Expiry == 0 {
		c.JWT.Expiry = 1440
	}
	d := &c.Debate
	if d.Countdown == 0 {
		d.Countdown = debate.DefaultCountdown
	}
	if d.TimerSync == 0 {
		d.TimerSync = 5 * time.Second
	}
	if d.EvictionGrace == 0 {
		d.EvictionGrace = time.Minute
	}
	if d.JudgeTimeout == 0 {
		d.JudgeTimeout = 2 * time.Minute
	}
	if d.JudgePollInterval == 0 {
		d.JudgePollInterval = 2 * time.Second
	}
	if d.StaleClaimAfter == 0 {
		d.StaleClaimAfter = 5 * time.Minute
	}
	if d.ResultRetention == 0 {
		d.ResultRetention = time.Hour
	}
	if d.MessagesPerSecond == 0 {
		d.MessagesPerSecond = 20
	}
	if d.MessageBurst == 0 {
		d.MessageBurst = 40
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required (or JWT_SECRET)"))
	}
	for name, secs := range c.Debate.PhaseSeconds {
		if p := debate.Phase(name); !p.Valid() || p == debate.PhaseSetup || p.IsTerminal() {
			errs = append(errs, fmt.Errorf("debate.phaseSeconds: %q is not a speaking phase", name))
		} else if secs <= 0 {
			errs = append(errs, fmt.Errorf("debate.phaseSeconds.%s must be positive", name))
		}
	}
	if c.Debate.JudgePollInterval >= c.Debate.JudgeTimeout {
		errs = append(errs, errors.New("debate.judgePollInterval must be shorter than debate.judgeTimeout"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}
	return errors.Join(errs...)
}

// Durations returns the phase table with configured overrides applied.
func (c *Config) Durations() debate.Durations {
	d := debate.DefaultDurations()
	for name, secs := range c.Debate.PhaseSeconds {
		d[debate.Phase(name)] = time.Duration(secs) * time.Second
	}
	return d
}
