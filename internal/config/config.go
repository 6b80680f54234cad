package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/locationprivacy/backend/internal/service"
)

// Config holds process configuration read from the environment
type Config struct {
	DatabaseURL string
	Port        string
	Env         string
	LogLevel    string
	LogFormat   string

	RandomSeed     int64
	MaxUsers       int
	ScoringWorkers int

	NightStartHour         int
	NightEndHour           int
	WorkStartHour          int
	WorkEndHour            int
	HomeEpsMeters          float64
	WorkEpsMeters          float64
	ClusterMinPoints       int
	UtilityReferenceMeters float64
}

// Load reads .env when present, then the environment
func Load(logger *logrus.Logger) *Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using system environment")
	}

	e := envReader{logger: logger}
	return &Config{
		DatabaseURL: e.str("DATABASE_URL", ""),
		Port:        e.str("PORT", "8080"),
		Env:         e.str("GO_ENV", "development"),
		LogLevel:    e.str("LOG_LEVEL", "info"),
		LogFormat:   e.str("LOG_FORMAT", "text"),

		RandomSeed:     e.int64("RANDOM_SEED", 0),
		MaxUsers:       e.int("MAX_USERS", 500),
		ScoringWorkers: e.int("SCORING_WORKERS", 0),

		NightStartHour:         e.hour("NIGHT_START_HOUR", 22),
		NightEndHour:           e.hour("NIGHT_END_HOUR", 7),
		WorkStartHour:          e.hour("WORK_START_HOUR", 9),
		WorkEndHour:            e.hour("WORK_END_HOUR", 17),
		HomeEpsMeters:          e.float("HOME_EPS_METERS", 150),
		WorkEpsMeters:          e.float("WORK_EPS_METERS", 200),
		ClusterMinPoints:       e.int("CLUSTER_MIN_POINTS", 3),
		UtilityReferenceMeters: e.float("UTILITY_REFERENCE_METERS", service.DefaultUtilityReferenceMeters),
	}
}

// InferenceConfig applies the environment overrides to the inference defaults
func (c *Config) InferenceConfig() service.InferenceConfig {
	cfg := service.DefaultInferenceConfig()
	cfg.NightWindow.StartHour = c.NightStartHour
	cfg.NightWindow.EndHour = c.NightEndHour
	cfg.WorkWindow.StartHour = c.WorkStartHour
	cfg.WorkWindow.EndHour = c.WorkEndHour
	if c.HomeEpsMeters > 0 {
		cfg.HomeEpsMeters = c.HomeEpsMeters
	}
	if c.WorkEpsMeters > 0 {
		cfg.WorkEpsMeters = c.WorkEpsMeters
	}
	if c.ClusterMinPoints > 0 {
		cfg.MinPoints = c.ClusterMinPoints
	}
	return cfg
}

// SynthesizerConfig applies the environment overrides to the generation defaults
func (c *Config) SynthesizerConfig() service.SynthesizerConfig {
	cfg := service.DefaultSynthesizerConfig()
	if c.MaxUsers > 0 {
		cfg.UserLimit = c.MaxUsers
	}
	return cfg
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("value", c.LogLevel).Warn("Unknown LOG_LEVEL, using info")
	}
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

type envReader struct {
	logger *logrus.Logger
}

func (e envReader) str(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (e envReader) int(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.invalid(key, raw)
		return defaultValue
	}
	return v
}

func (e envReader) int64(key string, defaultValue int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		e.invalid(key, raw)
		return defaultValue
	}
	return v
}

func (e envReader) float(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		e.invalid(key, raw)
		return defaultValue
	}
	return v
}

func (e envReader) hour(key string, defaultValue int) int {
	v := e.int(key, defaultValue)
	if v < 0 || v > 23 {
		e.invalid(key, strconv.Itoa(v))
		return defaultValue
	}
	return v
}

func (e envReader) invalid(key, raw string) {
	e.logger.WithFields(logrus.Fields{"key": key, "value": raw}).Warn("Ignoring invalid environment value")
}
