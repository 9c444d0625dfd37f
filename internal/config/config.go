// Package config loads settings for the captcha commands from the
// environment, optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/submersibletoaster/captcha"
	"github.com/submersibletoaster/captcha/learn"
	"github.com/submersibletoaster/captcha/recognize"
)

// Config holds command configuration
type Config struct {
	// Canvas
	Width  int
	Height int

	// Fonts
	FontSize     float64
	FontPaths    []string
	EmbeddedFont bool

	// Seed for the generators; 0 seeds from the clock
	Seed int64

	// Recognition resources
	ModelPath   string
	ModelKind   string
	TemplateDir string
	DatasetDir  string

	// OCR
	TessLanguage string
	OCRMode      string

	Workers  int
	LogLevel string
}

// LoadEnvFile merges path into the environment without overriding
// variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) {
	if err := godotenv.Load(path); err != nil {
		log.Debugf("%s not loaded, using process environment: %v", path, err)
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Width:        getEnvAsIntOrDefault("CAPTCHA_WIDTH", 200),
		Height:       getEnvAsIntOrDefault("CAPTCHA_HEIGHT", 80),
		FontSize:     getEnvAsFloatOrDefault("CAPTCHA_FONT_SIZE", 40),
		FontPaths:    getEnvAsListOrDefault("CAPTCHA_FONT_PATH", nil),
		EmbeddedFont: getEnvAsBoolOrDefault("CAPTCHA_EMBEDDED_FONT", true),
		Seed:         int64(getEnvAsIntOrDefault("CAPTCHA_SEED", 0)),
		ModelPath:    getEnvOrDefault("CAPTCHA_MODEL_PATH", "captcha_model.gob"),
		ModelKind:    getEnvOrDefault("CAPTCHA_MODEL_KIND", "svm"),
		TemplateDir:  getEnvOrDefault("CAPTCHA_TEMPLATE_DIR", "templates"),
		DatasetDir:   getEnvOrDefault("CAPTCHA_DATASET_DIR", "dataset"),
		TessLanguage: getEnvOrDefault("CAPTCHA_TESS_LANGUAGE", "eng"),
		OCRMode:      getEnvOrDefault("CAPTCHA_OCR_MODE", "ensemble"),
		Workers:      getEnvAsIntOrDefault("CAPTCHA_WORKERS", 4),
		LogLevel:     getEnvOrDefault("CAPTCHA_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Width < 16 || c.Width > 4096 {
		return fmt.Errorf("CAPTCHA_WIDTH must be between 16 and 4096, got %d", c.Width)
	}
	if c.Height < 16 || c.Height > 4096 {
		return fmt.Errorf("CAPTCHA_HEIGHT must be between 16 and 4096, got %d", c.Height)
	}
	if c.FontSize < 4 || c.FontSize > 512 {
		return fmt.Errorf("CAPTCHA_FONT_SIZE must be between 4 and 512, got %g", c.FontSize)
	}
	if _, err := learn.ParseKind(c.ModelKind); err != nil {
		return fmt.Errorf("CAPTCHA_MODEL_KIND: %w", err)
	}
	if _, err := recognize.ParseOCRMode(c.OCRMode); err != nil {
		return fmt.Errorf("CAPTCHA_OCR_MODE: %w", err)
	}
	if c.Workers < 1 || c.Workers > 256 {
		return fmt.Errorf("CAPTCHA_WORKERS must be between 1 and 256, got %d", c.Workers)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("CAPTCHA_LOG_LEVEL: %w", err)
	}
	return nil
}

// GeneratorOptions maps the canvas and font settings onto generator options.
func (c *Config) GeneratorOptions() captcha.Options {
	opts := captcha.DefaultOptions()
	opts.Width, opts.Height = c.Width, c.Height
	opts.Font.Size = c.FontSize
	opts.Font.Paths = c.FontPaths
	opts.Font.Embedded = c.EmbeddedFont
	return opts
}

func (c *Config) Kind() learn.Kind {
	k, _ := learn.ParseKind(c.ModelKind)
	return k
}

func (c *Config) Mode() recognize.OCRMode {
	m, _ := recognize.ParseOCRMode(c.OCRMode)
	return m
}

// ApplyLogLevel sets the logrus level from LogLevel.
func (c *Config) ApplyLogLevel() {
	if lvl, err := log.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Warnf("%s=%q is not an integer, using %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Warnf("%s=%q is not a number, using %g", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Warnf("%s=%q is not a boolean, using %t", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsListOrDefault splits a colon separated list, like PATH.
func getEnvAsListOrDefault(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, p := range strings.Split(valueStr, string(os.PathListSeparator)) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
