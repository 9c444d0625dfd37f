package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/submersibletoaster/captcha/learn"
	"github.com/submersibletoaster/captcha/recognize"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 80, cfg.Height)
	assert.Equal(t, 40.0, cfg.FontSize)
	assert.True(t, cfg.EmbeddedFont)
	assert.Equal(t, learn.KindSVM, cfg.Kind())
	assert.Equal(t, recognize.Ensemble, cfg.Mode())

	opts := cfg.GeneratorOptions()
	assert.Equal(t, 200, opts.Width)
	assert.Equal(t, 40.0, opts.Font.Size)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("CAPTCHA_WIDTH", "320")
	t.Setenv("CAPTCHA_FONT_PATH", "/a.ttf"+string(os.PathListSeparator)+" /b.ttf ")
	t.Setenv("CAPTCHA_EMBEDDED_FONT", "false")
	t.Setenv("CAPTCHA_MODEL_KIND", "forest")
	t.Setenv("CAPTCHA_OCR_MODE", "fast")
	t.Setenv("CAPTCHA_HEIGHT", "tall")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 80, cfg.Height, "unparsable values fall back")
	assert.Equal(t, []string{"/a.ttf", "/b.ttf"}, cfg.FontPaths)
	assert.False(t, cfg.GeneratorOptions().Font.Embedded)
	assert.Equal(t, learn.KindForest, cfg.Kind())
	assert.Equal(t, recognize.Fast, cfg.Mode())
}

func TestValidateRejects(t *testing.T) {
	for key, value := range map[string]string{
		"CAPTCHA_WIDTH":      "2",
		"CAPTCHA_MODEL_KIND": "perceptron",
		"CAPTCHA_OCR_MODE":   "slow",
		"CAPTCHA_WORKERS":    "0",
		"CAPTCHA_LOG_LEVEL":  "chatty",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadConfig()
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CAPTCHA_SEED=77\n"), 0o644))
	t.Setenv("CAPTCHA_SEED", "")
	os.Unsetenv("CAPTCHA_SEED")

	LoadEnvFile(path)
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, int64(77), cfg.Seed)

	LoadEnvFile(filepath.Join(t.TempDir(), "absent.env"))
}
