// Package tesseract is a recognize.Engine backed by libtesseract.
package tesseract

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
	log "github.com/sirupsen/logrus"

	"github.com/submersibletoaster/captcha/failure"
)

const engineName = "tesseract"

// Engine runs each call on a fresh client, so one Engine may be used from
// several goroutines.
type Engine struct {
	Language  string
	newClient func() *gosseract.Client
}

// New checks that libtesseract has traineddata for language ("eng" when
// empty) and fails with ENGINE_UNAVAILABLE otherwise.
func New(language string) (*Engine, error) {
	if language == "" {
		language = "eng"
	}
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return nil, failure.NewEngineUnavailable(engineName, err)
	}
	found := false
	for _, l := range langs {
		if l == language {
			found = true
			break
		}
	}
	if !found {
		return nil, failure.NewEngineUnavailable(engineName,
			fmt.Errorf("language %q not installed, have %s", language, strings.Join(langs, ",")))
	}
	log.WithFields(log.Fields{
		"version":  gosseract.Version(),
		"language": language,
	}).Debug("tesseract ready")
	return &Engine{Language: language, newClient: gosseract.NewClient}, nil
}

// Recognize reads img with page segmentation mode psm, emitting only
// characters in whitelist when it is not empty.
func (e *Engine) Recognize(img image.Image, psm int, whitelist string) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode ocr input: %w", err)
	}

	c := e.newClient()
	defer c.Close()
	if err := c.SetLanguage(e.Language); err != nil {
		return "", failure.NewEngineFailure(engineName, err)
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(psm)); err != nil {
		return "", failure.NewEngineFailure(engineName, err)
	}
	if whitelist != "" {
		if err := c.SetWhitelist(whitelist); err != nil {
			return "", failure.NewEngineFailure(engineName, err)
		}
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", failure.NewEngineFailure(engineName, err)
	}
	text, err := c.Text()
	if err != nil {
		return "", failure.NewEngineFailure(engineName, err)
	}
	return strings.TrimSpace(text), nil
}
