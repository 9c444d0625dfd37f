package recognize

import (
	"image"
	"strings"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/submersibletoaster/captcha/examine"
	"github.com/submersibletoaster/captcha/failure"
	"github.com/submersibletoaster/captcha/glyph"
	"github.com/submersibletoaster/captcha/learn"
)

// ML classifies segmented characters with a trained model. The model is
// held behind an atomic pointer: Swap and Load replace it while
// predictions already running finish with the model they started with.
type ML struct {
	// MinConfidence, when positive, turns predictions with a lower
	// probability into glyph.Placeholder.
	MinConfidence float64
	Segment       examine.Options

	model atomic.Pointer[learn.Model]
}

// NewML wraps m, which may be nil until a model is loaded.
func NewML(m *learn.Model) *ML {
	r := &ML{Segment: examine.DefaultOptions()}
	if m != nil {
		r.model.Store(m)
	}
	return r
}

// Swap installs m and returns the model it replaced.
func (r *ML) Swap(m *learn.Model) *learn.Model {
	return r.model.Swap(m)
}

// Load reads a model from path and installs it. On error the current model
// stays in place.
func (r *ML) Load(path string) error {
	m, err := learn.LoadModel(path)
	if err != nil {
		return err
	}
	r.Swap(m)
	log.WithFields(log.Fields{"path": path, "kind": m.Kind}).Info("model loaded")
	return nil
}

func (r *ML) Model() *learn.Model {
	return r.model.Load()
}

// PredictChar classifies a single character crop.
func (r *ML) PredictChar(crop image.Image) (rune, float64, error) {
	m := r.model.Load()
	if m == nil {
		return glyph.Placeholder, 0, failure.NewModelNotLoaded()
	}
	return r.classify(m, crop)
}

func (r *ML) classify(m *learn.Model, crop image.Image) (rune, float64, error) {
	label, p := m.Predict(learn.Extract(crop))
	sym := glyph.Symbol(label)
	if r.MinConfidence > 0 && p < r.MinConfidence {
		sym = glyph.Placeholder
	}
	return sym, p, nil
}

// Recognize fails with MODEL_NOT_LOADED when no model is installed, which
// is distinct from an image with no characters, read as "".
func (r *ML) Recognize(img image.Image) (string, error) {
	m := r.model.Load()
	if m == nil {
		return "", failure.NewModelNotLoaded()
	}
	var b strings.Builder
	for _, seg := range examine.Characters(img, r.Segment) {
		sym, _, err := r.classify(m, seg.Image)
		if err != nil {
			return "", err
		}
		b.WriteRune(sym)
	}
	return b.String(), nil
}
