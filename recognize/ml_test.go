package recognize

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/submersibletoaster/captcha"
	"github.com/submersibletoaster/captcha/failure"
	"github.com/submersibletoaster/captcha/glyph"
	"github.com/submersibletoaster/captcha/learn"
)

// templateModel is a 1-NN model over the rendered alphabet.
func templateModel(t *testing.T, g *captcha.Generator) *learn.Model {
	t.Helper()
	set := BuildTemplates(g.Renderer())
	knn := &learn.KNN{K: 1}
	for _, r := range set.Runes() {
		tmpl, _ := set.Get(r)
		knn.X = append(knn.X, learn.Extract(tmpl.Image))
		knn.Y = append(knn.Y, glyph.Index(r))
	}
	return &learn.Model{Kind: learn.KindKNN, Dim: learn.Dim, KNN: knn}
}

func TestMLNotLoaded(t *testing.T) {
	r := NewML(nil)
	_, err := r.Recognize(whitePage(50, 50))
	assert.True(t, failure.Is(err, failure.ModelNotLoaded))
	_, _, err = r.PredictChar(whitePage(20, 30))
	assert.True(t, failure.Is(err, failure.ModelNotLoaded))
}

func TestMLRecognizesSimple(t *testing.T) {
	g := newGenerator(t, 21)
	r := NewML(templateModel(t, g))
	c, err := g.GenerateText(captcha.Simple, "M4XR")
	require.NoError(t, err)
	got, err := r.Recognize(c.Image)
	require.NoError(t, err)
	assert.Equal(t, "M4XR", got)

	blank, err := r.Recognize(whitePage(200, 80))
	require.NoError(t, err)
	assert.Empty(t, blank)
}

func TestMLMinConfidence(t *testing.T) {
	g := newGenerator(t, 22)
	m := templateModel(t, g)
	m.KNN.K = 3
	r := NewML(m)
	r.MinConfidence = 0.99
	c, err := g.GenerateText(captcha.Simple, "AB")
	require.NoError(t, err)
	got, err := r.Recognize(c.Image)
	require.NoError(t, err)
	// with one sample per symbol the top vote share is at most 1/3
	assert.Equal(t, "??", got)
}

func TestMLSwapKeepsInFlightModel(t *testing.T) {
	g := newGenerator(t, 23)
	first := templateModel(t, g)
	r := NewML(first)

	held := r.Model()
	second := &learn.Model{Kind: learn.KindKNN, Dim: learn.Dim, KNN: &learn.KNN{K: 1}}
	prev := r.Swap(second)
	assert.Same(t, first, prev)
	assert.Same(t, second, r.Model())

	// the reference taken before the swap still predicts as before
	c, err := g.GenerateText(captcha.Simple, "Q")
	require.NoError(t, err)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			label, _ := held.Predict(learn.Extract(c.Image))
			assert.GreaterOrEqual(t, label, 0)
		}()
	}
	wg.Wait()
}

func TestMLLoad(t *testing.T) {
	g := newGenerator(t, 24)
	m := templateModel(t, g)
	path := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, learn.SaveModel(path, m))

	r := NewML(nil)
	require.NoError(t, r.Load(path))
	require.NotNil(t, r.Model())

	err := r.Load(filepath.Join(t.TempDir(), "missing.gob"))
	assert.True(t, failure.Is(err, failure.ResourceMissing))
	assert.NotNil(t, r.Model(), "failed load keeps the current model")

	c, err := g.GenerateText(captcha.Simple, "Z9")
	require.NoError(t, err)
	got, err := r.Recognize(c.Image)
	require.NoError(t, err)
	assert.Equal(t, "Z9", got)
}
