package learn

import (
	"image"
	"math"
	"math/rand"
	"runtime"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/submersibletoaster/captcha/failure"
)

// Sample is one labelled feature vector. Label indexes glyph.Alphabet.
type Sample struct {
	Features []float64
	Label    int
}

// NewSample extracts the features of a character crop.
func NewSample(img image.Image, label int) Sample {
	return Sample{Features: Extract(img), Label: label}
}

// Options tunes Train. Zero fields take the DefaultOptions value.
type Options struct {
	Seed      int64
	TestShare float64

	K int // kNN neighbours

	Epochs int // SVM passes over the training set
	Lambda float64

	Trees   int // forest size
	Workers int

	// Progress, when set, is called as a model is fitted.
	Progress func(stage string, done, total int)
}

func DefaultOptions() Options {
	return Options{
		Seed:      42,
		TestShare: 0.2,
		K:         3,
		Epochs:    20,
		Lambda:    0.01,
		Trees:     100,
		Workers:   runtime.NumCPU(),
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Seed == 0 {
		o.Seed = def.Seed
	}
	if o.TestShare <= 0 || o.TestShare >= 1 {
		o.TestShare = def.TestShare
	}
	if o.K <= 0 {
		o.K = def.K
	}
	if o.Epochs <= 0 {
		o.Epochs = def.Epochs
	}
	if o.Lambda <= 0 {
		o.Lambda = def.Lambda
	}
	if o.Trees <= 0 {
		o.Trees = def.Trees
	}
	if o.Workers <= 0 {
		o.Workers = def.Workers
	}
	return o
}

// Train shuffles samples, holds out opts.TestShare of them, fits a model of
// the given kind on the rest and reports its accuracy on the held out part.
//
// An empty dataset fails with EMPTY_DATASET and a single sample with
// INSUFFICIENT_DATA; neither returns a model.
func Train(samples []Sample, kind Kind, opts Options) (*Model, float64, error) {
	opts = opts.withDefaults()
	if len(samples) == 0 {
		return nil, 0, failure.New(failure.EmptyDataset, "no training samples")
	}
	if len(samples) < 2 {
		return nil, 0, failure.New(failure.InsufficientData, "need at least 2 samples to split, have %d", len(samples))
	}
	dim := len(samples[0].Features)
	for i, s := range samples {
		if len(s.Features) != dim || dim == 0 {
			return nil, 0, failure.New(failure.InvalidArgument, "sample %d has %d features, want %d", i, len(s.Features), dim)
		}
	}

	shuffled := make([]Sample, len(samples))
	copy(shuffled, samples)
	rng := rand.New(rand.NewSource(opts.Seed))
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	nTest := int(math.Ceil(opts.TestShare * float64(len(shuffled))))
	nTest = min(max(nTest, 1), len(shuffled)-1)
	test, train := shuffled[:nTest], shuffled[nTest:]

	progress := func(stage string) func(done, total int) {
		if opts.Progress == nil {
			return nil
		}
		return func(done, total int) { opts.Progress(stage, done, total) }
	}

	m := &Model{Kind: kind, Dim: dim}
	switch kind {
	case KindKNN:
		m.KNN = fitKNN(train, opts.K)
		if p := progress("knn"); p != nil {
			p(1, 1)
		}
	case KindSVM:
		m.SVM = fitSVM(train, opts, progress("svm"))
	case KindForest:
		m.Forest = fitForest(train, opts, progress("forest"))
	default:
		return nil, 0, failure.New(failure.InvalidArgument, "unknown model kind %d", int(kind))
	}

	correct := 0
	for _, s := range test {
		if l, _ := m.Predict(s.Features); l == s.Label {
			correct++
		}
	}
	acc := float64(correct) / float64(len(test))
	log.WithFields(log.Fields{
		"kind":     kind,
		"train":    len(train),
		"test":     len(test),
		"accuracy": acc,
	}).Info("model trained")
	return m, acc, nil
}

func distinctLabels(samples []Sample) []int {
	seen := map[int]bool{}
	var out []int
	for _, s := range samples {
		if !seen[s.Label] {
			seen[s.Label] = true
			out = append(out, s.Label)
		}
	}
	sort.Ints(out)
	return out
}
