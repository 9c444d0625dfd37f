package learn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// SVM is a one-vs-rest linear support vector machine. Row c of W with bias
// B[c] scores class Labels[c].
type SVM struct {
	Labels []int
	W      [][]float64
	B      []float64
}

// fitSVM trains each binary machine with Pegasos stochastic sub-gradient
// steps on the hinge loss.
func fitSVM(samples []Sample, opts Options, progress func(done, total int)) *SVM {
	labels := distinctLabels(samples)
	dim := len(samples[0].Features)
	m := &SVM{Labels: labels, W: make([][]float64, len(labels)), B: make([]float64, len(labels))}
	steps := opts.Epochs * len(samples)

	for c, label := range labels {
		rng := rand.New(rand.NewSource(opts.Seed + int64(c)))
		w := make([]float64, dim)
		var b float64
		for t := 1; t <= steps; t++ {
			s := samples[rng.Intn(len(samples))]
			y := -1.0
			if s.Label == label {
				y = 1
			}
			eta := 1 / (opts.Lambda * float64(t))
			margin := y * (floats.Dot(w, s.Features) + b)
			// the bias is shrunk with w, as if it were a constant feature
			floats.Scale(1-eta*opts.Lambda, w)
			b *= 1 - eta*opts.Lambda
			if margin < 1 {
				floats.AddScaled(w, eta*y, s.Features)
				b += eta * y
			}
		}
		m.W[c], m.B[c] = w, b
		if progress != nil {
			progress(c+1, len(labels))
		}
	}
	return m
}

// Scores are the raw margins, one per entry of Labels.
func (m *SVM) Scores(x []float64) []float64 {
	out := make([]float64, len(m.W))
	for c, w := range m.W {
		out[c] = floats.Dot(w, x) + m.B[c]
	}
	return out
}

// Predict picks the highest margin. The probability is the softmax of the
// margins.
func (m *SVM) Predict(x []float64) (int, float64) {
	if len(m.W) == 0 {
		return -1, 0
	}
	p := softmax(m.Scores(x))
	i := floats.MaxIdx(p)
	return m.Labels[i], p[i]
}

func softmax(s []float64) []float64 {
	out := make([]float64, len(s))
	top := floats.Max(s)
	for i, v := range s {
		out[i] = math.Exp(v - top)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}
