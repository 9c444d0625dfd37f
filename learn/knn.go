package learn

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// KNN is a k-nearest-neighbour classifier over Euclidean distance. It keeps
// the whole training set.
type KNN struct {
	K int
	X [][]float64
	Y []int
}

func fitKNN(samples []Sample, k int) *KNN {
	m := &KNN{K: k}
	for _, s := range samples {
		m.X = append(m.X, s.Features)
		m.Y = append(m.Y, s.Label)
	}
	return m
}

type neighbour struct {
	label int
	dist  float64
}

// Predict votes among the K closest samples. Ties go to the label whose
// voters are closer in total. The probability is the vote share.
func (m *KNN) Predict(x []float64) (int, float64) {
	if len(m.X) == 0 {
		return -1, 0
	}
	ns := make([]neighbour, len(m.X))
	for i, row := range m.X {
		ns[i] = neighbour{m.Y[i], floats.Distance(row, x, 2)}
	}
	sort.SliceStable(ns, func(i, j int) bool { return ns[i].dist < ns[j].dist })

	k := min(m.K, len(ns))
	votes := map[int]int{}
	total := map[int]float64{}
	for _, n := range ns[:k] {
		votes[n.label]++
		total[n.label] += n.dist
	}
	best, bestVotes := -1, 0
	for _, n := range ns[:k] {
		l := n.label
		v := votes[l]
		if v > bestVotes || (v == bestVotes && total[l] < total[best]) {
			best, bestVotes = l, v
		}
	}
	return best, float64(bestVotes) / float64(k)
}
