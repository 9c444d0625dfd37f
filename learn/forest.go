package learn

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// Node is one entry of a flattened decision tree. Leaves have Feature -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Label     int
}

// Tree is a CART tree whose root is Nodes[0].
type Tree struct {
	Nodes []Node
}

func (t *Tree) predict(x []float64) int {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Label
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Forest is a bagged ensemble of Gini trees.
type Forest struct {
	Trees []Tree
}

const (
	maxDepth = 24
	minSplit = 2
)

// fitForest grows opts.Trees trees on a pool of opts.Workers goroutines.
// Tree i draws from its own source seeded with opts.Seed+i, so the result
// does not depend on scheduling.
func fitForest(samples []Sample, opts Options, progress func(done, total int)) *Forest {
	f := &Forest{Trees: make([]Tree, opts.Trees)}
	jobs := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0

	for w := 0; w < max(1, opts.Workers); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rng := rand.New(rand.NewSource(opts.Seed + int64(i)))
				f.Trees[i] = growTree(samples, rng)
				if progress != nil {
					mu.Lock()
					done++
					progress(done, opts.Trees)
					mu.Unlock()
				}
			}
		}()
	}
	for i := 0; i < opts.Trees; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return f
}

// Predict is a majority vote; the probability is the winning vote share.
func (f *Forest) Predict(x []float64) (int, float64) {
	if len(f.Trees) == 0 {
		return -1, 0
	}
	votes := map[int]int{}
	best, bestVotes := -1, 0
	for i := range f.Trees {
		l := f.Trees[i].predict(x)
		votes[l]++
		if votes[l] > bestVotes || (votes[l] == bestVotes && l < best) {
			best, bestVotes = l, votes[l]
		}
	}
	return best, float64(bestVotes) / float64(len(f.Trees))
}

type grower struct {
	samples []Sample
	rng     *rand.Rand
	mtry    int
	nodes   []Node
}

func growTree(samples []Sample, rng *rand.Rand) Tree {
	bag := make([]int, len(samples))
	for i := range bag {
		bag[i] = rng.Intn(len(samples))
	}
	dim := len(samples[0].Features)
	g := &grower{
		samples: samples,
		rng:     rng,
		mtry:    max(1, int(math.Sqrt(float64(dim)))),
	}
	g.grow(bag, 0)
	return Tree{Nodes: g.nodes}
}

// grow appends the subtree for idx and returns its node index.
func (g *grower) grow(idx []int, depth int) int {
	at := len(g.nodes)
	label, pure := g.majority(idx)
	g.nodes = append(g.nodes, Node{Feature: -1, Label: label})
	if pure || depth >= maxDepth || len(idx) < minSplit {
		return at
	}

	feature, threshold, ok := g.bestSplit(idx)
	if !ok {
		return at
	}
	var left, right []int
	for _, i := range idx {
		if g.samples[i].Features[feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.nodes[at] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r, Label: label}
	return at
}

func (g *grower) majority(idx []int) (int, bool) {
	counts := map[int]int{}
	best, bestN := -1, 0
	for _, i := range idx {
		l := g.samples[i].Label
		counts[l]++
		if counts[l] > bestN || (counts[l] == bestN && l < best) {
			best, bestN = l, counts[l]
		}
	}
	return best, len(counts) <= 1
}

// bestSplit scans mtry random features for the threshold with the lowest
// weighted Gini impurity.
func (g *grower) bestSplit(idx []int) (int, float64, bool) {
	dim := len(g.samples[0].Features)
	n := float64(len(idx))
	total := map[int]int{}
	for _, i := range idx {
		total[g.samples[i].Label]++
	}

	bestFeature, bestThreshold, bestGini := -1, 0.0, math.Inf(1)
	order := make([]int, len(idx))
	for _, feature := range g.rng.Perm(dim)[:g.mtry] {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool {
			return g.samples[order[a]].Features[feature] < g.samples[order[b]].Features[feature]
		})

		left := map[int]int{}
		for k := 0; k < len(order)-1; k++ {
			left[g.samples[order[k]].Label]++
			v, next := g.samples[order[k]].Features[feature], g.samples[order[k+1]].Features[feature]
			if v == next {
				continue
			}
			nl := float64(k + 1)
			nr := n - nl
			var sl, sr float64
			for label, c := range total {
				pl := float64(left[label]) / nl
				pr := float64(c-left[label]) / nr
				sl += pl * pl
				sr += pr * pr
			}
			gini := nl/n*(1-sl) + nr/n*(1-sr)
			if gini < bestGini {
				bestFeature, bestThreshold, bestGini = feature, (v+next)/2, gini
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}
