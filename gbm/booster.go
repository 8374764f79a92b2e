// Package gbm implements a gradient boosted tree classifier for binary
// targets, using logistic loss and histogram based split finding.
package gbm

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
)

// ErrNotFitted is returned when predicting with a booster that has no trees.
var ErrNotFitted = errors.New("booster is not fitted")

// Node is a tree node. Leaves have Feature == -1. Internal nodes send a row
// left when its feature value is below Threshold.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v,omitempty"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t Tree) leaf(r Row, binaryWidth int) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if r.value(n.Feature, binaryWidth) < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Booster is an additive ensemble of regression trees over the log-odds.
type Booster struct {
	Config      Config  `json:"config"`
	BinaryWidth int     `json:"binary_width"`
	DenseWidth  int     `json:"dense_width"`
	BaseMargin  float64 `json:"base_margin"`
	Trees       []Tree  `json:"trees"`
}

func New(cfg Config) *Booster {
	return &Booster{Config: cfg}
}

func (b *Booster) Fitted() bool {
	return len(b.Trees) > 0
}

// Validate checks that a decoded booster can be evaluated: every split
// addresses a feature inside the layout and every child index points to a
// later node of the same tree.
func (b *Booster) Validate() error {
	if !b.Fitted() {
		return ErrNotFitted
	}
	if b.BinaryWidth < 0 || b.DenseWidth < 0 {
		return fmt.Errorf("negative layout widths %d/%d", b.BinaryWidth, b.DenseWidth)
	}
	width := b.BinaryWidth + b.DenseWidth
	for ti, t := range b.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d: no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature < 0 {
				continue
			}
			if n.Feature >= width {
				return fmt.Errorf("tree %d node %d: feature %d out of range [0, %d)", ti, ni, n.Feature, width)
			}
			for _, child := range []int{n.Left, n.Right} {
				if child <= ni || child >= len(t.Nodes) {
					return fmt.Errorf("tree %d node %d: child %d out of range (%d, %d)", ti, ni, child, ni, len(t.Nodes))
				}
			}
		}
	}
	return nil
}

// Fit trains the ensemble on m against binary targets y. log receives
// per-round training loss when Config.Verbose is set; it may be nil.
func (b *Booster) Fit(m Matrix, y []int, log *zap.Logger) error {
	if err := b.Config.Validate(); err != nil {
		return err
	}
	if len(m.Rows) == 0 {
		return errors.New("cannot fit on an empty matrix")
	}
	if len(m.Rows) != len(y) {
		return fmt.Errorf("got %d rows but %d targets", len(m.Rows), len(y))
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return fmt.Errorf("target %d must be 0 or 1, got %d", i, v)
		}
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if log == nil {
		log = zap.NewNop()
	}

	b.BinaryWidth = m.BinaryWidth
	b.DenseWidth = m.DenseWidth
	b.BaseMargin = math.Log(b.Config.BaseScore / (1 - b.Config.BaseScore))
	b.Trees = make([]Tree, 0, b.Config.NEstimators)

	g := &grower{
		cfg:  b.Config,
		m:    m,
		cuts: buildCuts(m, b.Config.MaxBin),
		grad: make([]float64, len(y)),
		hess: make([]float64, len(y)),
	}
	g.bins = assignBins(m, g.cuts)

	margin := make([]float64, len(y))
	for i := range margin {
		margin[i] = b.BaseMargin
	}
	rows := make([]int, len(y))

	for round := 0; round < b.Config.NEstimators; round++ {
		for i := range y {
			p := sigmoid(margin[i])
			g.grad[i] = p - float64(y[i])
			g.hess[i] = math.Max(p*(1-p), 1e-16)
			rows[i] = i
		}

		tree := g.grow(rows)
		for i, r := range m.Rows {
			margin[i] += tree.leaf(r, m.BinaryWidth)
		}
		b.Trees = append(b.Trees, tree)

		if b.Config.Verbose {
			log.Info("boosting round",
				zap.Int("round", round),
				zap.Int("nodes", len(tree.Nodes)),
				zap.Float64("train_logloss", logLoss(margin, y)))
		}
	}
	return nil
}

// Margin returns the raw log-odds for r.
func (b *Booster) Margin(r Row) (float64, error) {
	if !b.Fitted() {
		return 0, ErrNotFitted
	}
	if err := checkRow(r, b.BinaryWidth, b.DenseWidth); err != nil {
		return 0, err
	}
	sum := b.BaseMargin
	for _, t := range b.Trees {
		sum += t.leaf(r, b.BinaryWidth)
	}
	return sum, nil
}

// PredictProba returns the probability of the positive class.
func (b *Booster) PredictProba(r Row) (float64, error) {
	m, err := b.Margin(r)
	if err != nil {
		return 0, err
	}
	return sigmoid(m), nil
}

// Predict returns 1 when the positive class probability exceeds 0.5.
func (b *Booster) Predict(r Row) (int, error) {
	p, err := b.PredictProba(r)
	if err != nil {
		return 0, err
	}
	if p > 0.5 {
		return 1, nil
	}
	return 0, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func logLoss(margin []float64, y []int) float64 {
	const eps = 1e-15
	var sum float64
	for i, m := range margin {
		p := math.Min(math.Max(sigmoid(m), eps), 1-eps)
		if y[i] == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(len(margin))
}

// buildCuts picks split thresholds for every dense feature from the
// distinct training values, at most maxBin-1 of them.
func buildCuts(m Matrix, maxBin int) [][]float64 {
	cuts := make([][]float64, m.DenseWidth)
	values := make([]float64, len(m.Rows))
	for f := 0; f < m.DenseWidth; f++ {
		for i, r := range m.Rows {
			values[i] = r.Dense[f]
		}
		sort.Float64s(values)

		var distinct []float64
		for i, v := range values {
			if math.IsNaN(v) {
				continue
			}
			if i == 0 || len(distinct) == 0 || v != distinct[len(distinct)-1] {
				distinct = append(distinct, v)
			}
		}
		if len(distinct) < 2 {
			continue
		}

		candidates := distinct[1:]
		if len(candidates) <= maxBin-1 {
			cuts[f] = append([]float64(nil), candidates...)
			continue
		}
		picked := make([]float64, 0, maxBin-1)
		for k := 0; k < maxBin-1; k++ {
			v := candidates[k*len(candidates)/(maxBin-1)]
			if len(picked) == 0 || v != picked[len(picked)-1] {
				picked = append(picked, v)
			}
		}
		cuts[f] = picked
	}
	return cuts
}

// binOf returns the number of cuts that are <= v, so v < cuts[c] exactly
// when binOf(v) <= c.
func binOf(cuts []float64, v float64) int {
	return sort.Search(len(cuts), func(i int) bool { return cuts[i] > v })
}

func assignBins(m Matrix, cuts [][]float64) [][]uint16 {
	bins := make([][]uint16, len(m.Rows))
	for i, r := range m.Rows {
		rb := make([]uint16, m.DenseWidth)
		for f, v := range r.Dense {
			rb[f] = uint16(binOf(cuts[f], v))
		}
		bins[i] = rb
	}
	return bins
}

type grower struct {
	cfg        Config
	m          Matrix
	cuts       [][]float64
	bins       [][]uint16
	grad, hess []float64
	nodes      []Node
}

type split struct {
	feature   int
	threshold float64
	cut       int // dense cut index, -1 for binary features
	gain      float64
}

func (g *grower) grow(rows []int) Tree {
	g.nodes = nil
	g.node(rows, 0)
	return Tree{Nodes: g.nodes}
}

func (g *grower) score(G, H float64) float64 {
	return G * G / (H + g.cfg.RegLambda)
}

func (g *grower) node(rows []int, depth int) int {
	idx := len(g.nodes)
	g.nodes = append(g.nodes, Node{Feature: -1})

	var G, H float64
	for _, r := range rows {
		G += g.grad[r]
		H += g.hess[r]
	}

	best, ok := g.bestSplit(rows, G, H, depth)
	if !ok {
		g.nodes[idx].Value = -G / (H + g.cfg.RegLambda) * g.cfg.LearningRate
		return idx
	}

	left := make([]int, 0, len(rows))
	right := make([]int, 0, len(rows))
	for _, r := range rows {
		if g.goesLeft(r, best) {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := g.node(left, depth+1)
	rgt := g.node(right, depth+1)
	g.nodes[idx] = Node{Feature: best.feature, Threshold: best.threshold, Left: l, Right: rgt}
	return idx
}

func (g *grower) goesLeft(r int, s split) bool {
	if s.cut < 0 {
		return g.m.Rows[r].value(s.feature, g.m.BinaryWidth) < s.threshold
	}
	return int(g.bins[r][s.feature-g.m.BinaryWidth]) <= s.cut
}

func (g *grower) bestSplit(rows []int, G, H float64, depth int) (split, bool) {
	if depth >= g.cfg.MaxDepth || len(rows) < 2 {
		return split{}, false
	}

	parent := g.score(G, H)
	best := split{gain: 0}
	found := false
	consider := func(GL, HL float64, s split) {
		GR, HR := G-GL, H-HL
		if HL < g.cfg.MinChildWeight || HR < g.cfg.MinChildWeight {
			return
		}
		s.gain = 0.5*(g.score(GL, HL)+g.score(GR, HR)-parent) - g.cfg.Gamma
		if s.gain > best.gain {
			best = s
			found = true
		}
	}

	// Binary features: the set rows go right.
	bw := g.m.BinaryWidth
	if bw > 0 {
		setG := make([]float64, bw)
		setH := make([]float64, bw)
		for _, r := range rows {
			for _, f := range g.m.Rows[r].Binary {
				setG[f] += g.grad[r]
				setH[f] += g.hess[r]
			}
		}
		for f := 0; f < bw; f++ {
			if setH[f] == 0 {
				continue
			}
			consider(G-setG[f], H-setH[f], split{feature: f, threshold: 0.5, cut: -1})
		}
	}

	// Dense features: cumulative histogram over bins.
	for f := 0; f < g.m.DenseWidth; f++ {
		cuts := g.cuts[f]
		if len(cuts) == 0 {
			continue
		}
		histG := make([]float64, len(cuts)+1)
		histH := make([]float64, len(cuts)+1)
		for _, r := range rows {
			b := g.bins[r][f]
			histG[b] += g.grad[r]
			histH[b] += g.hess[r]
		}
		var GL, HL float64
		for c := range cuts {
			GL += histG[c]
			HL += histH[c]
			consider(GL, HL, split{feature: bw + f, threshold: cuts[c], cut: c})
		}
	}
	return best, found
}
