package forecast

import (
	"math"
	"sort"
)

// treeNode is one node of a fitted regression tree. Nodes are stored in a
// flat slice with child links by index so the tree serializes as plain
// JSON.
type treeNode struct {
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value"`
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
}

type RegressionTree struct {
	Nodes []treeNode `json:"nodes"`
}

type treeConfig struct {
	maxDepth        int
	minSamplesSplit int
}

// buildRegressionTree fits a CART regression tree on the rows named by
// idx. idx may contain duplicates (bootstrap samples) and is not mutated.
func buildRegressionTree(X [][]float64, y []float64, idx []int, cfg treeConfig) *RegressionTree {
	t := &RegressionTree{}
	t.grow(X, y, idx, 0, cfg)
	return t
}

// grow appends the subtree covering idx and returns its node index.
func (t *RegressionTree) grow(X [][]float64, y []float64, idx []int, depth int, cfg treeConfig) int {
	nodeIdx := len(t.Nodes)
	t.Nodes = append(t.Nodes, treeNode{})

	if depth >= cfg.maxDepth || len(idx) < cfg.minSamplesSplit {
		t.Nodes[nodeIdx] = treeNode{Leaf: true, Value: meanAt(y, idx)}
		return nodeIdx
	}

	feature, threshold, ok := bestSplit(X, y, idx)
	if !ok {
		t.Nodes[nodeIdx] = treeNode{Leaf: true, Value: meanAt(y, idx)}
		return nodeIdx
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := t.grow(X, y, left, depth+1, cfg)
	r := t.grow(X, y, right, depth+1, cfg)
	t.Nodes[nodeIdx] = treeNode{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return nodeIdx
}

// bestSplit scans every feature for the threshold minimizing total squared
// error of the two children. Thresholds sit midway between adjacent
// distinct values; features are scanned in column order so ties resolve
// deterministically.
func bestSplit(X [][]float64, y []float64, idx []int) (int, float64, bool) {
	n := len(idx)
	if n < 2 {
		return 0, 0, false
	}

	var totalSum, totalSumSq float64
	for _, i := range idx {
		totalSum += y[i]
		totalSumSq += y[i] * y[i]
	}
	// No variance left to explain.
	if totalSumSq-totalSum*totalSum/float64(n) < 1e-12 {
		return 0, 0, false
	}

	bestSSE := math.Inf(1)
	bestFeature, bestThreshold := 0, 0.0
	found := false

	order := make([]int, n)
	for f := 0; f < len(X[idx[0]]); f++ {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool {
			return X[order[a]][f] < X[order[b]][f]
		})

		var sumL, sumSqL float64
		for i := 0; i < n-1; i++ {
			yi := y[order[i]]
			sumL += yi
			sumSqL += yi * yi
			if X[order[i]][f] == X[order[i+1]][f] {
				continue
			}
			nL := float64(i + 1)
			nR := float64(n - i - 1)
			sumR := totalSum - sumL
			sseL := sumSqL - sumL*sumL/nL
			sseR := (totalSumSq - sumSqL) - sumR*sumR/nR
			if sse := sseL + sseR; sse < bestSSE-1e-12 {
				bestSSE = sse
				bestFeature = f
				bestThreshold = (X[order[i]][f] + X[order[i+1]][f]) / 2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func (t *RegressionTree) Predict(x []float64) float64 {
	node := t.Nodes[0]
	for !node.Leaf {
		if x[node.Feature] <= node.Threshold {
			node = t.Nodes[node.Left]
		} else {
			node = t.Nodes[node.Right]
		}
	}
	return node.Value
}

func meanAt(y []float64, idx []int) float64 {
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}
