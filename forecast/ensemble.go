package forecast

import (
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

const (
	// RandomSeed fixes every stochastic step of training so repeated runs
	// over the same corpus produce identical artifacts.
	RandomSeed = 42

	forestTrees           = 100
	forestMaxDepth        = 10
	forestMinSamplesSplit = 5

	boostRounds       = 100
	boostMaxDepth     = 6
	boostLearningRate = 0.1
)

// RandomForest is a bagged ensemble of regression trees, each fit on a
// bootstrap resample of the training rows.
type RandomForest struct {
	Seed  int64             `json:"seed"`
	Trees []*RegressionTree `json:"trees"`
}

func FitRandomForest(X [][]float64, y []float64, seed int64) *RandomForest {
	rng := rand.New(rand.NewSource(seed))
	n := len(y)
	cfg := treeConfig{maxDepth: forestMaxDepth, minSamplesSplit: forestMinSamplesSplit}

	f := &RandomForest{Seed: seed, Trees: make([]*RegressionTree, 0, forestTrees)}
	sample := make([]int, n)
	for t := 0; t < forestTrees; t++ {
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		f.Trees = append(f.Trees, buildRegressionTree(X, y, sample, cfg))
	}
	return f
}

func (f *RandomForest) Predict(x []float64) float64 {
	preds := make([]float64, len(f.Trees))
	for i, t := range f.Trees {
		preds[i] = t.Predict(x)
	}
	return stat.Mean(preds, nil)
}

// GradientBoost is a sequential ensemble: each tree fits the residual of
// the running prediction and contributes scaled by the learning rate.
type GradientBoost struct {
	BasePrediction float64           `json:"base_prediction"`
	LearningRate   float64           `json:"learning_rate"`
	Trees          []*RegressionTree `json:"trees"`
}

func FitGradientBoost(X [][]float64, y []float64) *GradientBoost {
	n := len(y)
	base := stat.Mean(y, nil)
	cfg := treeConfig{maxDepth: boostMaxDepth, minSamplesSplit: 2}

	gb := &GradientBoost{
		BasePrediction: base,
		LearningRate:   boostLearningRate,
		Trees:          make([]*RegressionTree, 0, boostRounds),
	}

	all := make([]int, n)
	pred := make([]float64, n)
	residual := make([]float64, n)
	for i := range all {
		all[i] = i
		pred[i] = base
	}

	for m := 0; m < boostRounds; m++ {
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}
		tree := buildRegressionTree(X, residual, all, cfg)
		gb.Trees = append(gb.Trees, tree)
		for i := range pred {
			pred[i] += gb.LearningRate * tree.Predict(X[i])
		}
	}
	return gb
}

func (gb *GradientBoost) Predict(x []float64) float64 {
	out := gb.BasePrediction
	for _, t := range gb.Trees {
		out += gb.LearningRate * t.Predict(x)
	}
	return out
}
