package ml

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var ErrInvalidConfig = errors.New("ml: invalid training config")

type TrainingConfig struct {
	LearningRate float64 // alpha
	Lambda       float64 // L2 strength, bias row excluded
	MaxIter      int
	StopLoss     float64 // Stop once every class loss is below this
	VerboseEvery int     // How often to log progress (in iterations), 0 = never

	// Optimizer Selection
	Optimizer OptimizerType

	// Optimizer Hyperparameters (Zero values will use defaults)
	MomentumMu float64 // For Momentum (usually 0.9)
	AdamBeta1  float64 // For Adam (usually 0.9)
	AdamBeta2  float64 // For Adam (usually 0.999)
	AdamEps    float64 // For Adam (usually 1e-8)
}

func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		LearningRate: 0.1,
		Lambda:       1.0,
		MaxIter:      1000,
		StopLoss:     0.1,
		Optimizer:    OptSGD,
	}
}

func validateConfig(cfg TrainingConfig) error {
	switch cfg.Optimizer {
	case "", OptSGD, OptMomentum, OptAdam:
	default:
		return fmt.Errorf("%w: unknown optimizer %q", ErrInvalidConfig, cfg.Optimizer)
	}
	if cfg.MaxIter < 0 {
		return fmt.Errorf("%w: MaxIter %d", ErrInvalidConfig, cfg.MaxIter)
	}
	if cfg.Lambda < 0 {
		return fmt.Errorf("%w: Lambda %g", ErrInvalidConfig, cfg.Lambda)
	}
	return nil
}

// Train fits weights of shape cols(X) x cols(Y), starting from zero. It
// returns after MaxIter updates or as soon as every class loss drops below
// StopLoss; the caller is not told which.
func (r *Regressor) Train(X, Y *Matrix) *Matrix {
	cfg := r.cfg

	// 1. Setup & Allocation
	W := NewMatrix(X.cols, Y.cols)
	optimizer := NewOptimizer(cfg)
	xt := mat.DenseCopyOf(X.dense.T())

	// 2. Gradient Descent Loop
	start := time.Now()
	for iter := 1; iter <= cfg.MaxIter; iter++ {
		J, dJ := r.cost(W, X, xt, Y)

		if allBelow(J.data, cfg.StopLoss) {
			log.Debug().Int("iter", iter).Float64("loss", floats.Max(J.data)).Msg("loss below threshold, stopping")
			return W
		}

		optimizer.Update(W, dJ)

		// Logging
		if cfg.VerboseEvery > 0 && (iter%cfg.VerboseEvery == 0 || iter == 1) {
			log.Info().Msgf("Iter %d | Loss: %.4f | Time: %v", iter, floats.Sum(J.data)/float64(len(J.data)), time.Since(start))
		}
	}

	log.Debug().Int("iters", cfg.MaxIter).Msg("iteration cap reached")
	return W
}

// allBelow reports whether every entry is strictly below limit. NaN never is.
func allBelow(v []float64, limit float64) bool {
	for _, x := range v {
		if !(x < limit) {
			return false
		}
	}
	return true
}
