package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	OptSGD      OptimizerType = "sgd"
	OptMomentum OptimizerType = "momentum"
	OptAdam     OptimizerType = "adam"
)

// Default settings generally recommended for Adam
var DefaultAdamConfig = AdamConfig{
	Beta1:        0.9,
	Beta2:        0.999,
	Epsilon:      1e-8,
	LearningRate: 0.001,
}

type OptimizerType string
type AdamConfig struct {
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	LearningRate float64
}

type AdamOptimizer struct {
	cfg      AdamConfig
	m, v     *Matrix
	timeStep int // 't' in the Adam paper, tracks number of updates
}

type SGDOptimizer struct {
	LearningRate float64
}

type MomentumOptimizer struct {
	LearningRate float64
	Mu           float64 // Momentum Factor (usually 0.9)

	velocity *Matrix
}

// Optimizer applies one step to the weights in place given their gradient.
type Optimizer interface {
	Update(weights, grad *Matrix)
}

func NewOptimizer(cfg TrainingConfig) Optimizer {
	switch cfg.Optimizer {
	case OptAdam:
		// Set defaults if 0
		beta1 := cfg.AdamBeta1
		if beta1 == 0 {
			beta1 = DefaultAdamConfig.Beta1
		}
		beta2 := cfg.AdamBeta2
		if beta2 == 0 {
			beta2 = DefaultAdamConfig.Beta2
		}
		eps := cfg.AdamEps
		if eps == 0 {
			eps = DefaultAdamConfig.Epsilon
		}

		return &AdamOptimizer{cfg: AdamConfig{
			Beta1:        beta1,
			Beta2:        beta2,
			Epsilon:      eps,
			LearningRate: cfg.LearningRate,
		}}

	case OptMomentum:
		mu := cfg.MomentumMu
		if mu == 0 {
			mu = 0.9
		}
		return &MomentumOptimizer{LearningRate: cfg.LearningRate, Mu: mu}

	default:
		return &SGDOptimizer{LearningRate: cfg.LearningRate}
	}
}

// ------ SGD OPTIMIZER METHODS ------ //
// Update applies W = W - lr * grad.
func (opt *SGDOptimizer) Update(weights, grad *Matrix) {
	weights.AddScaled(-opt.LearningRate, grad)
}

// ------ MOMENTUM OPTIMIZER METHODS ------ //
func (opt *MomentumOptimizer) Update(weights, grad *Matrix) {
	if opt.velocity == nil {
		opt.velocity = NewMatrix(weights.rows, weights.cols)
	}

	// v = mu * v - lr * grad
	// w = w + v
	v := opt.velocity.data
	floats.Scale(opt.Mu, v)
	floats.AddScaled(v, -opt.LearningRate, grad.data)
	floats.Add(weights.data, v)
}

// ------ ADAM OPTIMIZER METHODS ------ //
func (opt *AdamOptimizer) Update(weights, grad *Matrix) {
	if opt.m == nil {
		opt.m = NewMatrix(weights.rows, weights.cols)
		opt.v = NewMatrix(weights.rows, weights.cols)
	}

	// 1. Increment Time Step
	opt.timeStep++
	t := float64(opt.timeStep)

	// 2. Pre-calculate Correction Factors
	correction1 := 1.0 - math.Pow(opt.cfg.Beta1, t)
	correction2 := 1.0 - math.Pow(opt.cfg.Beta2, t)

	beta1 := opt.cfg.Beta1
	beta2 := opt.cfg.Beta2
	eps := opt.cfg.Epsilon
	lr := opt.cfg.LearningRate

	params, m, v := weights.data, opt.m.data, opt.v.data
	for i := range params {
		g := grad.data[i]

		m[i] = beta1*m[i] + (1.0-beta1)*g
		v[i] = beta2*v[i] + (1.0-beta2)*(g*g)

		mHat := m[i] / correction1
		vHat := v[i] / correction2

		params[i] -= lr * mHat / (math.Sqrt(vHat) + eps)
	}
}
