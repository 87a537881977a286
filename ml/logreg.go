package ml

import (
	"math"

	"github.com/b0tShaman/neuro-logreg/device"
	"gonum.org/v1/gonum/mat"
)

// Regressor is a one-vs-all logistic regression model: one sigmoid
// classifier per output column, trained jointly with batch gradient descent.
type Regressor struct {
	backend device.Backend
	cfg     TrainingConfig
}

func NewRegressor(backend device.Backend, cfg TrainingConfig) (*Regressor, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Regressor{backend: backend, cfg: cfg}, nil
}

func (r *Regressor) Config() TrainingConfig { return r.cfg }

// Predict returns sigmoid(X * W), one probability per sample and class.
// X is n x f and W is f x c; a shape mismatch panics.
func (r *Regressor) Predict(X, W *Matrix) *Matrix {
	H := NewMatrix(X.rows, W.cols)
	MatMul(r.backend, X.dense, W.dense, H)
	H.ApplySigmoid()
	return H
}

// Cost returns the regularized cross-entropy J (1 x classes) and its
// gradient dJ (same shape as W). Row 0 of W is the bias and is not
// regularized.
func (r *Regressor) Cost(W, X, Y *Matrix) (J, dJ *Matrix) {
	return r.cost(W, X, X.dense.T(), Y)
}

// cost takes the transpose of X separately so the training loop can build
// it once.
func (r *Regressor) cost(W, X *Matrix, xt mat.Matrix, Y *Matrix) (J, dJ *Matrix) {
	if Y.rows != X.rows || Y.cols != W.cols {
		panic(mat.ErrShape)
	}
	m := float64(Y.rows)
	lambda := r.cfg.Lambda

	// 1. Prediction
	H := r.Predict(X, W)

	// 2. Cross-entropy, summed down each class column
	J = NewMatrix(1, W.cols)
	for i := 0; i < H.rows; i++ {
		h, y := H.Row(i), Y.Row(i)
		for j := range h {
			J.data[j] += y[j]*math.Log(h[j]) + (1-y[j])*math.Log(1-h[j])
		}
	}
	for j := range J.data {
		J.data[j] = -J.data[j] / m
	}

	// 3. Penalty, skipping the bias row
	for i := 1; i < W.rows; i++ {
		w := W.Row(i)
		for j, v := range w {
			J.data[j] += 0.5 * lambda * v * v / m
		}
	}

	// 4. Gradient: (X^T (H - Y) + lambda * W_masked) / m
	H.Subtract(Y)
	dJ = NewMatrix(W.rows, W.cols)
	MatMul(r.backend, xt, H.dense, dJ)
	for i := 1; i < W.rows; i++ {
		g, w := dJ.Row(i), W.Row(i)
		for j := range g {
			g[j] += lambda * w[j]
		}
	}
	dJ.Scale(1 / m)

	return J, dJ
}
