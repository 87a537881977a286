package ml

import (
	"time"

	"github.com/b0tShaman/neuro-logreg/device"
	"gonum.org/v1/gonum/mat"
)

// Accuracy returns the percentage of rows whose arg-max column in predicted
// matches the arg-max column in target. Ties resolve to the first index.
func Accuracy(predicted, target *Matrix) float64 {
	if predicted.rows != target.rows || predicted.cols != target.cols {
		panic(mat.ErrShape)
	}
	if target.rows == 0 {
		return 0
	}
	hits := 0
	for i := 0; i < target.rows; i++ {
		if predicted.ArgMaxRow(i) == target.ArgMaxRow(i) {
			hits++
		}
	}
	return 100 * float64(hits) / float64(target.rows)
}

type BenchmarkResult struct {
	TrainTime   time.Duration
	PredictTime time.Duration // Mean over all prediction passes
}

// Benchmark times one full training run on trainX/trainY and the mean of
// iters prediction passes over testX.
func Benchmark(ctx *device.Context, r *Regressor, trainX, trainY, testX *Matrix, iters int) BenchmarkResult {
	var res BenchmarkResult
	var W *Matrix

	res.TrainTime = ctx.Time(func() {
		W = r.Train(trainX, trainY)
	})

	if iters < 1 {
		iters = 1
	}
	total := ctx.Time(func() {
		for i := 0; i < iters; i++ {
			r.Predict(testX, W)
		}
	})
	res.PredictTime = total / time.Duration(iters)

	return res
}
