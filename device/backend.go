package device

import (
	"sync"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

const blockSize = 64

// blasBackend hands the product to gonum, which dispatches to whatever
// blas64 implementation is registered.
type blasBackend struct{}

func (blasBackend) Name() string { return "blas" }

func (blasBackend) Mul(dst *mat.Dense, a, b mat.Matrix) {
	dst.Mul(a, b)
}

func (blasBackend) Synchronize() {}

// tiledBackend is a cache-blocked pure Go product. Row blocks of the output
// are independent, so each one runs on its own goroutine.
type tiledBackend struct {
	workers int
}

func newTiledBackend(workers int) *tiledBackend {
	if workers < 1 {
		workers = 1
	}
	return &tiledBackend{workers: workers}
}

func (t *tiledBackend) Name() string { return "tiled" }

// Synchronize is a no-op: Mul returns only after every row block is written.
func (t *tiledBackend) Synchronize() {}

func (t *tiledBackend) Mul(dst *mat.Dense, a, b mat.Matrix) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		panic(mat.ErrShape)
	}
	if dst.IsEmpty() {
		dst.ReuseAs(ar, bc)
	} else if r, c := dst.Dims(); r != ar || c != bc {
		panic(mat.ErrShape)
	}

	A := rawOf(a)
	B := rawOf(b)
	out := dst.RawMatrix()

	// 1. Reset output
	for i := 0; i < ar; i++ {
		row := out.Data[i*out.Stride : i*out.Stride+bc]
		for j := range row {
			row[j] = 0
		}
	}

	// 2. Dispatch row blocks, at most t.workers at a time
	sem := make(chan struct{}, t.workers)
	var wg sync.WaitGroup
	for i := 0; i < ar; i += blockSize {
		iMax := min(i+blockSize, ar)
		wg.Add(1)
		sem <- struct{}{}
		go func(i, iMax int) {
			defer wg.Done()
			defer func() { <-sem }()
			mulBlockRows(A, B, out, i, iMax, ac, bc)
		}(i, iMax)
	}
	wg.Wait()
}

func mulBlockRows(a, b, out blas64.General, iLo, iHi, inner, cols int) {
	for j := 0; j < cols; j += blockSize {
		jMax := min(j+blockSize, cols)
		for k := 0; k < inner; k += blockSize {
			kMax := min(k+blockSize, inner)
			for ii := iLo; ii < iHi; ii++ {
				rowOut := ii * out.Stride
				for kk := k; kk < kMax; kk++ {
					scalar := a.Data[ii*a.Stride+kk]
					rowB := kk * b.Stride
					for jj := j; jj < jMax; jj++ {
						out.Data[rowOut+jj] += scalar * b.Data[rowB+jj]
					}
				}
			}
		}
	}
}

// rawOf returns row-major storage for m, copying when m is a view such as a
// transpose.
func rawOf(m mat.Matrix) blas64.General {
	if d, ok := m.(*mat.Dense); ok {
		return d.RawMatrix()
	}
	return mat.DenseCopyOf(m).RawMatrix()
}
