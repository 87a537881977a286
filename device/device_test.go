package device

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomDense(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}

func TestSelect(t *testing.T) {
	for _, info := range Devices() {
		ctx, err := Select(Config{Index: info.Index})
		require.NoError(t, err)
		require.Equal(t, info.Backend, ctx.Backend().Name())
		require.Equal(t, info.Index, ctx.Info().Index)
	}
}

func TestSelectOutOfRange(t *testing.T) {
	for _, idx := range []int{-1, len(Devices())} {
		_, err := Select(Config{Index: idx})
		require.ErrorIs(t, err, ErrNoDevice)
	}
}

func TestBackendsAgree(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	// Sizes straddle the block size so partial tiles are covered.
	for _, dims := range [][3]int{{1, 1, 1}, {7, 3, 5}, {65, 130, 10}, {200, 785, 10}} {
		a := randomDense(rng, dims[0], dims[1])
		b := randomDense(rng, dims[1], dims[2])

		var want, got mat.Dense
		blasBackend{}.Mul(&want, a, b)
		newTiledBackend(4).Mul(&got, a, b)

		require.True(t, mat.EqualApprox(&want, &got, 1e-9), "dims %v", dims)
	}
}

func TestTiledTransposedOperand(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	x := randomDense(rng, 90, 20)
	d := randomDense(rng, 90, 4)

	var want mat.Dense
	want.Mul(x.T(), d)

	got := mat.NewDense(20, 4, nil)
	newTiledBackend(2).Mul(got, x.T(), d)

	require.True(t, mat.EqualApprox(&want, got, 1e-9))
}

func TestTiledShapeMismatchPanics(t *testing.T) {
	a := mat.NewDense(2, 3, nil)
	b := mat.NewDense(4, 2, nil)
	require.Panics(t, func() {
		var out mat.Dense
		newTiledBackend(1).Mul(&out, a, b)
	})
}

func TestContextTime(t *testing.T) {
	ctx, err := Select(Config{})
	require.NoError(t, err)

	d := ctx.Time(func() { time.Sleep(5 * time.Millisecond) })
	require.GreaterOrEqual(t, d, 5*time.Millisecond)
}

// --- Benchmarks ---

var benchOut *mat.Dense

func benchmarkMul(b *testing.B, size int, backend Backend) {
	rng := rand.New(rand.NewPCG(5, 6))
	m1 := randomDense(rng, size, size)
	m2 := randomDense(rng, size, size)
	out := mat.NewDense(size, size, nil)

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		backend.Mul(out, m1, m2)
	}
	benchOut = out
}

func BenchmarkMul_Blas_64(b *testing.B)    { benchmarkMul(b, 64, blasBackend{}) }
func BenchmarkMul_Tiled_64(b *testing.B)   { benchmarkMul(b, 64, newTiledBackend(4)) }
func BenchmarkMul_Blas_256(b *testing.B)   { benchmarkMul(b, 256, blasBackend{}) }
func BenchmarkMul_Tiled_256(b *testing.B)  { benchmarkMul(b, 256, newTiledBackend(4)) }
func BenchmarkMul_Blas_512(b *testing.B)   { benchmarkMul(b, 512, blasBackend{}) }
func BenchmarkMul_Tiled_512(b *testing.B)  { benchmarkMul(b, 512, newTiledBackend(4)) }
