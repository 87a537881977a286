package data

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// --- Helpers ---

func encodeIDX(dims []int, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, idxTypeUbyte, byte(len(dims))})
	for _, d := range dims {
		binary.Write(&buf, binary.BigEndian, uint32(d))
	}
	buf.Write(payload)
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, b []byte, gz bool) {
	t.Helper()
	if gz {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write(b)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		b = buf.Bytes()
		path += ".gz"
	}
	require.NoError(t, os.WriteFile(path, b, 0o644))
}

// writeMNIST creates a synthetic t10k pair of n 4x4 images in dir.
func writeMNIST(t *testing.T, dir string, n int, gz bool) {
	t.Helper()
	pixels := make([]byte, n*16)
	labels := make([]byte, n)
	for i := 0; i < n; i++ {
		labels[i] = byte(i % NumClasses)
		for k := 0; k < 16; k++ {
			pixels[i*16+k] = byte((i + k) * 17 % 256)
		}
	}
	writeFile(t, filepath.Join(dir, "t10k-images-idx3-ubyte"), encodeIDX([]int{n, 4, 4}, pixels), gz)
	writeFile(t, filepath.Join(dir, "t10k-labels-idx1-ubyte"), encodeIDX([]int{n}, labels), gz)
}

// --- IDX ---

func TestReadIDX(t *testing.T) {
	idx, err := ReadIDX(bytes.NewReader(encodeIDX([]int{2, 3}, []byte{1, 2, 3, 4, 5, 6})))
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, idx.Dims)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, idx.Data)
}

func TestReadIDXMalformed(t *testing.T) {
	cases := map[string][]byte{
		"short header":     {0, 0},
		"bad magic":        {1, 0, idxTypeUbyte, 1, 0, 0, 0, 1, 9},
		"float type":       {0, 0, 0x0D, 1, 0, 0, 0, 1, 9},
		"truncated":        encodeIDX([]int{4}, []byte{1, 2}),
		"no dimensions":    {0, 0, idxTypeUbyte, 0},
		"overflowing dims": {0, 0, idxTypeUbyte, 2, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		"oversized claim":  encodeIDX([]int{1 << 12, 1 << 12, 1 << 12}, []byte{1, 2, 3}),
	}
	for name, b := range cases {
		require.NotPanics(t, func() {
			_, err := ReadIDX(bytes.NewReader(b))
			require.ErrorIs(t, err, ErrBadIDX, name)
		}, name)
	}
}

// --- SetupMNIST ---

func TestSetupMNIST(t *testing.T) {
	for _, gz := range []bool{false, true} {
		dir := t.TempDir()
		writeMNIST(t, dir, 200, gz)

		ds, err := SetupMNIST(dir, 0.6, 42)
		require.NoError(t, err)

		require.Equal(t, NumClasses, ds.NumClasses)
		require.Equal(t, 200, ds.NumTrain()+ds.NumTest())
		require.Equal(t, 4, ds.TrainImages.Height)
		require.Equal(t, 16, ds.TestImages.FeatureLen())
		require.Len(t, ds.TrainTargets, ds.NumTrain()*NumClasses)
		require.Len(t, ds.TestTargets, ds.NumTest()*NumClasses)

		for i := 0; i < ds.NumTrain(); i++ {
			row := ds.TrainTargets[i*NumClasses : (i+1)*NumClasses]
			sum := 0.0
			for _, v := range row {
				sum += v
			}
			require.Equal(t, 1.0, sum)
			require.Equal(t, 1.0, row[ds.TrainLabels[i]])
		}
		for _, p := range ds.TrainImages.Pixels {
			require.GreaterOrEqual(t, p, 0.0)
			require.LessOrEqual(t, p, 1.0)
		}
	}
}

func TestSetupMNISTDeterministicSplit(t *testing.T) {
	dir := t.TempDir()
	writeMNIST(t, dir, 100, false)

	a, err := SetupMNIST(dir, 0.5, 7)
	require.NoError(t, err)
	b, err := SetupMNIST(dir, 0.5, 7)
	require.NoError(t, err)
	require.Equal(t, a.TrainLabels, b.TrainLabels)
	require.Equal(t, a.TestImages.Pixels, b.TestImages.Pixels)
}

func TestSetupMNISTFractionCapped(t *testing.T) {
	dir := t.TempDir()
	writeMNIST(t, dir, 2000, false)

	ds, err := SetupMNIST(dir, 1.0, 1)
	require.NoError(t, err)
	require.Positive(t, ds.NumTest())
	require.InDelta(t, 0.8, float64(ds.NumTrain())/2000, 0.05)
}

func TestSetupMNISTEmptySplit(t *testing.T) {
	dir := t.TempDir()
	writeMNIST(t, dir, 50, false)

	_, err := SetupMNIST(dir, 0, 1)
	require.ErrorIs(t, err, ErrEmptySplit)
}

func TestSetupMNISTMissing(t *testing.T) {
	_, err := SetupMNIST(t.TempDir(), 0.6, 1)
	require.ErrorIs(t, err, ErrNoDataset)
}

func TestOneHot(t *testing.T) {
	require.Equal(t, []float64{0, 1, 0, 1, 0, 0}, OneHot([]int{1, 0}, 3))
}

// --- Images ---

func TestRenderResults(t *testing.T) {
	dir := t.TempDir()
	writeMNIST(t, dir, 40, false)
	ds, err := SetupMNIST(dir, 0.5, 3)
	require.NoError(t, err)

	pred := make([]int, ds.NumTest())
	out := filepath.Join(dir, "results.png")
	require.NoError(t, RenderResults(out, ds.TestImages, pred, 7))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	// 7 samples -> 5 columns, 2 rows
	b := img.Bounds()
	require.Equal(t, 5*4*cellScale, b.Dx())
	require.Equal(t, 2*(4*cellScale+labelHeight), b.Dy())
}

func TestRenderResultsNothing(t *testing.T) {
	err := RenderResults(filepath.Join(t.TempDir(), "x.png"), Images{}, nil, 20)
	require.Error(t, err)
}

func TestConvertJpg1D(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range src.Pix {
		src.Pix[i] = 200
	}

	path := filepath.Join(t.TempDir(), "digit.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, src))
	require.NoError(t, f.Close())

	px, err := ConvertJpg1D(path, 4, 4)
	require.NoError(t, err)
	require.Len(t, px, 16)
	for _, p := range px {
		require.InDelta(t, 200, p, 2)
	}
}
