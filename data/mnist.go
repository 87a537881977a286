package data

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

const (
	NumClasses = 10

	// Beyond this fraction the test split would get too small to mean much.
	maxTrainFrac = 0.8

	idxTypeUbyte = 0x08

	// Largest payload ReadIDX accepts. The full 60k MNIST train set is ~47MB.
	maxIDXBytes = 1 << 30
)

var (
	ErrBadIDX     = errors.New("data: malformed idx file")
	ErrNoDataset  = errors.New("data: mnist files not found")
	ErrEmptySplit = errors.New("data: split left a partition empty")
)

// File pairs searched in order; a ".gz" suffix is tried for each.
var mnistFiles = [][2]string{
	{"images-subset", "labels-subset"},
	{"t10k-images-idx3-ubyte", "t10k-labels-idx1-ubyte"},
	{"train-images-idx3-ubyte", "train-labels-idx1-ubyte"},
}

// IDX is a decoded idx file of unsigned bytes.
type IDX struct {
	Dims []int
	Data []byte
}

// Images holds N row-major H*W images scaled to [0,1], one image per row.
type Images struct {
	N, Height, Width int
	Pixels           []float64
}

func (im Images) FeatureLen() int { return im.Height * im.Width }

func (im Images) At(i int) []float64 {
	n := im.FeatureLen()
	return im.Pixels[i*n : (i+1)*n]
}

type Dataset struct {
	NumClasses   int
	TrainImages  Images
	TestImages   Images
	TrainLabels  []int
	TestLabels   []int
	TrainTargets []float64 // One-hot, NumTrain x NumClasses
	TestTargets  []float64 // One-hot, NumTest x NumClasses
}

func (d *Dataset) NumTrain() int { return d.TrainImages.N }
func (d *Dataset) NumTest() int  { return d.TestImages.N }

// ReadIDX decodes an idx stream: a 4 byte magic (0, 0, type, ndims), ndims
// big-endian uint32 sizes, then the payload.
func ReadIDX(r io.Reader) (*IDX, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrBadIDX, err)
	}
	if magic[0] != 0 || magic[1] != 0 {
		return nil, fmt.Errorf("%w: bad magic % x", ErrBadIDX, magic)
	}
	if magic[2] != idxTypeUbyte {
		return nil, fmt.Errorf("%w: unsupported element type 0x%02x", ErrBadIDX, magic[2])
	}

	ndims := int(magic[3])
	if ndims == 0 {
		return nil, fmt.Errorf("%w: zero dimensions", ErrBadIDX)
	}
	dims := make([]int, ndims)
	total := 1
	for i := range dims {
		var d uint32
		if err := binary.Read(r, binary.BigEndian, &d); err != nil {
			return nil, fmt.Errorf("%w: dims: %v", ErrBadIDX, err)
		}
		dims[i] = int(d)
		if dims[i] > 0 && total > maxIDXBytes/dims[i] {
			return nil, fmt.Errorf("%w: dims %v exceed %d bytes", ErrBadIDX, dims[:i+1], maxIDXBytes)
		}
		total *= dims[i]
	}

	// Grow with the data actually present rather than trusting the header.
	payload, err := io.ReadAll(io.LimitReader(r, int64(total)))
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrBadIDX, err)
	}
	if len(payload) != total {
		return nil, fmt.Errorf("%w: payload: got %d of %d bytes", ErrBadIDX, len(payload), total)
	}
	return &IDX{Dims: dims, Data: payload}, nil
}

// LoadIDX reads an idx file, transparently un-gzipping it.
func LoadIDX(path string) (*IDX, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if head, _ := br.Peek(2); bytes.Equal(head, []byte{0x1f, 0x8b}) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip file '%s': %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	idx, err := ReadIDX(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return idx, nil
}

func findPair(dir string) (string, string, error) {
	exists := func(p string) bool {
		_, err := os.Stat(p)
		return err == nil
	}
	for _, pair := range mnistFiles {
		for _, ext := range []string{"", ".gz"} {
			img := filepath.Join(dir, pair[0]+ext)
			lbl := filepath.Join(dir, pair[1]+ext)
			if exists(img) && exists(lbl) {
				return img, lbl, nil
			}
		}
	}
	return "", "", fmt.Errorf("%w in %s", ErrNoDataset, dir)
}

// SetupMNIST loads one image/label idx pair from dir and splits it at
// random into train and test partitions. Each sample lands in train with
// probability min(frac, 0.8). The split depends only on seed.
func SetupMNIST(dir string, frac float64, seed uint64) (*Dataset, error) {
	imgPath, lblPath, err := findPair(dir)
	if err != nil {
		return nil, err
	}

	// 1. Load
	images, err := LoadIDX(imgPath)
	if err != nil {
		return nil, err
	}
	labels, err := LoadIDX(lblPath)
	if err != nil {
		return nil, err
	}
	if len(images.Dims) != 3 {
		return nil, fmt.Errorf("%w: %s has %d dims, want 3", ErrBadIDX, imgPath, len(images.Dims))
	}
	if len(labels.Dims) != 1 || labels.Dims[0] != images.Dims[0] {
		return nil, fmt.Errorf("%w: %d labels for %d images", ErrBadIDX, labels.Dims[0], images.Dims[0])
	}
	total, h, w := images.Dims[0], images.Dims[1], images.Dims[2]
	log.Info().Msgf("Loaded %s: %d images of %dx%d", filepath.Base(imgPath), total, h, w)

	// 2. Split
	threshold := min(frac, maxTrainFrac)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var trainIdx, testIdx []int
	for i := 0; i < total; i++ {
		if rng.Float64() < threshold {
			trainIdx = append(trainIdx, i)
		} else {
			testIdx = append(testIdx, i)
		}
	}
	if len(trainIdx) == 0 || len(testIdx) == 0 {
		return nil, fmt.Errorf("%w: %d train, %d test (fraction %.2f)", ErrEmptySplit, len(trainIdx), len(testIdx), frac)
	}

	// 3. Gather & scale
	ds := &Dataset{NumClasses: NumClasses}
	ds.TrainImages, ds.TrainLabels, err = gather(images, labels, trainIdx, h, w)
	if err != nil {
		return nil, err
	}
	ds.TestImages, ds.TestLabels, err = gather(images, labels, testIdx, h, w)
	if err != nil {
		return nil, err
	}
	ds.TrainTargets = OneHot(ds.TrainLabels, NumClasses)
	ds.TestTargets = OneHot(ds.TestLabels, NumClasses)

	return ds, nil
}

func gather(images, labels *IDX, indices []int, h, w int) (Images, []int, error) {
	n := h * w
	out := Images{N: len(indices), Height: h, Width: w, Pixels: make([]float64, len(indices)*n)}
	lbls := make([]int, len(indices))
	for dst, src := range indices {
		lbl := int(labels.Data[src])
		if lbl >= NumClasses {
			return Images{}, nil, fmt.Errorf("%w: label %d at %d", ErrBadIDX, lbl, src)
		}
		lbls[dst] = lbl

		raw := images.Data[src*n : (src+1)*n]
		row := out.Pixels[dst*n : (dst+1)*n]
		for k, p := range raw {
			row[k] = float64(p) / 255
		}
	}
	return out, lbls, nil
}

// OneHot expands labels into a row-major len(labels) x classes matrix.
func OneHot(labels []int, classes int) []float64 {
	out := make([]float64, len(labels)*classes)
	for i, l := range labels {
		out[i*classes+l] = 1
	}
	return out
}
