package ml

import (
	"bytes"
	"encoding/gob"
	"math"

	"github.com/b0tShaman/neuro-logreg/device"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Matrix represents a dense matrix with a flat data slice for performance.
// The gonum view shares the same backing slice.
type Matrix struct {
	rows, cols int
	data       []float64
	dense      *mat.Dense
}

// -------- CONSTRUCTORS ------- //
func NewMatrix(rows, cols int) *Matrix {
	data := make([]float64, rows*cols)
	return &Matrix{
		rows:  rows,
		cols:  cols,
		data:  data,
		dense: mat.NewDense(rows, cols, data),
	}
}

func NewMatrixFromSlice(rows, cols int, data []float64) *Matrix {
	if len(data) != rows*cols {
		panic("Slice length mismatch")
	}

	return &Matrix{
		rows:  rows,
		cols:  cols,
		data:  data,
		dense: mat.NewDense(rows, cols, data),
	}
}

// WithBias returns a copy of x with a constant-1 column prepended.
func WithBias(x *Matrix) *Matrix {
	out := NewMatrix(x.rows, x.cols+1)
	for i := 0; i < x.rows; i++ {
		row := out.data[i*out.cols : (i+1)*out.cols]
		row[0] = 1
		copy(row[1:], x.data[i*x.cols:(i+1)*x.cols])
	}
	return out
}

// ------- MATRIX METHODS ------ //
func (m *Matrix) GobEncode() ([]byte, error) {
	w := new(bytes.Buffer)
	encoder := gob.NewEncoder(w)
	if err := encoder.Encode(m.rows); err != nil {
		return nil, err
	}
	if err := encoder.Encode(m.cols); err != nil {
		return nil, err
	}
	if err := encoder.Encode(m.data); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func (m *Matrix) GobDecode(buf []byte) error {
	r := bytes.NewBuffer(buf)
	decoder := gob.NewDecoder(r)
	if err := decoder.Decode(&m.rows); err != nil {
		return err
	}
	if err := decoder.Decode(&m.cols); err != nil {
		return err
	}
	if err := decoder.Decode(&m.data); err != nil {
		return err
	}
	// gob leaves an empty slice nil
	if m.data == nil {
		m.data = make([]float64, m.rows*m.cols)
	}

	// Re-create the wrapper after loading data
	m.dense = mat.NewDense(m.rows, m.cols, m.data)

	return nil
}

func (m *Matrix) Dims() (int, int) { return m.rows, m.cols }

func (m *Matrix) At(i, j int) float64 { return m.dense.At(i, j) }

func (m *Matrix) Set(i, j int, v float64) { m.dense.Set(i, j, v) }

// Row returns row i without copying.
func (m *Matrix) Row(i int) []float64 {
	return m.data[i*m.cols : (i+1)*m.cols]
}

func (m *Matrix) Data() []float64 { return m.data }

// Dense exposes the gonum view for use with mat functions.
func (m *Matrix) Dense() *mat.Dense { return m.dense }

func (m *Matrix) Clone() *Matrix {
	data := make([]float64, len(m.data))
	copy(data, m.data)
	return NewMatrixFromSlice(m.rows, m.cols, data)
}

func (m *Matrix) Subtract(b *Matrix) {
	m.dense.Sub(m.dense, b.dense)
}

// AddScaled computes m += alpha * b.
func (m *Matrix) AddScaled(alpha float64, b *Matrix) {
	m.checkSameShape(b)
	floats.AddScaled(m.data, alpha, b.data)
}

func (m *Matrix) Scale(alpha float64) {
	floats.Scale(alpha, m.data)
}

func (m *Matrix) ApplySigmoid() {
	for i, v := range m.data {
		m.data[i] = 1.0 / (1.0 + math.Exp(-v))
	}
}

// ArgMaxRow returns the column of the largest value in row i. Ties go to the
// first maximal column.
func (m *Matrix) ArgMaxRow(i int) int {
	return floats.MaxIdx(m.Row(i))
}

func (m *Matrix) checkSameShape(b *Matrix) {
	if m.rows != b.rows || m.cols != b.cols {
		panic(mat.ErrShape)
	}
}

// ------ UTILITY FUNCTIONS ------
// MatMul computes out = a * b on the given backend.
func MatMul(b device.Backend, x, y mat.Matrix, out *Matrix) {
	b.Mul(out.dense, x, y)
}
