package data

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // Essential: Registers JPEG format
	"image/png"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	cellScale   = 4
	labelHeight = 16
	gridCols    = 5
)

// Convert image of any size to grayscale 1D float64 slice
func ConvertJpg1D(path string, targetW, targetH int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	// Resize to the size the model expects
	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.CatmullRom.Scale(dst, dst.Rect, src, src.Bounds(), draw.Over, nil)

	out := make([]float64, 0, targetW*targetH)
	bounds := dst.Bounds()

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := dst.At(x, y).RGBA()
			// Standard Grayscale formula
			gray := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			out = append(out, gray) // Returns 0-255 range
		}
	}
	return out, nil
}

// RenderResults writes the first n images as a PNG grid, each captioned with
// its predicted class.
func RenderResults(path string, images Images, predicted []int, n int) error {
	n = min(n, images.N, len(predicted))
	if n <= 0 {
		return fmt.Errorf("render %s: nothing to draw", path)
	}

	cellW := images.Width * cellScale
	cellH := images.Height*cellScale + labelHeight
	cols := min(n, gridCols)
	rows := (n + cols - 1) / cols

	canvas := image.NewRGBA(image.Rect(0, 0, cols*cellW, rows*cellH))
	draw.Draw(canvas, canvas.Bounds(), image.Black, image.Point{}, draw.Src)

	caption := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.RGBA{R: 255, G: 96, B: 96, A: 255}),
		Face: basicfont.Face7x13,
	}

	for i := 0; i < n; i++ {
		x0 := (i % cols) * cellW
		y0 := (i / cols) * cellH

		// 1. Digit
		src := toGray(images.At(i), images.Width, images.Height)
		cell := image.Rect(x0, y0, x0+cellW, y0+images.Height*cellScale)
		draw.NearestNeighbor.Scale(canvas, cell, src, src.Bounds(), draw.Src, nil)

		// 2. Caption
		caption.Dot = fixed.P(x0+4, y0+cellH-3)
		caption.DrawString(fmt.Sprintf("pred %d", predicted[i]))

		log.Info().Msgf("Sample %2d: predicted %d", i, predicted[i])
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, canvas); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("samples", n).Msg("Results rendered")
	return f.Close()
}

func toGray(pixels []float64, w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i, p := range pixels {
		img.Pix[i] = uint8(min(max(p, 0), 1) * 255)
	}
	return img
}
