package ml

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
)

// InferenceImg classifies a single image file. The image is resized to the
// square size the weights were trained on (bias row excluded).
func InferenceImg(r *Regressor, W *Matrix, imagePath string, convertJpg1D func(string, int, int) ([]float64, error)) (int, float64, error) {
	log.Info().Msgf("Running Inference on: %s", imagePath)

	side := int(math.Sqrt(float64(W.rows - 1)))
	if side*side != W.rows-1 {
		return 0, 0, fmt.Errorf("weights with %d features are not a square image", W.rows-1)
	}

	// 1. Load & Convert
	pixelData, err := convertJpg1D(imagePath, side, side)
	if err != nil {
		return 0, 0, fmt.Errorf("loading image: %w", err)
	}

	// 2. Normalize (0-255 -> 0.0-1.0)
	for i := range pixelData {
		pixelData[i] = pixelData[i] / 255.0
	}

	// 3. Predict
	X := WithBias(NewMatrixFromSlice(1, len(pixelData), pixelData))
	probs := r.Predict(X, W)
	prediction := probs.ArgMaxRow(0)
	confidence := probs.At(0, prediction)

	log.Info().Msgf("Predicted Digit: %d", prediction)
	log.Info().Msgf("Confidence: %.2f%%", confidence*100)
	return prediction, confidence, nil
}
