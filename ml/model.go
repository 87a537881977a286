package ml

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

type modelData struct {
	Weights *Matrix
	Classes int
}

// SaveModel writes the weight matrix to filename with gob.
func SaveModel(filename string, W *Matrix) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	log.Info().Str("path", filename).Msg("Saving model")
	if err := gob.NewEncoder(file).Encode(modelData{Weights: W, Classes: W.cols}); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return file.Close()
}

func LoadModel(filename string) (*Matrix, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var md modelData
	if err := gob.NewDecoder(file).Decode(&md); err != nil {
		return nil, fmt.Errorf("failed to decode gob file: %w", err)
	}
	if md.Weights == nil || md.Weights.cols != md.Classes {
		return nil, fmt.Errorf("model %s: weights do not match %d classes", filename, md.Classes)
	}
	return md.Weights, nil
}
