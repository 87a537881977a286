package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/b0tShaman/neuro-logreg/data"
	"github.com/b0tShaman/neuro-logreg/device"
	. "github.com/b0tShaman/neuro-logreg/ml"
)

type Config struct {
	Device     int
	Console    bool // Skip rendering results
	Percent    int  // Share of the dataset used for training, 0-100
	ImagePath  string
	DataDir    string
	ModelPath  string
	ResultPath string
	Seed       uint64 // Train/test split
	DisplayN   int
	PredictN   int // Prediction passes averaged by the benchmark
}

// parseArgs reads `[device] [display_flag] [percent] [image]`. Numbers that
// do not parse count as 0.
func parseArgs(args []string, getenv func(string) string) Config {
	cfg := Config{
		Percent:    60,
		DataDir:    "assets/mnist",
		ModelPath:  "assets/logreg.gob",
		ResultPath: "assets/results.png",
		Seed:       1,
		DisplayN:   20,
		PredictN:   100,
	}
	if dir := getenv("MNIST_DIR"); dir != "" {
		cfg.DataDir = dir
	}

	atoi := func(s string) int {
		n, _ := strconv.Atoi(strings.TrimSpace(s))
		return n
	}
	if len(args) > 0 {
		cfg.Device = atoi(args[0])
	}
	if len(args) > 1 {
		cfg.Console = strings.HasPrefix(args[1], "-")
	}
	if len(args) > 2 {
		cfg.Percent = min(max(atoi(args[2]), 0), 100)
	}
	if len(args) > 3 {
		cfg.ImagePath = args[3]
	}
	return cfg
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

// -------- MAIN -------- //
func main() {
	setupLogging(os.Getenv("LOG_LEVEL"))
	cfg := parseArgs(os.Args[1:], os.Getenv)

	if err := run(cfg); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// run is the only error boundary: errors and panics from device setup or
// the demo all end up here.
func run(cfg Config) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	ctx, err := device.Select(device.Config{Index: cfg.Device})
	if err != nil {
		return err
	}
	for _, d := range device.Devices() {
		marker := " "
		if d.Index == cfg.Device {
			marker = "*"
		}
		log.Info().Msgf("%s %s", marker, d)
	}
	return lrDemo(ctx, cfg)
}

// lrDemo trains one-vs-all logistic regression on MNIST and reports
// accuracy and timings.
func lrDemo(ctx *device.Context, cfg Config) error {
	// 1. Load Data
	log.Info().Msg("Loading dataset...")
	ds, err := data.SetupMNIST(cfg.DataDir, float64(cfg.Percent)/100, cfg.Seed)
	if err != nil {
		return err
	}
	featureLen := ds.TrainImages.FeatureLen()
	log.Info().Msgf("Loaded dataset: %d train, %d test samples, %d input features", ds.NumTrain(), ds.NumTest(), featureLen)

	// 2. Build feature matrices with a bias column
	trainFeats := WithBias(NewMatrixFromSlice(ds.NumTrain(), featureLen, ds.TrainImages.Pixels))
	testFeats := WithBias(NewMatrixFromSlice(ds.NumTest(), featureLen, ds.TestImages.Pixels))
	trainTargets := NewMatrixFromSlice(ds.NumTrain(), ds.NumClasses, ds.TrainTargets)
	testTargets := NewMatrixFromSlice(ds.NumTest(), ds.NumClasses, ds.TestTargets)

	// 3. Configure & Train
	config := DefaultTrainingConfig()
	config.LearningRate = 1.0
	config.MaxIter = 500
	config.VerboseEvery = 100

	r, err := NewRegressor(ctx.Backend(), config)
	if err != nil {
		return err
	}
	W := r.Train(trainFeats, trainTargets)

	if err := SaveModel(cfg.ModelPath, W); err != nil {
		log.Warn().Err(err).Msg("Could not save model")
	}

	// 4. Evaluate
	trainOutputs := r.Predict(trainFeats, W)
	testOutputs := r.Predict(testFeats, W)
	log.Info().Msgf("Accuracy on training data: %2.2f", Accuracy(trainOutputs, trainTargets))
	log.Info().Msgf("Accuracy on testing data: %2.2f", Accuracy(testOutputs, testTargets))

	// 5. Benchmark
	bench := Benchmark(ctx, r, trainFeats, trainTargets, testFeats, cfg.PredictN)
	log.Info().Msgf("Training time: %4.4f s", bench.TrainTime.Seconds())
	log.Info().Msgf("Prediction time: %4.4f s", bench.PredictTime.Seconds())

	// 6. Display
	if !cfg.Console {
		predicted := make([]int, ds.NumTest())
		for i := range predicted {
			predicted[i] = testOutputs.ArgMaxRow(i)
		}
		if err := data.RenderResults(cfg.ResultPath, ds.TestImages, predicted, cfg.DisplayN); err != nil {
			return err
		}
	}

	// 7. Single image
	if cfg.ImagePath != "" {
		if _, _, err := InferenceImg(r, W, cfg.ImagePath, data.ConvertJpg1D); err != nil {
			return err
		}
	}
	return nil
}
