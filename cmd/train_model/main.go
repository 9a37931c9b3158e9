package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"textclass/classifier"
	"textclass/corpus"
	"textclass/logging"
)

func main() {
	data := flag.String("data", "", "corpus file (.csv/.json) or sqlite database")
	strategy := flag.String("strategy", string(classifier.KindLinear), "strategy kind: recurrent_a, recurrent_b or linear")
	outputDir := flag.String("output_dir", "./models", "artifact output directory")
	vocabSize := flag.Int("vocab_size", 10000, "maximum vocabulary size")
	maxLen := flag.Int("max_len", 30, "sequence length for recurrent strategies")
	testRatio := flag.Float64("test_ratio", 0.2, "test partition ratio")
	seed := flag.Int64("seed", 42, "random seed for split and weights")
	logLevel := flag.String("log_level", "info", "log level")
	flag.Parse()

	if *data == "" {
		log.Fatal("data is required")
	}
	if err := logging.Init(*logLevel, ""); err != nil {
		log.Fatalf("failed to init logging: %v", err)
	}
	defer logging.Sync()

	samples, err := loadSamples(*data)
	if err != nil {
		logging.L().Fatal("failed to load samples", zap.Error(err))
	}
	logging.L().Info("corpus loaded", zap.Int("samples", len(samples)))

	train, test := corpus.Split(samples, *testRatio, *seed)
	trainTexts, trainLabels := corpus.Unzip(train)
	testTexts, testLabels := corpus.Unzip(test)

	model, err := classifier.New(classifier.Config{
		Kind:      classifier.Kind(*strategy),
		VocabSize: *vocabSize,
		MaxLen:    *maxLen,
		OutputDir: *outputDir,
		Seed:      *seed,
	})
	if err != nil {
		logging.L().Fatal("failed to build strategy", zap.Error(err))
	}

	metrics, err := model.Train(trainTexts, trainLabels, testTexts, testLabels)
	if err != nil {
		logging.L().Fatal("training failed", zap.Error(err))
	}
	logging.L().Info("training finished",
		zap.Float64("train_accuracy", metrics.TrainAccuracy),
		zap.Float64("test_accuracy", metrics.TestAccuracy))
	for _, r := range metrics.Report {
		logging.L().Info("class report",
			zap.String("label", r.Label),
			zap.Float64("precision", r.Precision),
			zap.Float64("recall", r.Recall),
			zap.Float64("f1", r.F1),
			zap.Int("support", r.Support))
	}

	if err := model.SaveModel(); err != nil {
		logging.L().Fatal("failed to save model", zap.Error(err))
	}
	if err := classifier.VerifyExport(filepath.Join(*outputDir, "model.onnx")); err != nil {
		logging.L().Fatal("export verification failed", zap.Error(err))
	}

	fmt.Printf("model artifacts written to %s\n", *outputDir)
}

func loadSamples(path string) ([]corpus.Sample, error) {
	if strings.HasSuffix(path, ".db") || strings.HasSuffix(path, ".sqlite") {
		store, err := corpus.Open(path)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.All()
	}
	return corpus.ReadFile(path)
}

