// Package classifier trains and serializes text classification models under
// three interchangeable strategies sharing one lifecycle contract.
package classifier

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrUntrained is returned by Predict, SaveModel and ExportONNX when called
// before a Train call has completed.
var ErrUntrained = errors.New("untrained model")

// Kind selects a concrete strategy at construction time.
type Kind string

const (
	// KindRecurrentA is the bidirectional recurrent classifier that pools the
	// first time-step of the recurrent outputs.
	KindRecurrentA Kind = "recurrent_a"
	// KindRecurrentB is the bidirectional recurrent classifier that pools the
	// final state of each direction and emits probabilities.
	KindRecurrentB Kind = "recurrent_b"
	// KindLinear is the TF-IDF + multinomial logistic regression classifier.
	KindLinear Kind = "linear"
)

// Config holds the hyperparameters shared by all strategies. Zero values are
// replaced with defaults by New.
type Config struct {
	Kind         Kind
	VocabSize    int
	EmbeddingDim int
	HiddenDim    int
	MaxLen       int
	// OutputDir is the single artifact root used by both SaveModel and
	// LoadModel.
	OutputDir string
	Seed      int64
	// OnEpoch, when set, is invoked after every training epoch with the mean
	// batch loss. Only the recurrent strategies have an epoch loop.
	OnEpoch func(epoch int, loss float64)
}

func (c *Config) applyDefaults() {
	if c.VocabSize <= 0 {
		c.VocabSize = 10000
	}
	if c.EmbeddingDim <= 0 {
		c.EmbeddingDim = 64
	}
	if c.HiddenDim <= 0 {
		c.HiddenDim = 64
	}
	if c.MaxLen <= 0 {
		c.MaxLen = 30
	}
	if c.OutputDir == "" {
		c.OutputDir = "models"
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
}

// ClassReport holds per-class evaluation results.
type ClassReport struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Metrics is the result of a Train call.
type Metrics struct {
	TrainAccuracy float64       `json:"train_accuracy"`
	TestAccuracy  float64       `json:"test_accuracy"`
	Report        []ClassReport `json:"classification_report"`
}

// Strategy is the contract every modeling strategy implements. Train must
// complete before Predict, SaveModel or ExportONNX may be called; LoadModel
// restores a previously saved strategy and unlocks the same operations.
//
// Predict returns class indices for every strategy; DecodeLabels turns them
// back into label strings.
type Strategy interface {
	Train(trainTexts, trainLabels, testTexts, testLabels []string) (*Metrics, error)
	Predict(texts []string) ([]int, error)
	DecodeLabels(indices []int) ([]string, error)
	SaveModel() error
	LoadModel(prefix string) error
	ExportONNX(path string) error
}

// New constructs the strategy selected by cfg.Kind.
func New(cfg Config) (Strategy, error) {
	cfg.applyDefaults()
	switch cfg.Kind {
	case KindRecurrentA, KindRecurrentB:
		return newRecurrent(cfg), nil
	case KindLinear:
		return newLinear(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported strategy kind %q", cfg.Kind)
	}
}

// Artifact file names under Config.OutputDir. SaveModel writes them without a
// prefix; LoadModel resolves "{prefix}_name" for a non-empty prefix so both
// operations share one configured root.
const (
	vocabFile  = "vocab.json"
	scalerFile = "scaler.json"
	onnxFile   = "model.onnx"
)

func artifactPath(dir, prefix, name string) string {
	if prefix == "" {
		return filepath.Join(dir, name)
	}
	return filepath.Join(dir, prefix+"_"+name)
}
