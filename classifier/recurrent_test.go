package classifier

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"textclass/onnx"
)

func smallRecurrentConfig(kind Kind, dir string) Config {
	return Config{
		Kind:         kind,
		VocabSize:    60,
		EmbeddingDim: 8,
		HiddenDim:    8,
		MaxLen:       6,
		OutputDir:    dir,
		Seed:         7,
	}
}

var (
	rnnTrainTexts  = []string{"good product", "awful product", "great service", "horrible service", "lovely item", "broken item", "excellent quality", "poor quality"}
	rnnTrainLabels = []string{"pos", "neg", "pos", "neg", "pos", "neg", "pos", "neg"}
	rnnTestTexts   = []string{"good service", "awful item"}
	rnnTestLabels  = []string{"pos", "neg"}
)

func TestRecurrentUntrainedGates(t *testing.T) {
	for _, kind := range []Kind{KindRecurrentA, KindRecurrentB} {
		s, err := New(smallRecurrentConfig(kind, t.TempDir()))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		if _, err := s.Predict([]string{"anything"}); !errors.Is(err, ErrUntrained) {
			t.Fatalf("%s: expected ErrUntrained from Predict, got %v", kind, err)
		}
		if err := s.SaveModel(); !errors.Is(err, ErrUntrained) {
			t.Fatalf("%s: expected ErrUntrained from SaveModel, got %v", kind, err)
		}
		if err := s.ExportONNX(filepath.Join(t.TempDir(), "model.onnx")); !errors.Is(err, ErrUntrained) {
			t.Fatalf("%s: expected ErrUntrained from ExportONNX, got %v", kind, err)
		}
	}
}

func TestRecurrentTrainThenPredict(t *testing.T) {
	for _, kind := range []Kind{KindRecurrentA, KindRecurrentB} {
		s, err := New(smallRecurrentConfig(kind, t.TempDir()))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		metrics, err := s.Train(rnnTrainTexts, rnnTrainLabels, rnnTestTexts, rnnTestLabels)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		if metrics.TrainAccuracy < 0 || metrics.TrainAccuracy > 1 {
			t.Fatalf("%s: accuracy out of range: %f", kind, metrics.TrainAccuracy)
		}
		if len(metrics.Report) != 2 {
			t.Fatalf("%s: expected report for 2 classes, got %d", kind, len(metrics.Report))
		}

		indices, err := s.Predict([]string{"good product", "broken quality"})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		for _, idx := range indices {
			if idx != 0 && idx != 1 {
				t.Fatalf("%s: class index out of range: %d", kind, idx)
			}
		}
		labels, err := s.DecodeLabels(indices)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		for _, label := range labels {
			if label != "pos" && label != "neg" {
				t.Fatalf("%s: unexpected label %q", kind, label)
			}
		}
	}
}

func TestRecurrentSaveLoadRoundTrip(t *testing.T) {
	for _, kind := range []Kind{KindRecurrentA, KindRecurrentB} {
		dir := t.TempDir()
		cfg := smallRecurrentConfig(kind, dir)

		s, err := New(cfg)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		if _, err := s.Train(rnnTrainTexts, rnnTrainLabels, rnnTestTexts, rnnTestLabels); err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		if err := s.SaveModel(); err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}

		probe := []string{"good service", "horrible product", "lovely quality"}
		want, err := s.Predict(probe)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}

		restored, err := New(cfg)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		if err := restored.LoadModel(""); err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		got, err := restored.Predict(probe)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		if !reflect.DeepEqual(want, got) {
			t.Fatalf("%s: predictions changed across save/load: %v vs %v", kind, want, got)
		}
	}
}

func TestRecurrentExportSignature(t *testing.T) {
	for _, kind := range []Kind{KindRecurrentA, KindRecurrentB} {
		dir := t.TempDir()
		s, err := New(smallRecurrentConfig(kind, dir))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		if _, err := s.Train(rnnTrainTexts, rnnTrainLabels, rnnTestTexts, rnnTestLabels); err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}

		path := filepath.Join(dir, "model.onnx")
		if err := s.ExportONNX(path); err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}

		info, err := onnx.ReadInfo(path)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		if info.OpsetVersion != 17 {
			t.Fatalf("%s: expected opset 17, got %d", kind, info.OpsetVersion)
		}
		if len(info.Inputs) != 1 || info.Inputs[0].Name != "input_ids" {
			t.Fatalf("%s: unexpected inputs: %+v", kind, info.Inputs)
		}
		if !info.Inputs[0].Dims[0].Dynamic() {
			t.Fatalf("%s: expected dynamic batch dimension, got %+v", kind, info.Inputs[0].Dims[0])
		}
		if info.Inputs[0].Dims[1].Value != 6 {
			t.Fatalf("%s: expected sequence dim 6, got %+v", kind, info.Inputs[0].Dims[1])
		}
		if len(info.Outputs) != 1 || info.Outputs[0].Name != "output" {
			t.Fatalf("%s: unexpected outputs: %+v", kind, info.Outputs)
		}
		if err := VerifyExport(path); err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
	}
}

func TestRecurrentEpochCallback(t *testing.T) {
	cfg := smallRecurrentConfig(KindRecurrentB, t.TempDir())
	var epochs []int
	cfg.OnEpoch = func(epoch int, loss float64) { epochs = append(epochs, epoch) }

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Train(rnnTrainTexts, rnnTrainLabels, rnnTestTexts, rnnTestLabels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(epochs) != rnnEpochs {
		t.Fatalf("expected %d epoch callbacks, got %d", rnnEpochs, len(epochs))
	}
	if epochs[0] != 1 || epochs[len(epochs)-1] != rnnEpochs {
		t.Fatalf("unexpected epoch sequence: %v", epochs)
	}
}
