package classifier

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"textclass/onnx"
)

func newLinearForTest(t *testing.T) Strategy {
	t.Helper()
	s, err := New(Config{Kind: KindLinear, VocabSize: 100, OutputDir: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestLinearUntrainedGates(t *testing.T) {
	s := newLinearForTest(t)

	if _, err := s.Predict([]string{"anything"}); !errors.Is(err, ErrUntrained) {
		t.Fatalf("expected ErrUntrained from Predict, got %v", err)
	}
	if err := s.SaveModel(); !errors.Is(err, ErrUntrained) {
		t.Fatalf("expected ErrUntrained from SaveModel, got %v", err)
	}
	if err := s.ExportONNX(filepath.Join(t.TempDir(), "model.onnx")); !errors.Is(err, ErrUntrained) {
		t.Fatalf("expected ErrUntrained from ExportONNX, got %v", err)
	}
}

func TestLinearEndToEnd(t *testing.T) {
	s := newLinearForTest(t)

	trainTexts := []string{"good product", "bad product", "great service", "terrible service"}
	trainLabels := []string{"pos", "neg", "pos", "neg"}
	testTexts := []string{"good service", "bad service", "great product", "terrible product"}
	testLabels := []string{"pos", "neg", "pos", "neg"}

	metrics, err := s.Train(trainTexts, trainLabels, testTexts, testLabels)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.TrainAccuracy != 1.0 {
		t.Fatalf("expected train accuracy 1.0, got %f", metrics.TrainAccuracy)
	}
	if len(metrics.Report) != 2 {
		t.Fatalf("expected report for 2 classes, got %d", len(metrics.Report))
	}

	indices, err := s.Predict([]string{"good service"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	labels, err := s.DecodeLabels(indices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if labels[0] != "pos" && labels[0] != "neg" {
		t.Fatalf("expected a trained label, got %q", labels[0])
	}
}

func TestLinearSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Kind: KindLinear, VocabSize: 100, OutputDir: dir, Seed: 7}

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trainTexts := []string{"good product", "bad product", "great service", "terrible service"}
	trainLabels := []string{"pos", "neg", "pos", "neg"}
	if _, err := s.Train(trainTexts, trainLabels, trainTexts, trainLabels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SaveModel(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	probe := []string{"good service", "terrible product", "great", "bad"}
	want, err := s.Predict(probe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	restored, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := restored.LoadModel(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := restored.Predict(probe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("predictions changed across save/load: %v vs %v", want, got)
	}
}

func TestLinearExportSignature(t *testing.T) {
	dir := t.TempDir()
	s, err := New(Config{Kind: KindLinear, VocabSize: 100, OutputDir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trainTexts := []string{"good product", "bad product"}
	trainLabels := []string{"pos", "neg"}
	if _, err := s.Train(trainTexts, trainLabels, trainTexts, trainLabels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(dir, "model.onnx")
	if err := s.ExportONNX(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := onnx.ReadInfo(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.OpsetVersion != 17 {
		t.Fatalf("expected opset 17, got %d", info.OpsetVersion)
	}
	if len(info.Inputs) != 1 || info.Inputs[0].Name != "input" {
		t.Fatalf("unexpected inputs: %+v", info.Inputs)
	}
	if len(info.Outputs) != 1 || info.Outputs[0].Name != "output" {
		t.Fatalf("unexpected outputs: %+v", info.Outputs)
	}
	if !info.Inputs[0].Dims[0].Dynamic() {
		t.Fatalf("expected dynamic batch dimension, got %+v", info.Inputs[0].Dims[0])
	}
	if err := VerifyExport(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
