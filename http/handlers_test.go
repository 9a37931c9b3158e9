package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"textclass/classifier"
	"textclass/corpus"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(classifier.Config{
		Kind:      classifier.KindLinear,
		OutputDir: t.TempDir(),
		Seed:      7,
	}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func testMux(t *testing.T) (*http.ServeMux, *Service) {
	t.Helper()
	svc := newTestService(t)
	mux := http.NewServeMux()
	RegisterHandlers(mux, svc)
	return mux, svc
}

func trainingSamples() []corpus.Sample {
	return []corpus.Sample{
		{Text: "refund my order now", Label: "billing"},
		{Text: "refund the double charge", Label: "billing"},
		{Text: "billing charged me twice", Label: "billing"},
		{Text: "invoice charge looks wrong", Label: "billing"},
		{Text: "the app crashes on startup", Label: "bug"},
		{Text: "crashes every time i login", Label: "bug"},
		{Text: "login button broken again", Label: "bug"},
		{Text: "app broken after update", Label: "bug"},
	}
}

func TestHealthHandler(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/health", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(handleHealth)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	expected := `{"status":"ok"}`
	if rr.Body.String() != expected+"\n" && rr.Body.String() != expected {
		t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), expected)
	}
}

func TestPredictWithoutModel(t *testing.T) {
	mux, _ := testMux(t)

	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"texts":["hello"]}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestPredictRejectsEmptyTexts(t *testing.T) {
	mux, _ := testMux(t)

	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"texts":[]}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestTrainRejectsInvalidBody(t *testing.T) {
	mux, _ := testMux(t)

	req := httptest.NewRequest(http.MethodPost, "/api/train", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestTrainThenPredict(t *testing.T) {
	mux, _ := testMux(t)

	body, _ := json.Marshal(TrainRequest{
		Strategy:  "linear",
		TestRatio: 0.25,
		Samples:   trainingSamples(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/train", strings.NewReader(string(body)))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var metrics classifier.Metrics
	if err := json.Unmarshal(w.Body.Bytes(), &metrics); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if metrics.TrainAccuracy <= 0 {
		t.Fatalf("unexpected train accuracy: %v", metrics.TrainAccuracy)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"texts":["refund this charge","app crashes on login"]}`))
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var payload struct {
		Predictions []Prediction `json:"predictions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(payload.Predictions) != 2 {
		t.Fatalf("expected 2 predictions, got %d", len(payload.Predictions))
	}
	for _, p := range payload.Predictions {
		if p.Label != "billing" && p.Label != "bug" {
			t.Fatalf("unexpected label: %q", p.Label)
		}
	}
}

func TestPredictionCache(t *testing.T) {
	_, svc := testMux(t)

	if _, err := svc.Train(TrainRequest{Strategy: "linear", TestRatio: 0.25, Samples: trainingSamples()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := svc.Predict([]string{"refund this charge"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Predict([]string{"refund this charge"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first[0] != second[0] {
		t.Fatalf("cached prediction differs: %v vs %v", first[0], second[0])
	}
}

func TestModelsListing(t *testing.T) {
	mux, svc := testMux(t)

	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	if _, err := svc.Train(TrainRequest{Strategy: "linear", TestRatio: 0.25, Samples: trainingSamples()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var payload struct {
		Artifacts []struct {
			Name string `json:"name"`
			Size int64  `json:"size"`
		} `json:"artifacts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}

	names := make(map[string]bool)
	for _, a := range payload.Artifacts {
		names[a.Name] = true
	}
	for _, want := range []string{"model.json", "vocab.json", "scaler.json", "model.onnx"} {
		if !names[want] {
			t.Fatalf("missing artifact %q in %v", want, names)
		}
	}
}
