package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"textclass/classifier"
)

// RegisterHandlers wires the API routes for svc.
func RegisterHandlers(mux *http.ServeMux, svc *Service) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/train", svc.handleTrain)
	mux.HandleFunc("POST /api/predict", svc.handlePredict)
	mux.HandleFunc("GET /api/models", svc.handleModels)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Service) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req TrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	metrics, err := s.Train(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metrics)
}

func (s *Service) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Texts []string `json:"texts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Texts) == 0 {
		http.Error(w, "texts is required", http.StatusBadRequest)
		return
	}

	predictions, err := s.Predict(req.Texts)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNoModel) || errors.Is(err, classifier.ErrUntrained) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"predictions": predictions})
}

func (s *Service) handleModels(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.OutputDir())
	if err != nil {
		if os.IsNotExist(err) {
			json.NewEncoder(w).Encode(map[string]any{"artifacts": []any{}})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type artifact struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	}
	artifacts := make([]artifact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, artifact{Name: filepath.Base(entry.Name()), Size: info.Size()})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"artifacts": artifacts})
}
