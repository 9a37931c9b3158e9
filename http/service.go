package http

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"textclass/classifier"
	"textclass/corpus"
)

const predictionCacheSize = 1024

// ErrNoModel is returned by Predict when no strategy has been trained or
// loaded yet.
var ErrNoModel = errors.New("no model available")

// Prediction pairs a class index with its decoded label.
type Prediction struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

// Service owns the serving strategy. Strategies themselves are single-caller;
// the service serializes access with its own lock.
type Service struct {
	template classifier.Config
	store    *corpus.Store
	hub      *Hub

	mu       sync.RWMutex
	strategy classifier.Strategy

	cache *lru.Cache[string, Prediction]
}

// NewService creates a service around a strategy config template. The
// template's Kind is the default for training requests.
func NewService(template classifier.Config, store *corpus.Store, hub *Hub) (*Service, error) {
	cache, err := lru.New[string, Prediction](predictionCacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{template: template, store: store, hub: hub, cache: cache}, nil
}

// TrainRequest selects what to train and on which data. When Samples is
// empty the corpus store supplies the data.
type TrainRequest struct {
	Strategy  string          `json:"strategy"`
	TestRatio float64         `json:"test_ratio"`
	Seed      int64           `json:"seed"`
	Samples   []corpus.Sample `json:"samples,omitempty"`
}

// Train trains a fresh strategy, saves its artifacts and promotes it to
// serving.
func (s *Service) Train(req TrainRequest) (*classifier.Metrics, error) {
	samples := req.Samples
	if len(samples) == 0 {
		if s.store == nil {
			return nil, errors.New("no samples given and no corpus store configured")
		}
		var err error
		samples, err = s.store.All()
		if err != nil {
			return nil, err
		}
	}
	if len(samples) < 2 {
		return nil, fmt.Errorf("%d samples is not enough to train", len(samples))
	}

	cfg := s.template
	if req.Strategy != "" {
		cfg.Kind = classifier.Kind(req.Strategy)
	}
	if req.Seed != 0 {
		cfg.Seed = req.Seed
	}
	if s.hub != nil {
		kind := cfg.Kind
		cfg.OnEpoch = func(epoch int, loss float64) {
			s.hub.BroadcastEpoch(string(kind), epoch, loss)
		}
	}

	strategy, err := classifier.New(cfg)
	if err != nil {
		return nil, err
	}

	splitSeed := cfg.Seed
	if splitSeed == 0 {
		splitSeed = 42
	}
	train, test := corpus.Split(samples, req.TestRatio, splitSeed)
	trainTexts, trainLabels := corpus.Unzip(train)
	testTexts, testLabels := corpus.Unzip(test)

	metrics, err := strategy.Train(trainTexts, trainLabels, testTexts, testLabels)
	if err != nil {
		return nil, err
	}
	if err := strategy.SaveModel(); err != nil {
		return nil, err
	}

	s.promote(strategy)
	return metrics, nil
}

// Predict classifies texts with the serving strategy, consulting the
// prediction cache per text.
func (s *Service) Predict(texts []string) ([]Prediction, error) {
	s.mu.RLock()
	strategy := s.strategy
	s.mu.RUnlock()
	if strategy == nil {
		return nil, ErrNoModel
	}

	out := make([]Prediction, len(texts))
	var missTexts []string
	var missAt []int
	for i, text := range texts {
		if p, ok := s.cache.Get(text); ok {
			out[i] = p
			continue
		}
		missTexts = append(missTexts, text)
		missAt = append(missAt, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	s.mu.Lock()
	indices, err := strategy.Predict(missTexts)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	labels, err := strategy.DecodeLabels(indices)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	for j, i := range missAt {
		p := Prediction{Index: indices[j], Label: labels[j]}
		out[i] = p
		s.cache.Add(missTexts[j], p)
	}
	return out, nil
}

// Reload restores the serving strategy from the saved artifacts, e.g. after
// the artifact watcher sees new files.
func (s *Service) Reload() error {
	strategy, err := classifier.New(s.template)
	if err != nil {
		return err
	}
	if err := strategy.LoadModel(""); err != nil {
		return err
	}
	s.promote(strategy)
	return nil
}

// OutputDir returns the artifact root of the strategy template.
func (s *Service) OutputDir() string { return s.template.OutputDir }

func (s *Service) promote(strategy classifier.Strategy) {
	s.mu.Lock()
	s.strategy = strategy
	s.mu.Unlock()
	s.cache.Purge()
}
