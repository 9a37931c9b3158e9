package main

import (
	"context"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"textclass/classifier"
	"textclass/corpus"
	qhttp "textclass/http"
	"textclass/logging"
)

type Config struct {
	Strategy struct {
		Kind         string `yaml:"kind"`
		VocabSize    int    `yaml:"vocab_size"`
		EmbeddingDim int    `yaml:"embedding_dim"`
		HiddenDim    int    `yaml:"hidden_dim"`
		MaxLen       int    `yaml:"max_len"`
		OutputDir    string `yaml:"output_dir"`
		Seed         int64  `yaml:"seed"`
	} `yaml:"strategy"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Http struct {
		Port    int           `yaml:"port"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"http"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

func main() {
	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logging.Init(config.Log.Level, config.Log.File); err != nil {
		log.Fatalf("Failed to init logging: %v", err)
	}
	defer logging.Sync()

	if config.Database.Path == "" {
		config.Database.Path = "data/corpus.db"
	}
	if err := os.MkdirAll(filepath.Dir(config.Database.Path), 0o755); err != nil {
		logging.L().Fatal("failed to create data dir", zap.Error(err))
	}
	store, err := corpus.Open(config.Database.Path)
	if err != nil {
		logging.L().Fatal("failed to open corpus store", zap.Error(err))
	}
	defer store.Close()
	logging.L().Info("corpus store opened", zap.String("path", config.Database.Path))

	if config.Strategy.OutputDir == "" {
		config.Strategy.OutputDir = "models"
	}
	template := classifier.Config{
		Kind:         classifier.Kind(config.Strategy.Kind),
		VocabSize:    config.Strategy.VocabSize,
		EmbeddingDim: config.Strategy.EmbeddingDim,
		HiddenDim:    config.Strategy.HiddenDim,
		MaxLen:       config.Strategy.MaxLen,
		OutputDir:    config.Strategy.OutputDir,
		Seed:         config.Strategy.Seed,
	}

	if err := os.MkdirAll(template.OutputDir, 0o755); err != nil {
		logging.L().Fatal("failed to create artifact dir", zap.Error(err))
	}

	hub := qhttp.NewHub()
	svc, err := qhttp.NewService(template, store, hub)
	if err != nil {
		logging.L().Fatal("failed to build service", zap.Error(err))
	}

	// Pick up artifacts from an earlier run; fine if there are none yet.
	if err := svc.Reload(); err != nil {
		logging.L().Warn("no model loaded at startup", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	go func() {
		if err := qhttp.WatchArtifacts(ctx, svc); err != nil {
			logging.L().Warn("artifact watcher stopped", zap.Error(err))
		}
	}()

	serverConfig := qhttp.DefaultServerConfig()
	if config.Http.Port != 0 {
		serverConfig.Port = config.Http.Port
	}
	if config.Http.Timeout != 0 {
		serverConfig.Timeout = config.Http.Timeout
	}
	server := qhttp.NewServer(serverConfig, svc, hub)
	go func() {
		if err := server.Start(); err != nil && err != nethttp.ErrServerClosed {
			logging.L().Fatal("http server failed", zap.Error(err))
		}
	}()
	logging.L().Info("server started", zap.Int("port", serverConfig.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.L().Info("shutting down")

	if err := server.Stop(); err != nil {
		logging.L().Error("server forced to shutdown", zap.Error(err))
	}
}

func loadConfig(path string) (*Config, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config := &Config{}
	if err := yaml.Unmarshal(payload, config); err != nil {
		return nil, err
	}
	return config, nil
}
