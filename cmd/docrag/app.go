package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docrag/internal/chunker"
	"docrag/internal/config"
	"docrag/internal/crawler"
	"docrag/internal/embedding"
	"docrag/internal/embedding/hashing"
	"docrag/internal/embedding/openai"
	"docrag/internal/extract"
	"docrag/internal/ingest"
	"docrag/internal/llm"
	"docrag/internal/llm/extractive"
	llmopenai "docrag/internal/llm/openai"
	"docrag/internal/service"
	"docrag/internal/vectorstore"
	"docrag/internal/vectorstore/file"
	"docrag/internal/vectorstore/memory"
)

type app struct {
	cfg   *config.AppConfig
	log   *slog.Logger
	store vectorstore.Storage
	svc   *service.RAGService
}

func buildApp(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*app, error) {
	emb, err := buildEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	batcher := embedding.NewBatcher(emb, embedding.BatcherConfig{
		BatchSize:         cfg.Embedder.BatchSize,
		Pause:             time.Duration(cfg.Embedder.PauseMillis()) * time.Millisecond,
		RequestsPerMinute: cfg.Embedder.RequestsPerMinute,
		MaxRetries:        cfg.Embedder.Retries(),
		Timeout:           time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
		Logger:            logger,
	})

	ch, err := buildChunker(cfg.Chunker)
	if err != nil {
		return nil, err
	}

	var st vectorstore.Storage
	switch cfg.Store.Type {
	case "file", "":
		st = file.New(cfg.Store.Path, logger)
	case "memory":
		st = memory.NewStorage()
	default:
		return nil, fmt.Errorf("unknown store: %s", cfg.Store.Type)
	}
	if err := st.Load(ctx); err != nil {
		return nil, err
	}

	completer, err := buildCompleter(cfg.LLM)
	if err != nil {
		return nil, err
	}

	fetcher := crawler.NewFetcher(crawler.FetcherConfig{
		Timeout:   time.Duration(cfg.Crawler.TimeoutSecs) * time.Second,
		MaxBytes:  cfg.Crawler.MaxBytes,
		UserAgent: cfg.Crawler.UserAgent,
	})
	cr := crawler.New(fetcher, crawler.Config{
		Workers: cfg.Crawler.Workers,
		Scope:   crawler.Scope(cfg.Crawler.Scope),
		Logger:  logger,
	})

	svc := service.NewRAGService(service.Deps{
		Ingester:  ingest.New(ch, batcher, st, logger),
		Embedder:  batcher,
		Store:     st,
		Crawler:   cr,
		Extractor: extract.NewRegistry(),
		Completer: completer,
	}, service.Options{
		TopK:          cfg.Retriever.TopK,
		MaxPages:      cfg.Crawler.MaxPages,
		MaxPagesLimit: cfg.Crawler.MaxPagesLimit,
	}, logger)

	return &app{cfg: cfg, log: logger, store: st, svc: svc}, nil
}

func buildEmbedder(cfg config.EmbedderConfig) (embedding.Embedder, error) {
	switch cfg.Type {
	case "hashing", "":
		dim := 0
		if cfg.Hashing != nil {
			dim = cfg.Hashing.Dimension
		}
		return hashing.NewEmbedder(dim), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func buildChunker(cfg config.ChunkerConfig) (chunker.Chunker, error) {
	switch cfg.Type {
	case "window", "":
		return chunker.NewWindowChunker(cfg.Size, cfg.Overlap)
	case "sentence":
		return chunker.NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Type)
	}
}

func buildCompleter(cfg config.LLMConfig) (llm.Completer, error) {
	switch cfg.Type {
	case "extractive", "":
		return extractive.New(cfg.MaxSentences), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai llm config missing")
		}
		client, err := llmopenai.NewClient(llmopenai.Config{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKeyEnv:   cfg.OpenAI.APIKeyEnv,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			Timeout:     time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			MaxRetries:  cfg.OpenAI.Retries(),
		})
		if err != nil {
			return nil, fmt.Errorf("openai llm init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown llm: %s", cfg.Type)
	}
}
