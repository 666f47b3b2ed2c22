package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/config"
	"docrag/internal/llm"
)

func writeConfig(t *testing.T) (cfgFile, storePath string) {
	t.Helper()
	dir := t.TempDir()
	storePath = filepath.Join(dir, "chunks.json")
	cfgFile = filepath.Join(dir, "config.yaml")
	yml := "store:\n  type: file\n  path: " + storePath + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfgFile, []byte(yml), 0o644))
	t.Setenv("DOCRAG_STORE_PATH", "")
	return cfgFile, storePath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIngestThenAsk(t *testing.T) {
	cfgFile, storePath := writeConfig(t)
	doc := filepath.Join(t.TempDir(), "go.txt")
	require.NoError(t, os.WriteFile(doc, []byte("Go was released in 2009 by Google. It compiles quickly."), 0o644))

	out, err := run(t, "--config", cfgFile, "ingest", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested 1 chunks")
	assert.FileExists(t, storePath)

	out, err = run(t, "--config", cfgFile, "ask", "when", "was", "Go", "released?")
	require.NoError(t, err)
	assert.Contains(t, out, "Go was released in 2009 by Google.")
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "txt_")

	out, err = run(t, "--config", cfgFile, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, `"chunks": 1`)
}

func TestIngest_UnsupportedOnly(t *testing.T) {
	cfgFile, _ := writeConfig(t)
	doc := filepath.Join(t.TempDir(), "sheet.ods")
	require.NoError(t, os.WriteFile(doc, []byte("x"), 0o644))

	_, err := run(t, "--config", cfgFile, "ingest", doc)
	assert.ErrorContains(t, err, "no supported documents")
}

func TestBuildApp_UnknownComponents(t *testing.T) {
	base := func() *config.AppConfig {
		cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		cfg.Store.Type = "memory"
		return cfg
	}
	logger := newLogger(config.LogConfig{Level: "error"}, false, &bytes.Buffer{})

	cfg := base()
	_, err := buildApp(context.Background(), cfg, logger)
	require.NoError(t, err)

	cfg = base()
	cfg.Embedder.Type = "word2vec"
	_, err = buildApp(context.Background(), cfg, logger)
	assert.ErrorContains(t, err, "unknown embedder")

	cfg = base()
	cfg.LLM.Type = "oracle"
	_, err = buildApp(context.Background(), cfg, logger)
	assert.ErrorContains(t, err, "unknown llm")

	cfg = base()
	cfg.Store.Type = "qdrant"
	_, err = buildApp(context.Background(), cfg, logger)
	assert.ErrorContains(t, err, "unknown store")
}

func TestBuildCompleter_UsesConfiguredRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After-Ms", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_error"}}`))
	}))
	t.Cleanup(srv.Close)
	t.Setenv("TEST_LLM_KEY", "sk-test")

	for _, retries := range []int{0, 2} {
		calls.Store(0)
		completer, err := buildCompleter(config.LLMConfig{
			Type: "openai",
			OpenAI: &config.OpenAILLMConfig{
				BaseURL:     srv.URL,
				APIKeyEnv:   "TEST_LLM_KEY",
				Model:       "test-chat",
				TimeoutSecs: 5,
				MaxRetries:  &retries,
			},
		})
		require.NoError(t, err)

		_, err = completer.Complete(context.Background(), llm.Prompt{Question: "q"})
		require.Error(t, err)
		assert.Equal(t, int32(retries+1), calls.Load(), "max_retries=%d", retries)
	}
}

func TestBuildApp_MalformedSnapshotIsFatal(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Store.Path = filepath.Join(t.TempDir(), "chunks.json")
	require.NoError(t, os.WriteFile(cfg.Store.Path, []byte("{broken"), 0o644))

	_, err = buildApp(context.Background(), cfg, newLogger(cfg.Log, false, &bytes.Buffer{}))
	assert.ErrorContains(t, err, "parse snapshot")
}
