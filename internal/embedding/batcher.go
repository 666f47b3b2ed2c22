package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"docrag/internal/domain"
)

// BatcherConfig controls how a Batcher paces calls to its provider.
type BatcherConfig struct {
	// BatchSize is the number of texts embedded concurrently. Default 20.
	BatchSize int
	// Pause is slept between consecutive sub-batches.
	Pause time.Duration
	// RequestsPerMinute enables a token bucket in front of every provider
	// call when positive.
	RequestsPerMinute int
	// MaxRetries bounds retries of transient provider failures.
	MaxRetries int
	// Timeout bounds each individual provider call. Zero disables it.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Batcher embeds many texts through a single-text provider.
type Batcher struct {
	provider Embedder
	cfg      BatcherConfig
	limiter  *rate.Limiter
	log      *slog.Logger

	// overridable in tests
	sleep   func(ctx context.Context, d time.Duration) error
	backoff func(attempt int) time.Duration
}

// NewBatcher wraps provider with batching, pacing and retries.
func NewBatcher(provider Embedder, cfg BatcherConfig) *Batcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	b := &Batcher{
		provider: provider,
		cfg:      cfg,
		log:      cfg.Logger.With("component", "embedding", "provider", provider.Name()),
		sleep:    sleepCtx,
		backoff:  retryDelay,
	}
	if cfg.RequestsPerMinute > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), 1)
	}
	return b
}

// Name returns the underlying provider name.
func (b *Batcher) Name() string { return b.provider.Name() }

// EmbedQuery embeds a single text, typically a question.
func (b *Batcher) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	v, err := b.embedOne(ctx, text)
	if err != nil {
		return nil, domain.Upstream(err, "embed query")
	}
	return v, nil
}

// EmbedBatch returns one vector per text, in input order. Texts are sent in
// sub-batches of BatchSize whose requests run concurrently; sub-batches run
// one after another separated by Pause. Any failure fails the whole call.
func (b *Batcher) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for start := 0; start < len(texts); start += b.cfg.BatchSize {
		if start > 0 && b.cfg.Pause > 0 {
			if err := b.sleep(ctx, b.cfg.Pause); err != nil {
				return nil, err
			}
		}
		end := start + b.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				v, err := b.embedOne(gctx, texts[i])
				if err != nil {
					return fmt.Errorf("text %d: %w", i, err)
				}
				out[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, domain.Upstream(err, "embed batch [%d:%d]", start, end)
		}
		b.log.Debug("embedded sub-batch", "start", start, "end", end, "total", len(texts))
	}
	if err := checkDimensions(out); err != nil {
		return nil, domain.Upstream(err, "embed batch")
	}
	return out, nil
}

func (b *Batcher) embedOne(ctx context.Context, text string) ([]float64, error) {
	var lastErr error
	for attempt := 0; attempt <= b.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			d := b.backoff(attempt - 1)
			b.log.Warn("retrying embedding request", "attempt", attempt, "delay", d, "err", lastErr)
			if err := b.sleep(ctx, d); err != nil {
				return nil, err
			}
		}
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		v, err := b.call(ctx, text)
		if err == nil {
			if len(v) == 0 {
				return nil, fmt.Errorf("%s returned an empty embedding", b.provider.Name())
			}
			return v, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", b.cfg.MaxRetries+1, lastErr)
}

func (b *Batcher) call(ctx context.Context, text string) ([]float64, error) {
	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}
	return b.provider.Embed(ctx, text)
}

func checkDimensions(vecs [][]float64) error {
	for i := 1; i < len(vecs); i++ {
		if len(vecs[i]) != len(vecs[0]) {
			return fmt.Errorf("%w: vector %d has %d values, vector 0 has %d",
				domain.ErrDimensionMismatch, i, len(vecs[i]), len(vecs[0]))
		}
	}
	return nil
}

// retryDelay is exponential backoff from 200ms capped at 5s, plus up to
// 50% jitter.
func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 10 {
		attempt = 10
	}
	base := 200 * time.Millisecond
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d + time.Duration(rand.Int64N(int64(d)/2+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
