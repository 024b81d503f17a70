package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/livinglib/internal/pkg/errors"
)

const probeText = "embedding readiness probe"

type EmbeddingOptions struct {
	Model     string
	Dimension int
	BatchSize int
	// Concurrent marks the backend as safe for parallel calls. Otherwise
	// every call is serialised.
	Concurrent bool
	Timeout    time.Duration
	// RetryInterval is the wait after a failed probe before Embed probes
	// the backend again.
	RetryInterval time.Duration
}

// EmbeddingProvider wraps a backend with a readiness lifecycle:
// NewEmbeddingProvider, Init, Embed, Close. Any call outside the ready state
// fails with ErrUnavailable.
type EmbeddingProvider struct {
	backend IEmbedProvider
	opts    EmbeddingOptions
	now     func() time.Time

	callMu sync.Mutex
	initMu sync.Mutex

	mu        sync.RWMutex
	ready     bool
	closed    bool
	initErr   error
	lastProbe time.Time
}

func NewEmbeddingProvider(backend IEmbedProvider, opts EmbeddingOptions) *EmbeddingProvider {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 30 * time.Second
	}
	return &EmbeddingProvider{backend: backend, opts: opts, now: time.Now}
}

// Init probes the backend and records the outcome. Once ready, later calls
// return nil. After a failure the recorded error is returned until
// RetryInterval has passed, then the backend is probed again.
func (p *EmbeddingProvider) Init(ctx context.Context) error {
	p.initMu.Lock()
	defer p.initMu.Unlock()

	p.mu.RLock()
	ready, closed, initErr, last := p.ready, p.closed, p.initErr, p.lastProbe
	p.mu.RUnlock()
	switch {
	case closed:
		return fmt.Errorf("embedding provider closed: %w", appErr.ErrUnavailable)
	case ready:
		return nil
	case initErr != nil && p.now().Sub(last) < p.opts.RetryInterval:
		return initErr
	}

	err := p.probe(ctx)
	p.mu.Lock()
	p.lastProbe = p.now()
	p.initErr = err
	p.ready = err == nil && !p.closed
	p.mu.Unlock()
	if err != nil {
		logutil.GetLogger(ctx).Error("embedding provider init failed",
			zap.String("backend", p.backend.Name()),
			zap.String("model", p.opts.Model),
			zap.Duration("retry_after", p.opts.RetryInterval),
			zap.Error(err))
		return err
	}
	logutil.GetLogger(ctx).Info("embedding provider ready",
		zap.String("backend", p.backend.Name()),
		zap.String("model", p.opts.Model),
		zap.Int("dimension", p.opts.Dimension))
	return nil
}

// retryDue reports whether a failed Init may be attempted again.
func (p *EmbeddingProvider) retryDue() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.ready && !p.closed && p.initErr != nil && p.now().Sub(p.lastProbe) >= p.opts.RetryInterval
}

func (p *EmbeddingProvider) probe(ctx context.Context) error {
	if p.backend == nil {
		return fmt.Errorf("no embedding backend: %w", appErr.ErrUnavailable)
	}
	vecs, err := p.call(ctx, []string{probeText}, TaskQuery)
	if err != nil {
		return fmt.Errorf("probe embedding backend: %w", err)
	}
	return p.checkVectors(vecs, 1)
}

// Refresh re-probes a failed backend when a retry is due and reports
// readiness.
func (p *EmbeddingProvider) Refresh(ctx context.Context) bool {
	if p.retryDue() {
		_ = p.Init(ctx)
	}
	return p.Ready()
}

// Ready reports whether Embed can be served.
func (p *EmbeddingProvider) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ready && !p.closed
}

// Err returns the reason the provider is not ready, or nil.
func (p *EmbeddingProvider) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	switch {
	case p.closed:
		return fmt.Errorf("embedding provider closed: %w", appErr.ErrUnavailable)
	case p.initErr != nil:
		return fmt.Errorf("embedding provider init failed: %v: %w", p.initErr, appErr.ErrUnavailable)
	case !p.ready:
		return fmt.Errorf("embedding provider not initialized: %w", appErr.ErrUnavailable)
	}
	return nil
}

func (p *EmbeddingProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.ready = false
	return nil
}

func (p *EmbeddingProvider) ModelName() string {
	return p.opts.Model
}

func (p *EmbeddingProvider) Dimension() int {
	return p.opts.Dimension
}

// Embed returns one vector per text in input order. Texts are sent in
// batches of at most BatchSize.
func (p *EmbeddingProvider) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if p.retryDue() {
		_ = p.Init(ctx)
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.opts.BatchSize {
		end := start + p.opts.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := p.call(ctx, texts[start:end], taskType)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d,%d): %v: %w", start, end, err, appErr.ErrUpstream)
		}
		if err := p.checkVectors(vecs, end-start); err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (p *EmbeddingProvider) call(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if !p.opts.Concurrent {
		p.callMu.Lock()
		defer p.callMu.Unlock()
	}
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}
	return p.backend.Embed(ctx, &EmbedRequest{
		Model:     p.opts.Model,
		Texts:     texts,
		TaskType:  taskType,
		Dimension: p.opts.Dimension,
	})
}

func (p *EmbeddingProvider) checkVectors(vecs [][]float32, want int) error {
	if len(vecs) != want {
		return fmt.Errorf("got %d embeddings for %d texts: %w", len(vecs), want, appErr.ErrUpstream)
	}
	if p.opts.Dimension <= 0 {
		return nil
	}
	for i, v := range vecs {
		if len(v) != p.opts.Dimension {
			return fmt.Errorf("embedding %d has dimension %d, expected %d: %w", i, len(v), p.opts.Dimension, appErr.ErrUpstream)
		}
	}
	return nil
}
