package media

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Remover deletes stored objects by public identifier.
type Remover interface {
	Remove(ctx context.Context, publicID string, kind Kind)
}

// JanitorConfig controls the concurrency characteristics of the janitor.
type JanitorConfig struct {
	QueueSize  int
	Workers    int
	JobTimeout time.Duration
}

// Janitor deletes superseded or orphaned objects off the request path.
type Janitor struct {
	remover Remover
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan discardJob
	wg     sync.WaitGroup
	once   sync.Once
}

type discardJob struct {
	publicID string
	kind     Kind
}

// NewJanitor starts the worker pool.
func NewJanitor(remover Remover, cfg JanitorConfig, logger *zap.Logger) *Janitor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	j := &Janitor{
		remover: remover,
		logger:  logger,
		timeout: cfg.JobTimeout,
		jobs:    make(chan discardJob, cfg.QueueSize),
	}

	j.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go j.worker()
	}
	return j
}

// Discard schedules removal of the object behind url, using the kind recorded
// in the URL itself. When the queue is full or the janitor is shut down the
// removal runs inline.
func (j *Janitor) Discard(ctx context.Context, url string) {
	publicID, kind := LocateURL(url)
	if publicID == "" {
		return
	}
	if kind == "" {
		j.logger.Warn("cannot discard object without a kind segment", zap.String("url", url))
		return
	}
	job := discardJob{publicID: publicID, kind: kind}

	j.mu.RLock()
	if !j.closed {
		select {
		case j.jobs <- job:
			j.mu.RUnlock()
			return
		default:
		}
	}
	j.mu.RUnlock()

	j.logger.Debug("janitor queue unavailable, removing inline", zap.String("publicId", publicID))
	j.run(context.WithoutCancel(ctx), job)
}

// Shutdown stops accepting work and waits for queued removals to finish.
func (j *Janitor) Shutdown(ctx context.Context) error {
	j.once.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.jobs)
		j.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (j *Janitor) worker() {
	defer j.wg.Done()
	for job := range j.jobs {
		j.run(context.Background(), job)
	}
}

func (j *Janitor) run(parent context.Context, job discardJob) {
	if j.remover == nil {
		j.logger.Error("janitor has no remover", zap.String("publicId", job.publicID))
		return
	}
	ctx, cancel := context.WithTimeout(parent, j.timeout)
	defer cancel()
	j.remover.Remove(ctx, job.publicID, job.kind)
}
