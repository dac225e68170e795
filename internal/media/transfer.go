package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/vidfriends/videotube/internal/logging"
)

// ObjectStore persists uploaded objects and removes them by key prefix.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
}

// TransferConfig tunes uploads and remote deletion.
type TransferConfig struct {
	UploadTimeout   time.Duration
	DeleteRetries   int
	RetryInterval   time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Transfer moves locally staged files into the object store.
type Transfer struct {
	store   ObjectStore
	prober  Prober
	breaker *gobreaker.CircuitBreaker
	cfg     TransferConfig
	logger  *zap.Logger
	newID   func() string
}

// NewTransfer constructs a Transfer. A nil prober skips metadata extraction.
func NewTransfer(store ObjectStore, prober Prober, cfg TransferConfig, logger *zap.Logger) *Transfer {
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 2 * time.Minute
	}
	if cfg.DeleteRetries < 0 {
		cfg.DeleteRetries = 0
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 250 * time.Millisecond
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Transfer{
		store:  store,
		prober: prober,
		cfg:    cfg,
		logger: logger,
		newID:  uuid.NewString,
	}
	t.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "object-store",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return t
}

// Upload stores the file at localPath and returns the resulting asset. The
// local file is removed whether or not the upload succeeds.
func (t *Transfer) Upload(ctx context.Context, localPath string) (_ Asset, err error) {
	ctx, span := logging.StartSpan(ctx, "media.upload")
	defer func() {
		span.Fail(err)
		span.End()
	}()

	if strings.TrimSpace(localPath) == "" {
		return Asset{}, ErrNoFile
	}
	defer RemoveLocal(ctx, localPath)

	f, err := os.Open(localPath)
	if err != nil {
		return Asset{}, fmt.Errorf("open staged file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Asset{}, fmt.Errorf("stat staged file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(localPath))
	contentType, err := detectContentType(f, ext)
	if err != nil {
		return Asset{}, err
	}
	kind := KindFor(contentType)

	var meta Metadata
	if t.prober != nil {
		meta, err = t.prober.Probe(ctx, localPath, kind)
		if err != nil {
			t.logger.Warn("probe staged file", zap.String("path", localPath), zap.String("kind", string(kind)), zap.Error(err))
			meta = Metadata{}
		}
	}

	publicID := t.newID()
	key := string(kind) + "/" + publicID + ext

	uploadCtx, cancel := context.WithTimeout(ctx, t.cfg.UploadTimeout)
	defer cancel()

	out, err := t.breaker.Execute(func() (interface{}, error) {
		return t.store.Put(uploadCtx, key, f, contentType)
	})
	if err != nil {
		t.logger.Error("upload to object store", zap.String("key", key), zap.Error(err))
		return Asset{}, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	return Asset{
		URL:         out.(string),
		PublicID:    publicID,
		Kind:        kind,
		ContentType: contentType,
		Bytes:       info.Size(),
		Metadata:    meta,
	}, nil
}

// Remove deletes every stored object for publicID under kind. Failures are
// retried and then logged; nothing is reported to the caller.
func (t *Transfer) Remove(ctx context.Context, publicID string, kind Kind) {
	publicID = strings.TrimSpace(publicID)
	if publicID == "" {
		return
	}
	if kind == "" {
		t.logger.Warn("remove stored object without a kind", zap.String("publicId", publicID))
		return
	}
	prefix := string(kind) + "/" + publicID

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = t.cfg.RetryInterval
	retrier := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(t.cfg.DeleteRetries)), ctx)

	var removed int
	err := backoff.Retry(func() error {
		n, err := t.store.DeleteByPrefix(ctx, prefix)
		removed = n
		return err
	}, retrier)
	if err != nil {
		t.logger.Warn("remove stored object", zap.String("prefix", prefix), zap.Error(err))
		return
	}
	t.logger.Debug("removed stored object", zap.String("prefix", prefix), zap.Int("objects", removed))
}

// detectContentType sniffs the file head and falls back to the extension when
// the content is not recognised. The reader is rewound afterwards.
func detectContentType(f io.ReadSeeker, ext string) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read staged file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind staged file: %w", err)
	}

	sniffed := http.DetectContentType(head[:n])
	if !strings.HasPrefix(sniffed, "application/octet-stream") && !strings.HasPrefix(sniffed, "text/plain") {
		return sniffed, nil
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt, nil
	}
	return sniffed, nil
}
