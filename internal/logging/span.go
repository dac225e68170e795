package logging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Span times one unit of work inside a request and logs how it ended.
type Span struct {
	name   string
	logger *zap.Logger
	start  time.Time
	failed bool
}

// StartSpan derives a child span from ctx. The trace id is inherited from the
// enclosing span, then the request id, and minted only when both are absent.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	m := metaFrom(ctx)
	parent := m.spanID
	if m.traceID == "" {
		m.traceID = m.requestID
	}
	if m.traceID == "" {
		m.traceID = uuid.NewString()
	}
	m.spanID = uuid.NewString()

	fields := []zap.Field{
		zap.String("trace_id", m.traceID),
		zap.String("span_id", m.spanID),
		zap.String("span_name", name),
	}
	if parent != "" {
		fields = append(fields, zap.String("parent_span_id", parent))
	}
	logger := FromContext(ctx).With(fields...)

	ctx = context.WithValue(ctx, metaKey, m)
	ctx = WithLogger(ctx, logger)

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// Fail records the error that ended the span. A nil error is ignored.
func (s *Span) Fail(err error) {
	if s == nil || err == nil {
		return
	}
	s.failed = true
	s.logger.Warn("span failed", zap.Duration("duration", time.Since(s.start)), zap.Error(err))
}

// End emits a debug entry with the span duration unless Fail already reported it.
func (s *Span) End() {
	if s == nil || s.failed {
		return
	}
	s.logger.Debug("span completed", zap.Duration("duration", time.Since(s.start)))
}
