package repository

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/standings/internal/domain/types"
	"github.com/okian/standings/pkg/metrics"
)

// Instrumented wraps a Store with latency metrics and a span per call.
type Instrumented struct {
	next    Store
	backend string
	tracer  trace.Tracer
}

// Instrument wraps next. backend labels the metrics.
func Instrument(next Store, backend string) *Instrumented {
	return &Instrumented{
		next:    next,
		backend: backend,
		tracer:  otel.Tracer("github.com/okian/standings/repository"),
	}
}

// Unwrap returns the wrapped store.
func (s *Instrumented) Unwrap() Store { return s.next }

func (s *Instrumented) start(ctx context.Context, op string) (context.Context, trace.Span, time.Time) {
	ctx, span := s.tracer.Start(ctx, "Store."+op,
		trace.WithAttributes(attribute.String("store.backend", s.backend)))
	return ctx, span, time.Now()
}

func (s *Instrumented) end(span trace.Span, op string, start time.Time, err error) {
	metrics.RecordStoreOp(s.backend, op, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Instrumented) Ranking(ctx context.Context) (types.Ranking, error) {
	ctx, span, t := s.start(ctx, "ranking")
	r, err := s.next.Ranking(ctx)
	span.SetAttributes(attribute.Int("store.entries", len(r)))
	s.end(span, "ranking", t, err)
	return r, err
}

func (s *Instrumented) Add(ctx context.Context, name string, score int64) (types.Entry, error) {
	ctx, span, t := s.start(ctx, "add")
	e, err := s.next.Add(ctx, name, score)
	span.SetAttributes(attribute.String("score.id", e.ID))
	s.end(span, "add", t, err)
	return e, err
}

func (s *Instrumented) Update(ctx context.Context, id, name string, score int64) (types.Entry, error) {
	ctx, span, t := s.start(ctx, "update")
	span.SetAttributes(attribute.String("score.id", id))
	e, err := s.next.Update(ctx, id, name, score)
	s.end(span, "update", t, err)
	return e, err
}

func (s *Instrumented) Delete(ctx context.Context, id string) error {
	ctx, span, t := s.start(ctx, "delete")
	span.SetAttributes(attribute.String("score.id", id))
	err := s.next.Delete(ctx, id)
	s.end(span, "delete", t, err)
	return err
}

func (s *Instrumented) Clear(ctx context.Context) (int, error) {
	ctx, span, t := s.start(ctx, "clear")
	n, err := s.next.Clear(ctx)
	s.end(span, "clear", t, err)
	return n, err
}

func (s *Instrumented) Count(ctx context.Context) (int, error) {
	ctx, span, t := s.start(ctx, "count")
	n, err := s.next.Count(ctx)
	s.end(span, "count", t, err)
	return n, err
}

func (s *Instrumented) Close() error {
	return s.next.Close()
}
