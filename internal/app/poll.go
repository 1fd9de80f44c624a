package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/internal/domain/types"
	"github.com/okian/standings/pkg/logger"
	"github.com/okian/standings/pkg/metrics"
)

// Poll outcomes.
const (
	outcomeApplied   = "applied"
	outcomeFailed    = "failed"
	outcomeMalformed = "malformed"
)

// poll runs one fetch-validate-apply cycle. It is only ever called from the
// single poll worker, so polls never overlap.
func (s *Service) poll(ctx context.Context, t model.Trigger) error {
	ctx, span := s.tracer.Start(ctx, "Service.Poll", trace.WithAttributes(
		attribute.String("poll.reason", string(t.Reason)),
	))
	defer span.End()

	if err := s.engine.BeginFetch(ctx); err != nil {
		return err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout())
	defer cancel()

	start := time.Now()
	ranking, err := s.store.Ranking(fetchCtx)
	metrics.RecordFetchLatency(time.Since(start))
	if err == nil {
		err = ranking.Validate()
	}
	if err != nil {
		outcome := outcomeFailed
		if errors.Is(err, types.ErrMalformedRanking) {
			outcome = outcomeMalformed
		}
		metrics.RecordPoll(outcome)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		if ferr := s.engine.Fail(ctx, err); ferr != nil {
			return ferr
		}
		return err
	}

	metrics.RecordPoll(outcomeApplied)
	span.SetAttributes(attribute.Int("ranking.size", len(ranking)))
	return s.engine.Submit(ctx, ranking)
}

// tick queues a poll every interval until ctx is done.
func (s *Service) tick(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.queue.Enqueue(ctx, model.Trigger{Reason: model.ReasonTick, At: s.now()})
		}
	}
}

// watchMutations turns bus notifications into immediate polls. Duplicates
// are dropped by ID; bursts beyond the limiter are left to the next tick.
func (s *Service) watchMutations(ctx context.Context, in <-chan model.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-in:
			if !ok {
				return
			}
			if s.deduper.SeenAndRecord(ctx, n.ID) {
				metrics.RecordNotificationDuplicate()
				s.logger.Debug(ctx, "duplicate notification", logger.String("id", n.ID))
				continue
			}
			if !s.limiter.Allow() {
				s.logger.Debug(ctx, "mutation poll rate limited", logger.String("id", n.ID))
				continue
			}
			s.queue.Enqueue(ctx, model.Trigger{Reason: model.ReasonMutation, At: s.now(), NotificationID: n.ID})
		}
	}
}
