package director

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/standings/internal/domain/types"
	"github.com/okian/standings/pkg/logger"
	"github.com/okian/standings/pkg/metrics"
)

// ErrEngineStopped is returned by calls made after the engine loop exited.
var ErrEngineStopped = errors.New("engine stopped")

// Sink receives every frame the engine produces, in order.
type Sink interface {
	Publish(f Frame)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Frame)

// Publish calls f.
func (f SinkFunc) Publish(fr Frame) { f(fr) }

// Timer is a scheduled callback.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so tests can drive the engine deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

type eventKind uint8

const (
	evFetch eventKind = iota
	evRanking
	evFailure
	evSettle
	evDelayed
	evView
	evRender
)

type event struct {
	kind    eventKind
	ranking types.Ranking
	err     error
	gen     uint64
	reply   chan any
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock replaces the wall clock.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithSink sets where frames go.
func WithSink(s Sink) EngineOption {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine runs a Director on a single goroutine. Poll results, timer
// callbacks and view requests are all serialized through one channel.
type Engine struct {
	director *Director
	clock    Clock
	sink     Sink
	log      logger.Logger

	events chan event
	done   chan struct{}
	exited chan struct{}
	once   sync.Once

	// owned by the loop
	timers map[Timer]struct{}
	seq    uint64
}

// NewEngine wraps d. Call Run to start the loop.
func NewEngine(d *Director, opts ...EngineOption) *Engine {
	e := &Engine{
		director: d,
		clock:    realClock{},
		sink:     SinkFunc(func(Frame) {}),
		log:      logger.Nop(),
		events:   make(chan event, 16),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
		timers:   make(map[Timer]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run processes events until ctx is cancelled or Stop is called. Pending
// timers are stopped before it returns; no frame is published afterwards.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.exited)
	defer e.stopTimers()
	e.recordPhase()

	for {
		select {
		case <-ctx.Done():
			e.Stop()
			return ctx.Err()
		case <-e.done:
			return nil
		case ev := <-e.events:
			e.handle(ctx, ev)
		}
	}
}

// Stop ends the loop. It is safe to call more than once.
func (e *Engine) Stop() {
	e.once.Do(func() { close(e.done) })
}

// Done is closed once Run has returned.
func (e *Engine) Done() <-chan struct{} { return e.exited }

func (e *Engine) post(ctx context.Context, ev event) error {
	select {
	case <-e.done:
		return ErrEngineStopped
	default:
	}
	select {
	case e.events <- ev:
		return nil
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) request(ctx context.Context, ev event) (any, error) {
	ev.reply = make(chan any, 1)
	if err := e.post(ctx, ev); err != nil {
		return nil, err
	}
	select {
	case v := <-ev.reply:
		return v, nil
	case <-e.exited:
		return nil, ErrEngineStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// BeginFetch marks a poll in flight.
func (e *Engine) BeginFetch(ctx context.Context) error {
	return e.post(ctx, event{kind: evFetch})
}

// Submit hands a validated ranking to the loop.
func (e *Engine) Submit(ctx context.Context, r types.Ranking) error {
	return e.post(ctx, event{kind: evRanking, ranking: r.Clone()})
}

// Fail reports a failed poll.
func (e *Engine) Fail(ctx context.Context, err error) error {
	return e.post(ctx, event{kind: evFailure, err: err})
}

// View returns the display state sampled inside the loop.
func (e *Engine) View(ctx context.Context) (View, error) {
	v, err := e.request(ctx, event{kind: evView})
	if err != nil {
		return View{}, err
	}
	return v.(View), nil
}

// RenderFrame returns a frame that brings a fresh client up to date.
func (e *Engine) RenderFrame(ctx context.Context) (Frame, error) {
	v, err := e.request(ctx, event{kind: evRender})
	if err != nil {
		return Frame{}, err
	}
	return v.(Frame), nil
}

func (e *Engine) handle(ctx context.Context, ev event) {
	d := e.director
	now := e.clock.Now()

	switch ev.kind {
	case evFetch:
		d.BeginFetch()

	case evRanking:
		e.stopTimers()
		plan := d.Apply(now, ev.ranking)
		e.recordPlan(plan)
		e.publish(d.TransitionFrame(now, plan))
		e.log.Debug(ctx, "ranking applied",
			logger.Int64("generation", int64(plan.Generation)),
			logger.String("mode", string(plan.Mode)),
			logger.Int("entries", len(plan.Rows)),
			logger.Int("removed", len(plan.Removed)),
			logger.Bool("crossing", plan.Crossing),
		)
		if plan.Empty {
			break
		}
		if plan.Duration <= 0 {
			e.settle(ctx, plan.Generation)
			break
		}
		gen := plan.Generation
		e.schedule(plan.Duration, event{kind: evSettle, gen: gen})

	case evFailure:
		e.stopTimers()
		gen := d.Fail(now, ev.err)
		e.publish(d.ErrorFrame(now))
		e.log.Warn(ctx, "poll failed, keeping last ranking",
			logger.Int64("generation", int64(gen)),
			logger.Error(ev.err),
		)

	case evSettle:
		e.settle(ctx, ev.gen)

	case evDelayed:
		bursts, ok := d.FlushDelayed(ev.gen)
		if ok && len(bursts) > 0 {
			e.publishBursts(now, bursts)
		}

	case evView:
		ev.reply <- d.View(now)

	case evRender:
		f := d.RenderFrame(now)
		f.Seq = e.seq
		ev.reply <- f
	}
	e.recordPhase()
}

func (e *Engine) settle(ctx context.Context, gen uint64) {
	d := e.director
	bursts, ok := d.Settle(gen)
	if !ok {
		e.log.Debug(ctx, "stale settle ignored", logger.Int64("generation", int64(gen)))
		return
	}
	if len(bursts) > 0 {
		e.publishBursts(e.clock.Now(), bursts)
	}
	if d.phase == PhaseCelebrationPending {
		e.schedule(d.BurstDelay(), event{kind: evDelayed, gen: gen})
	}
}

func (e *Engine) publishBursts(now time.Time, bursts []Burst) {
	for _, b := range bursts {
		metrics.RecordCelebration(b.Tier)
	}
	e.publish(e.director.CelebrateFrame(now, bursts))
}

// publish stamps f with the next sequence number. A render frame carries the
// number of the last frame published before it.
func (e *Engine) publish(f Frame) {
	e.seq++
	f.Seq = e.seq
	e.sink.Publish(f)
}

// schedule arms a timer whose callback re-enters the loop. Callbacks that
// fire after shutdown are dropped.
func (e *Engine) schedule(d time.Duration, ev event) {
	t := e.clock.AfterFunc(d, func() {
		select {
		case e.events <- ev:
		case <-e.done:
		}
	})
	e.timers[t] = struct{}{}
}

func (e *Engine) stopTimers() {
	for t := range e.timers {
		t.Stop()
		delete(e.timers, t)
	}
}

func (e *Engine) recordPlan(p Plan) {
	metrics.RecordTransition(string(p.Mode))
	metrics.UpdateRankingSize(len(p.Rows))
	metrics.UpdateSnapshotSize(e.director.SnapshotLen())
	for _, m := range p.Classified {
		for _, name := range m.Tags.Names() {
			metrics.RecordMovement(name)
		}
	}
}

func (e *Engine) recordPhase() {
	metrics.UpdateEnginePhase(e.director.Phase().String(), PhaseNames())
}
