// Package service wires the score store, the mutation bus, the poll
// pipeline and the display engine into one running unit, and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/okian/standings/internal/adapters/bus"
	"github.com/okian/standings/internal/adapters/http/display"
	eventqueue "github.com/okian/standings/internal/adapters/mq/queue"
	pollworker "github.com/okian/standings/internal/adapters/mq/worker"
	"github.com/okian/standings/internal/adapters/repository"
	"github.com/okian/standings/internal/config"
	"github.com/okian/standings/internal/domain/dedupe"
	"github.com/okian/standings/internal/domain/director"
	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/logger"
)

const workerShutdownTimeout = 5 * time.Second

// ErrNotStarted is returned by operations that need a running service.
var ErrNotStarted = errors.New("service not started")

// Service owns every long-running component of the display.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	store    repository.Store
	bus      bus.Bus
	deduper  dedupe.Deduper
	limiter  *rate.Limiter
	queue    *eventqueue.InMemoryQueue
	worker   *pollworker.InMemoryWorker
	director *director.Director
	engine   *director.Engine
	hub      *display.Hub

	clock director.Clock
	now   func() time.Time

	// State
	started    bool
	loopCancel context.CancelFunc
	workCancel context.CancelFunc
	hubCancel  context.CancelFunc
	wg         sync.WaitGroup

	logger logger.Logger
	tracer trace.Tracer
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration. Defaults come from config.New.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore uses st instead of opening the configured backend. The service
// still closes it on Stop.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithBus uses b instead of opening the configured backend. The service
// still closes it on Stop.
func WithBus(b bus.Bus) Option {
	return func(s *Service) {
		if b != nil {
			s.bus = b
		}
	}
}

// WithClock drives the display engine from c.
func WithClock(c director.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// New constructs a new Service. Nothing runs until Start.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:    config.New(context.Background()),
		clock:  director.RealClock(),
		tracer: otel.Tracer("github.com/okian/standings/app"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.now = s.clock.Now
	return s
}

// Start opens the store and the bus, then starts the engine, the display
// hub, the poll worker, the poll ticker and the mutation subscription. An
// initial poll is queued right away.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	s.logger.Info(ctx, "starting standings service...")

	if s.store == nil {
		st, err := repository.Open(ctx, s.cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = st
	}
	if s.bus == nil {
		b, err := bus.Open(s.cfg, s.logger)
		if err != nil {
			_ = s.store.Close()
			s.store = nil
			return fmt.Errorf("open bus: %w", err)
		}
		s.bus = b
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))
	s.limiter = rate.NewLimiter(rate.Limit(s.cfg.MutationPollRate), s.cfg.MutationPollBurst)
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.cfg.TriggerQueueSize))

	s.director = director.New(
		director.WithTopN(s.cfg.TopN),
		director.WithViewport(float64(s.cfg.ViewportWidth), float64(s.cfg.ViewportHeight)),
		director.WithTransition(s.cfg.Transition()),
		director.WithScoreTween(s.cfg.ScoreTween()),
		director.WithBurstDelay(s.cfg.BurstDelay()),
	)
	var hub *display.Hub
	s.engine = director.NewEngine(s.director,
		director.WithClock(s.clock),
		director.WithLogger(s.logger.Named("engine")),
		director.WithSink(director.SinkFunc(func(f director.Frame) { hub.Publish(f) })),
	)
	hub = display.NewHub(s.engine, s.logger)
	s.hub = hub

	s.worker = pollworker.NewInMemoryWorker(s.queue, pollworker.HandlerFunc(s.poll),
		pollworker.WithName("poll"),
		pollworker.WithLogger(s.logger),
	)

	base := context.WithoutCancel(ctx)
	loopCtx, loopCancel := context.WithCancel(base)
	workCtx, workCancel := context.WithCancel(base)
	hubCtx, hubCancel := context.WithCancel(base)
	s.loopCancel, s.workCancel, s.hubCancel = loopCancel, workCancel, hubCancel

	mutations, err := s.bus.Subscribe(loopCtx, model.TopicChanged)
	if err != nil {
		loopCancel()
		workCancel()
		hubCancel()
		_ = s.bus.Close()
		_ = s.store.Close()
		return fmt.Errorf("subscribe mutations: %w", err)
	}

	s.wg.Add(5)
	go func() {
		defer s.wg.Done()
		if err := s.engine.Run(base); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error(base, "engine stopped", logger.Error(err))
		}
	}()
	go func() {
		defer s.wg.Done()
		s.hub.Run(hubCtx)
	}()
	go func() {
		defer s.wg.Done()
		s.worker.Run(workCtx)
	}()
	go func() {
		defer s.wg.Done()
		s.tick(loopCtx)
	}()
	go func() {
		defer s.wg.Done()
		s.watchMutations(loopCtx, mutations)
	}()

	s.started = true
	s.queue.Enqueue(ctx, model.Trigger{Reason: model.ReasonStartup, At: s.now()})

	s.logger.Info(ctx, "standings service started",
		logger.String("store", s.cfg.StoreBackend),
		logger.String("bus", s.cfg.BusBackend),
		logger.Int("topN", s.cfg.TopN),
		logger.Duration("pollInterval", s.cfg.PollInterval()),
	)
	return nil
}

// Stop tears down in order: ticker and subscription, worker, engine with
// its pending timers, display hub, bus, store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping standings service...")

	s.loopCancel()

	shutdownCtx, cancel := context.WithTimeout(ctx, workerShutdownTimeout)
	if err := s.worker.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "poll worker did not stop in time", logger.Error(err))
	}
	cancel()
	s.workCancel()
	_ = s.queue.Close()

	s.engine.Stop()
	<-s.engine.Done()

	s.hubCancel()
	<-s.hub.Done()

	if err := s.bus.Close(); err != nil {
		s.logger.Warn(ctx, "bus close failed", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "store close failed", logger.Error(err))
	}
	s.wg.Wait()

	s.started = false
	s.logger.Info(ctx, "standings service stopped")
}

// Store returns the score store. It is nil before Start.
func (s *Service) Store() repository.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// Hub returns the display stream hub. It is nil before Start.
func (s *Service) Hub() *display.Hub {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hub
}

// Notify publishes a mutation notification. Failures are logged; the next
// tick still picks the change up.
func (s *Service) Notify(ctx context.Context, kind model.Kind, entryID string) {
	s.mu.RLock()
	b := s.bus
	s.mu.RUnlock()
	if b == nil {
		return
	}
	n := model.Notification{ID: uuid.NewString(), Kind: kind, EntryID: entryID, At: s.now().UTC()}
	if err := b.Publish(ctx, n); err != nil {
		s.logger.Warn(ctx, "publish notification failed",
			logger.String("kind", string(kind)),
			logger.Error(err),
		)
	}
}

// Retry queues an immediate poll. It reports false when one is already
// waiting or the service is stopped.
func (s *Service) Retry(ctx context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return false
	}
	return s.queue.Enqueue(ctx, model.Trigger{Reason: model.ReasonRetry, At: s.now()})
}

// View returns the display state.
func (s *Service) View(ctx context.Context) (director.View, error) {
	s.mu.RLock()
	e := s.engine
	s.mu.RUnlock()
	if e == nil {
		return director.View{}, ErrNotStarted
	}
	return e.View(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":      s.started,
		"storeBackend": s.cfg.StoreBackend,
		"busBackend":   s.cfg.BusBackend,
		"topN":         s.cfg.TopN,
	}
	if !s.started {
		return stats
	}

	if n, err := s.store.Count(ctx); err == nil {
		stats["scores"] = n
	} else {
		stats["storeError"] = err.Error()
	}
	stats["displayClients"] = s.hub.Clients()
	stats["triggerBacklog"] = s.queue.Len(ctx)
	stats["dedupeSize"] = s.deduper.Size()
	if v, err := s.engine.View(ctx); err == nil {
		stats["phase"] = v.Phase.String()
		stats["generation"] = v.Generation
	}
	return stats
}
