package simulate

import (
	"context"
	"errors"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/okian/standings/internal/adapters/repository"
	"github.com/okian/standings/internal/domain/types"
	"github.com/okian/standings/pkg/logger"
)

// Client is the slice of the score API the simulation drives.
type Client interface {
	Ranking(ctx context.Context) (types.Ranking, error)
	Add(ctx context.Context, name string, score int64) (types.Entry, error)
	Update(ctx context.Context, id, name string, score int64) (types.Entry, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) (int, error)
}

// Move kinds and their cumulative weights out of 100.
const (
	weightBump     = 55
	weightSlump    = 70
	weightChurn    = 80
	weightOvertake = 92
)

type simulator struct {
	client  Client
	faker   *gofakeit.Faker
	board   *board
	maxBump int64
	stats   *Stats
	log     logger.Logger
}

func newSimulator(client Client, cfg *Config, stats *Stats) *simulator {
	return &simulator{
		client:  client,
		faker:   gofakeit.New(cfg.Seed),
		board:   newBoard(),
		maxBump: cfg.MaxBump,
		stats:   stats,
		log:     logger.Get().Named("simulate"),
	}
}

// seed adds n fresh contestants with small starting scores.
func (s *simulator) seed(ctx context.Context, n int) error {
	for range n {
		if err := s.add(ctx); err != nil {
			return err
		}
		s.stats.Seeded++
	}
	return nil
}

func (s *simulator) add(ctx context.Context) error {
	e, err := s.client.Add(ctx, s.faker.Name(), int64(s.faker.Number(1, int(s.maxBump))))
	if err != nil {
		return err
	}
	s.board.put(e)
	return nil
}

// round plays one randomly chosen move.
func (s *simulator) round(ctx context.Context) {
	s.stats.Rounds++
	if s.board.len() == 0 {
		s.fail(ctx, "add", s.add(ctx))
		return
	}

	roll := s.faker.Number(1, 100)
	switch {
	case roll <= weightBump:
		s.stats.Bumps++
		e := s.pick()
		s.fail(ctx, "bump", s.set(ctx, e, e.Score+s.delta()))
	case roll <= weightSlump:
		s.stats.Slumps++
		e := s.pick()
		s.fail(ctx, "slump", s.set(ctx, e, max(0, e.Score-s.delta())))
	case roll <= weightChurn:
		s.stats.Churns++
		s.fail(ctx, "churn", s.churn(ctx))
	case roll <= weightOvertake:
		s.stats.Overtakes++
		s.fail(ctx, "overtake", s.overtake(ctx))
	default:
		s.stats.Holds++
		e := s.pick()
		s.fail(ctx, "hold", s.set(ctx, e, e.Score))
	}
}

func (s *simulator) pick() types.Entry {
	return s.board.at(s.faker.Number(0, s.board.len()-1))
}

func (s *simulator) delta() int64 {
	return int64(s.faker.Number(1, int(s.maxBump)))
}

func (s *simulator) set(ctx context.Context, e types.Entry, score int64) error {
	updated, err := s.client.Update(ctx, e.ID, e.Name, score)
	if errors.Is(err, repository.ErrNotFound) {
		s.board.remove(e.ID)
		return err
	}
	if err != nil {
		return err
	}
	s.board.put(updated)
	return nil
}

// churn retires one contestant and brings in a new one.
func (s *simulator) churn(ctx context.Context) error {
	e := s.pick()
	if err := s.client.Delete(ctx, e.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	s.board.remove(e.ID)
	return s.add(ctx)
}

// overtake lifts the last place straight past the leader.
func (s *simulator) overtake(ctx context.Context) error {
	ranked := s.board.ranked()
	last := ranked[len(ranked)-1]
	return s.set(ctx, last, ranked[0].Score+s.delta())
}

func (s *simulator) fail(ctx context.Context, move string, err error) {
	if err == nil {
		return
	}
	s.stats.Failed++
	s.log.Warn(ctx, "move failed", logger.String("move", move), logger.Error(err))
}
