package simulate

import (
	"context"
	"fmt"

	"github.com/okian/standings/internal/domain/types"
	"github.com/okian/standings/pkg/logger"
)

// verify checks that the store holds exactly the simulated board, in order.
func (s *simulator) verify(ctx context.Context) error {
	remote, err := s.client.Ranking(ctx)
	if err != nil {
		return fmt.Errorf("fetch final ranking: %w", err)
	}
	if err := remote.Validate(); err != nil {
		return err
	}
	return compare(s.board.ranked(), remote)
}

func compare(want []types.Entry, got types.Ranking) error {
	if len(want) != len(got) {
		return fmt.Errorf("%w: %d entries, expected %d", ErrMismatch, len(got), len(want))
	}
	byID := make(map[string]types.Entry, len(want))
	for _, e := range want {
		byID[e.ID] = e
	}
	for i, e := range got {
		w, ok := byID[e.ID]
		if !ok {
			return fmt.Errorf("%w: unexpected entry %s at rank %d", ErrMismatch, e.ID, i+1)
		}
		if w.Score != e.Score {
			return fmt.Errorf("%w: %s scores %d, expected %d", ErrMismatch, e.ID, e.Score, w.Score)
		}
	}
	return nil
}

// displayStandings logs the final top of the board.
func displayStandings(ctx context.Context, ranking types.Ranking, n int) {
	n = min(n, len(ranking))
	for i, e := range ranking[:n] {
		logger.Get().Info(ctx, "standing",
			logger.Int("rank", i+1),
			logger.String("name", e.Name),
			logger.Int64("score", e.Score),
		)
	}
}
