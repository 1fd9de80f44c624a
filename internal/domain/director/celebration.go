package director

import (
	"time"

	"github.com/okian/standings/internal/domain/tracker"
)

// Tier ranks celebrations; a higher tier wins when two apply to one entry.
type Tier uint8

const (
	TierNone Tier = iota
	TierMinor
	TierMajor
)

func (t Tier) String() string {
	switch t {
	case TierMinor:
		return "minor"
	case TierMajor:
		return "major"
	default:
		return "none"
	}
}

// TierFor returns the celebration earned by a movement.
func TierFor(tags tracker.Tag) Tier {
	switch {
	case tags.Has(tracker.Improved | tracker.CrossedIn):
		return TierMajor
	case tags.Has(tracker.Improved):
		return TierMinor
	default:
		return TierNone
	}
}

var (
	majorPalette = []string{"#FFD700", "#FFA500", "#FF4500"}
	minorPalette = []string{"#4CAF50", "#2196F3", "#00BCD4"}
)

// Burst is one confetti emission.
type Burst struct {
	EntryID   string        `json:"entryId"`
	Tier      string        `json:"tier"`
	Origin    Point         `json:"origin"`
	Colors    []string      `json:"colors"`
	Particles int           `json:"particles"`
	Spread    float64       `json:"spread"`
	Delay     time.Duration `json:"-"`
}

// burstsFor expands a tier into its bursts. Major fires twice, the second
// burst delayed by gap.
func burstsFor(entryID string, tier Tier, origin Point, gap time.Duration) []Burst {
	switch tier {
	case TierMajor:
		return []Burst{
			{EntryID: entryID, Tier: tier.String(), Origin: origin, Colors: majorPalette, Particles: 100, Spread: 70},
			{EntryID: entryID, Tier: tier.String(), Origin: origin, Colors: majorPalette, Particles: 60, Spread: 110, Delay: gap},
		}
	case TierMinor:
		return []Burst{
			{EntryID: entryID, Tier: tier.String(), Origin: origin, Colors: minorPalette, Particles: 40, Spread: 50},
		}
	default:
		return nil
	}
}
