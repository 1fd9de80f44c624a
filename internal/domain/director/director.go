// Package director turns classified rankings into layout transitions and
// celebration bursts.
//
// Every poll goes through capture, commit and animate: the rectangles on
// screen are sampled at the poll instant, the model is replaced by the new
// ranking, and each row moves from its captured rectangle to its new
// placement. Celebrations wait for the transition to settle.
//
// A Director is not safe for concurrent use; Engine serializes access.
package director

import (
	"sort"
	"time"

	"github.com/okian/standings/internal/domain/tracker"
	"github.com/okian/standings/internal/domain/types"
)

// Phase is the display state.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseClassifying
	PhaseTransitioning
	PhaseCelebrationPending
	PhaseFailed
)

var phaseNames = [...]string{"idle", "fetching", "classifying", "transitioning", "celebration-pending", "failed"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// PhaseNames lists every phase name.
func PhaseNames() []string { return phaseNames[:] }

// Mode is how rows travel to their new placement.
type Mode string

const (
	ModeSmooth Mode = "smooth"
	ModeSnap   Mode = "snap"
)

// Option configures a Director.
type Option func(*Director)

// WithTopN sets the top tier size.
func WithTopN(n int) Option {
	return func(d *Director) {
		if n > 0 {
			d.topN = n
		}
	}
}

// WithViewport sets the virtual display size.
func WithViewport(width, height float64) Option {
	return func(d *Director) {
		if width > 0 && height > 0 {
			d.width, d.height = width, height
		}
	}
}

// WithTransition sets the smooth transition duration.
func WithTransition(dur time.Duration) Option {
	return func(d *Director) {
		if dur >= 0 {
			d.transition = dur
		}
	}
}

// WithScoreTween sets how long displayed scores take to count.
func WithScoreTween(dur time.Duration) Option {
	return func(d *Director) {
		if dur >= 0 {
			d.scoreTween = dur
		}
	}
}

// WithBurstDelay sets the gap between the two bursts of a major celebration.
func WithBurstDelay(dur time.Duration) Option {
	return func(d *Director) {
		if dur >= 0 {
			d.burstDelay = dur
		}
	}
}

type row struct {
	entry  types.Entry
	rank   int
	tags   tracker.Tag
	motion Motion
	score  ScoreTween
}

// Director owns the rendered model, the snapshot tracker and the animation
// state machine.
type Director struct {
	topN       int
	width      float64
	height     float64
	transition time.Duration
	scoreTween time.Duration
	burstDelay time.Duration

	layout  Layout
	tracker *tracker.Tracker

	rows     []*row
	phase    Phase
	fetching bool
	gen      uint64
	pending  map[string]Tier
	delayed  []Burst

	lastErr  error
	failedAt time.Time
}

// New creates an idle Director with an empty model.
func New(opts ...Option) *Director {
	d := &Director{
		topN:       3,
		width:      1920,
		height:     1080,
		transition: 800 * time.Millisecond,
		scoreTween: 1500 * time.Millisecond,
		burstDelay: 200 * time.Millisecond,
		pending:    make(map[string]Tier),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.layout = NewLayout(d.width, d.height, d.topN)
	d.tracker = tracker.New(d.topN)
	return d
}

// Phase returns the current phase. Fetching masks the animation phase
// underneath it.
func (d *Director) Phase() Phase {
	if d.fetching {
		return PhaseFetching
	}
	return d.phase
}

// Generation increases with every applied ranking and every failure.
func (d *Director) Generation() uint64 { return d.gen }

// SnapshotLen returns the number of identities the tracker holds.
func (d *Director) SnapshotLen() int { return d.tracker.Len() }

// BeginFetch marks a poll in flight. It is legal in every phase.
func (d *Director) BeginFetch() { d.fetching = true }

// RowPlan is one row of a transition.
type RowPlan struct {
	Entry     types.Entry
	Rank      int
	PrevRank  int
	Tags      tracker.Tag
	From      Rect
	To        Rect
	ScoreFrom int64
	ScoreTo   int64
}

// Plan is the result of applying a ranking.
type Plan struct {
	Generation  uint64
	Mode        Mode
	Duration    time.Duration
	ScoreTween  time.Duration
	Crossing    bool
	Empty       bool
	Rows        []RowPlan
	Removed     []string
	Classified  tracker.Classified
	Celebrating map[string]Tier
}

// Apply classifies ranking, commits it and starts the transition at now.
// The caller must schedule Settle(plan.Generation) after plan.Duration.
func (d *Director) Apply(now time.Time, ranking types.Ranking) Plan {
	d.fetching = false
	d.phase = PhaseClassifying
	d.gen++
	d.delayed = nil
	d.lastErr = nil

	// capture
	captured := make(map[string]*row, len(d.rows))
	for _, r := range d.rows {
		captured[r.entry.ID] = r
	}
	rects := make(map[string]Rect, len(d.rows))
	scores := make(map[string]int64, len(d.rows))
	for id, r := range captured {
		rects[id] = r.motion.At(now)
		scores[id] = r.score.Value(now)
	}

	classified, crossing := d.tracker.Observe(ranking)

	if len(ranking) == 0 {
		removed := make([]string, 0, len(d.rows))
		for _, r := range d.rows {
			removed = append(removed, r.entry.ID)
		}
		d.rows = nil
		d.pending = make(map[string]Tier)
		d.phase = PhaseIdle
		return Plan{Generation: d.gen, Mode: ModeSnap, Empty: true, Removed: removed}
	}

	mode, dur := ModeSmooth, d.transition
	if crossing {
		mode, dur = ModeSnap, 0
	}

	// commit
	next := make([]*row, len(ranking))
	plan := Plan{
		Generation: d.gen,
		Mode:       mode,
		Duration:   dur,
		ScoreTween: d.scoreTween,
		Crossing:   crossing,
		Rows:       make([]RowPlan, len(ranking)),
		Classified: classified,
	}
	present := make(map[string]struct{}, len(ranking))
	for i, e := range ranking {
		m := classified[i]
		present[e.ID] = struct{}{}
		to := d.layout.Place(i).Row

		from, seen := rects[e.ID]
		if !seen {
			from = to
		}
		scoreFrom, ok := scores[e.ID]
		if !ok {
			scoreFrom = e.Score
		}

		next[i] = &row{
			entry:  e,
			rank:   i,
			tags:   m.Tags,
			motion: Motion{From: from, To: to, Start: now, Duration: dur, Ease: EaseOut},
			score:  ScoreTween{From: scoreFrom, To: e.Score, Start: now, Duration: d.scoreTween},
		}
		plan.Rows[i] = RowPlan{
			Entry: e, Rank: i, PrevRank: m.PrevRank, Tags: m.Tags,
			From: from, To: to, ScoreFrom: scoreFrom, ScoreTo: e.Score,
		}

		if tier := TierFor(m.Tags); tier > d.pending[e.ID] {
			d.pending[e.ID] = tier
		}
	}
	for id := range d.pending {
		if _, ok := present[id]; !ok {
			delete(d.pending, id)
		}
	}
	for _, r := range d.rows {
		if _, ok := present[r.entry.ID]; !ok {
			plan.Removed = append(plan.Removed, r.entry.ID)
		}
	}
	d.rows = next

	plan.Celebrating = make(map[string]Tier, len(d.pending))
	for id, t := range d.pending {
		plan.Celebrating[id] = t
	}

	// animate
	d.phase = PhaseTransitioning
	return plan
}

// Settle fires the celebrations owed once the transition of gen completes.
// It returns the bursts to fire now and reports false when gen is stale.
// Delayed bursts are kept until FlushDelayed.
func (d *Director) Settle(gen uint64) ([]Burst, bool) {
	if gen != d.gen || d.phase != PhaseTransitioning {
		return nil, false
	}

	ids := make([]string, 0, len(d.pending))
	for id := range d.pending {
		ids = append(ids, id)
	}
	ranks := make(map[string]*row, len(d.rows))
	for _, r := range d.rows {
		ranks[r.entry.ID] = r
	}
	sort.Slice(ids, func(i, j int) bool { return ranks[ids[i]].rank < ranks[ids[j]].rank })

	var now []Burst
	for _, id := range ids {
		r := ranks[id]
		origin := d.layout.Normalize(d.layout.Place(r.rank).Score.Center())
		for _, b := range burstsFor(id, d.pending[id], origin, d.burstDelay) {
			if b.Delay > 0 {
				d.delayed = append(d.delayed, b)
				continue
			}
			now = append(now, b)
		}
	}
	d.pending = make(map[string]Tier)

	if len(d.delayed) > 0 {
		d.phase = PhaseCelebrationPending
	} else {
		d.phase = PhaseIdle
	}
	return now, true
}

// BurstDelay returns the gap before delayed bursts fire.
func (d *Director) BurstDelay() time.Duration { return d.burstDelay }

// FlushDelayed returns the delayed bursts of gen. A newer poll or a failure
// cancels them.
func (d *Director) FlushDelayed(gen uint64) ([]Burst, bool) {
	if gen != d.gen || d.phase != PhaseCelebrationPending {
		return nil, false
	}
	out := d.delayed
	d.delayed = nil
	d.phase = PhaseIdle
	return out, true
}

// Fail records a failed poll. The rendered model, snapshot and owed
// celebrations are kept; scheduled settles and delayed bursts are cancelled.
func (d *Director) Fail(now time.Time, err error) uint64 {
	d.fetching = false
	d.gen++
	d.delayed = nil
	d.phase = PhaseFailed
	d.lastErr = err
	d.failedAt = now
	return d.gen
}

// Err returns the error of the last failed poll, or nil.
func (d *Director) Err() error { return d.lastErr }

// RowView is a row as it looks at a given instant.
type RowView struct {
	Entry        types.Entry
	Rank         int
	Tags         tracker.Tag
	Rect         Rect
	To           Rect
	Score        int64
	Moving       bool
	ScoreRunning bool
}

// View is the display state at an instant.
type View struct {
	Phase      Phase
	Generation uint64
	Rows       []RowView
	Err        error
	FailedAt   time.Time
}

// View samples every row at now.
func (d *Director) View(now time.Time) View {
	v := View{Phase: d.Phase(), Generation: d.gen, Err: d.lastErr, FailedAt: d.failedAt}
	v.Rows = make([]RowView, len(d.rows))
	for i, r := range d.rows {
		v.Rows[i] = RowView{
			Entry:        r.entry,
			Rank:         r.rank,
			Tags:         r.tags,
			Rect:         r.motion.At(now),
			To:           r.motion.To,
			Score:        r.score.Value(now),
			Moving:       !r.motion.Done(now),
			ScoreRunning: r.score.Value(now) != r.score.To,
		}
	}
	return v
}
