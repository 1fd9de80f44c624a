package director

import (
	"time"
)

// Frame types.
const (
	FrameRender     = "render"
	FrameTransition = "transition"
	FrameCelebrate  = "celebrate"
	FrameError      = "error"
	FrameEmpty      = "empty"
)

// Frame is one message of the display stream.
type Frame struct {
	Type       string       `json:"type"`
	Seq        uint64       `json:"seq"`
	Generation uint64       `json:"generation"`
	Phase      string       `json:"phase"`
	At         time.Time    `json:"at"`
	Viewport   *Viewport    `json:"viewport,omitempty"`
	Mode       Mode         `json:"mode,omitempty"`
	DurationMS int64        `json:"durationMs,omitempty"`
	Rows       []FrameRow   `json:"rows,omitempty"`
	Removed    []string     `json:"removed,omitempty"`
	Bursts     []Burst      `json:"bursts,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`
	Message    string       `json:"message,omitempty"`
}

// Viewport describes the virtual display the rectangles refer to.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	TopN   int     `json:"topN"`
}

// FrameRow is a row inside a render or transition frame.
type FrameRow struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Rank  int        `json:"rank"`
	Top   bool       `json:"top"`
	Tags  []string   `json:"tags,omitempty"`
	From  Rect       `json:"from"`
	To    Rect       `json:"to"`
	Score FrameScore `json:"score"`
}

// FrameScore tells the client how to count a score.
type FrameScore struct {
	From       int64 `json:"from"`
	To         int64 `json:"to"`
	DurationMS int64 `json:"durationMs"`
}

// ErrorDetail carries a failed poll. Retry names the endpoint that retries.
type ErrorDetail struct {
	Message string `json:"message"`
	Retry   string `json:"retry"`
}

// RetryPath is the affordance advertised by error frames.
const RetryPath = "/api/display/retry"

// EmptyMessage is shown when the board has no entries.
const EmptyMessage = "The leaderboard is empty. Be the first to add a score!"

func (d *Director) viewport() *Viewport {
	return &Viewport{Width: d.layout.Width, Height: d.layout.Height, TopN: d.layout.TopN}
}

// TransitionFrame renders plan. An empty plan yields an empty frame.
func (d *Director) TransitionFrame(now time.Time, p Plan) Frame {
	if p.Empty {
		return Frame{
			Type: FrameEmpty, Generation: p.Generation, Phase: d.Phase().String(), At: now,
			Viewport: d.viewport(), Removed: p.Removed, Message: EmptyMessage,
		}
	}
	f := Frame{
		Type:       FrameTransition,
		Generation: p.Generation,
		Phase:      d.Phase().String(),
		At:         now,
		Viewport:   d.viewport(),
		Mode:       p.Mode,
		DurationMS: p.Duration.Milliseconds(),
		Removed:    p.Removed,
		Rows:       make([]FrameRow, len(p.Rows)),
	}
	for i, r := range p.Rows {
		f.Rows[i] = FrameRow{
			ID: r.Entry.ID, Name: r.Entry.Name, Rank: r.Rank, Top: r.Rank < d.layout.TopN,
			Tags: r.Tags.Names(), From: r.From, To: r.To,
			Score: FrameScore{From: r.ScoreFrom, To: r.ScoreTo, DurationMS: p.ScoreTween.Milliseconds()},
		}
	}
	return f
}

// RenderFrame captures the state at now for a client that just connected.
// Rows in flight resume from their sampled rectangles.
func (d *Director) RenderFrame(now time.Time) Frame {
	v := d.View(now)
	if v.Err != nil && v.Phase == PhaseFailed {
		f := d.ErrorFrame(now)
		f.Rows = renderRows(v, d.layout.TopN, d.scoreTween)
		return f
	}
	if len(v.Rows) == 0 {
		return Frame{Type: FrameEmpty, Generation: v.Generation, Phase: v.Phase.String(), At: now, Viewport: d.viewport(), Message: EmptyMessage}
	}
	return Frame{
		Type:       FrameRender,
		Generation: v.Generation,
		Phase:      v.Phase.String(),
		At:         now,
		Viewport:   d.viewport(),
		Mode:       ModeSmooth,
		DurationMS: d.remaining(now).Milliseconds(),
		Rows:       renderRows(v, d.layout.TopN, d.scoreTween),
	}
}

// remaining returns how long the current motion still runs.
func (d *Director) remaining(now time.Time) time.Duration {
	var left time.Duration
	for _, r := range d.rows {
		if end := r.motion.Start.Add(r.motion.Duration); end.After(now) && end.Sub(now) > left {
			left = end.Sub(now)
		}
	}
	return left
}

func renderRows(v View, topN int, tween time.Duration) []FrameRow {
	rows := make([]FrameRow, len(v.Rows))
	for i, r := range v.Rows {
		score := FrameScore{From: r.Score, To: r.Entry.Score}
		if r.ScoreRunning {
			score.DurationMS = tween.Milliseconds()
		}
		rows[i] = FrameRow{
			ID: r.Entry.ID, Name: r.Entry.Name, Rank: r.Rank, Top: r.Rank < topN,
			Tags: r.Tags.Names(), From: r.Rect, To: r.To, Score: score,
		}
	}
	return rows
}

// CelebrateFrame wraps bursts.
func (d *Director) CelebrateFrame(now time.Time, bursts []Burst) Frame {
	return Frame{Type: FrameCelebrate, Generation: d.gen, Phase: d.Phase().String(), At: now, Bursts: bursts}
}

// ErrorFrame reports the last failure with a retry affordance.
func (d *Director) ErrorFrame(now time.Time) Frame {
	msg := "Failed to fetch scores"
	if d.lastErr != nil {
		msg = msg + ": " + d.lastErr.Error()
	}
	return Frame{
		Type: FrameError, Generation: d.gen, Phase: d.Phase().String(), At: now,
		Error: &ErrorDetail{Message: msg, Retry: RetryPath},
	}
}
