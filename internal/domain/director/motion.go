package director

import (
	"math"
	"time"
)

// Ease maps linear progress in [0,1] to eased progress.
type Ease func(t float64) float64

// EaseOut decelerates towards the end (quadratic, "power2.out").
func EaseOut(t float64) float64 { return 1 - (1-t)*(1-t) }

func progress(start time.Time, d time.Duration, now time.Time, ease Ease) float64 {
	if d <= 0 || !now.Before(start.Add(d)) {
		return 1
	}
	if now.Before(start) {
		return 0
	}
	return ease(float64(now.Sub(start)) / float64(d))
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// Motion moves a rectangle from From to To.
type Motion struct {
	From     Rect
	To       Rect
	Start    time.Time
	Duration time.Duration
	Ease     Ease
}

// At samples the rectangle at now.
func (m Motion) At(now time.Time) Rect {
	t := progress(m.Start, m.Duration, now, m.easing())
	return Rect{
		X: lerp(m.From.X, m.To.X, t),
		Y: lerp(m.From.Y, m.To.Y, t),
		W: lerp(m.From.W, m.To.W, t),
		H: lerp(m.From.H, m.To.H, t),
	}
}

// Done reports whether the motion has reached To.
func (m Motion) Done(now time.Time) bool {
	return m.Duration <= 0 || !now.Before(m.Start.Add(m.Duration))
}

func (m Motion) easing() Ease {
	if m.Ease == nil {
		return EaseOut
	}
	return m.Ease
}

// ScoreTween counts a displayed score from From to To.
type ScoreTween struct {
	From     int64
	To       int64
	Start    time.Time
	Duration time.Duration
}

// Value returns the rounded score displayed at now.
func (s ScoreTween) Value(now time.Time) int64 {
	t := progress(s.Start, s.Duration, now, EaseOut)
	return int64(math.Round(lerp(float64(s.From), float64(s.To), t)))
}
