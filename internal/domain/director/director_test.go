package director_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/standings/internal/domain/director"
	"github.com/okian/standings/internal/domain/tracker"
	"github.com/okian/standings/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// board builds a ranking from ids with strictly descending scores.
func board(ids ...string) types.Ranking {
	r := make(types.Ranking, len(ids))
	for i, id := range ids {
		r[i] = types.Entry{ID: id, Name: "Player " + id, Score: int64(1000 - 10*i)}
	}
	return r
}

func rowOf(p director.Plan, id string) director.RowPlan {
	for _, r := range p.Rows {
		if r.Entry.ID == id {
			return r
		}
	}
	return director.RowPlan{}
}

func TestDirectorTransitions(t *testing.T) {
	Convey("Given a director with TOP_N 3", t, func() {
		d := director.New(director.WithTopN(3))

		Convey("When the first ranking arrives", func() {
			p := d.Apply(t0, board("a", "b", "c", "d", "e"))

			Convey("Then entries appear in place and the transition is smooth", func() {
				So(p.Mode, ShouldEqual, director.ModeSmooth)
				So(p.Duration, ShouldEqual, 800*time.Millisecond)
				So(d.Phase(), ShouldEqual, director.PhaseTransitioning)
				for _, r := range p.Rows {
					So(r.From, ShouldResemble, r.To)
					So(r.ScoreFrom, ShouldEqual, r.ScoreTo)
				}
			})

			Convey("And settling fires nothing for unranked entries", func() {
				bursts, ok := d.Settle(p.Generation)
				So(ok, ShouldBeTrue)
				So(bursts, ShouldBeEmpty)
				So(d.Phase(), ShouldEqual, director.PhaseIdle)
			})
		})

		Convey("When an identical ranking is applied again", func() {
			p1 := d.Apply(t0, board("a", "b", "c", "d"))
			d.Settle(p1.Generation)
			p2 := d.Apply(t0.Add(3*time.Second), board("a", "b", "c", "d"))
			bursts, _ := d.Settle(p2.Generation)

			Convey("Then everything is unchanged and nothing celebrates", func() {
				So(p2.Mode, ShouldEqual, director.ModeSmooth)
				So(p2.Classified.Count(tracker.Unchanged), ShouldEqual, 4)
				So(bursts, ShouldBeEmpty)
			})
		})

		Convey("When rank 5 jumps to rank 1", func() {
			p1 := d.Apply(t0, board("a", "b", "c", "d", "e"))
			d.Settle(p1.Generation)
			p2 := d.Apply(t0.Add(3*time.Second), board("e", "a", "b", "c", "d"))

			Convey("Then the whole layout snaps", func() {
				So(p2.Crossing, ShouldBeTrue)
				So(p2.Mode, ShouldEqual, director.ModeSnap)
				So(p2.Duration, ShouldEqual, time.Duration(0))
				So(rowOf(p2, "e").Tags, ShouldEqual, tracker.Improved|tracker.CrossedIn)
			})

			Convey("And only that entry gets a major celebration in two bursts", func() {
				first, ok := d.Settle(p2.Generation)
				So(ok, ShouldBeTrue)
				So(first, ShouldHaveLength, 1)
				So(first[0].EntryID, ShouldEqual, "e")
				So(first[0].Tier, ShouldEqual, "major")
				So(first[0].Colors, ShouldResemble, []string{"#FFD700", "#FFA500", "#FF4500"})
				So(d.Phase(), ShouldEqual, director.PhaseCelebrationPending)
				So(d.BurstDelay(), ShouldEqual, 200*time.Millisecond)

				second, ok := d.FlushDelayed(p2.Generation)
				So(ok, ShouldBeTrue)
				So(second, ShouldHaveLength, 1)
				So(second[0].EntryID, ShouldEqual, "e")
				So(second[0].Tier, ShouldEqual, "major")
				So(d.Phase(), ShouldEqual, director.PhaseIdle)
			})

			Convey("And the origin is the normalized center of its score element", func() {
				bursts, _ := d.Settle(p2.Generation)
				// rank 0: score box x=0 y=128 w=960 h=200 in a 1920x1080 viewport
				So(bursts[0].Origin.X, ShouldAlmostEqual, 480.0/1920, 1e-9)
				So(bursts[0].Origin.Y, ShouldAlmostEqual, 228.0/1080, 1e-9)
			})
		})

		Convey("When rank 2 moves up to rank 1", func() {
			p1 := d.Apply(t0, board("a", "b", "c", "d"))
			d.Settle(p1.Generation)
			p2 := d.Apply(t0.Add(3*time.Second), board("b", "a", "c", "d"))

			Convey("Then the transition is smooth and a single minor burst fires", func() {
				So(p2.Crossing, ShouldBeFalse)
				So(p2.Mode, ShouldEqual, director.ModeSmooth)
				So(p2.Duration, ShouldEqual, 800*time.Millisecond)

				bursts, ok := d.Settle(p2.Generation)
				So(ok, ShouldBeTrue)
				So(bursts, ShouldHaveLength, 1)
				So(bursts[0].EntryID, ShouldEqual, "b")
				So(bursts[0].Tier, ShouldEqual, "minor")
				So(d.Phase(), ShouldEqual, director.PhaseIdle)
			})
		})

		Convey("When rank 1 drops to rank 2", func() {
			p1 := d.Apply(t0, board("a", "b", "c"))
			d.Settle(p1.Generation)
			p2 := d.Apply(t0.Add(time.Second), board("b", "a", "c"))
			d.Settle(p2.Generation)

			Convey("Then the worsened entry never celebrates", func() {
				So(rowOf(p2, "a").Tags, ShouldEqual, tracker.Worsened)
				So(p2.Celebrating, ShouldNotContainKey, "a")
			})
		})
	})
}

func TestDirectorCapture(t *testing.T) {
	Convey("Given a transition in flight", t, func() {
		d := director.New(director.WithTopN(3))
		p1 := d.Apply(t0, board("a", "b", "c", "d"))
		d.Settle(p1.Generation)
		d.Apply(t0.Add(time.Second), board("b", "a", "c", "d"))
		mid := t0.Add(time.Second + 400*time.Millisecond)

		Convey("When the view is sampled halfway", func() {
			v := d.View(mid)

			Convey("Then rows sit on the eased path", func() {
				// ease-out at t=0.5 is 0.75; a travels from y=96 to y=360
				So(v.Rows[1].Entry.ID, ShouldEqual, "a")
				So(v.Rows[1].Rect.Y, ShouldAlmostEqual, 96+0.75*264, 1e-9)
				So(v.Rows[1].Moving, ShouldBeTrue)
			})
		})

		Convey("When another poll lands mid-transition", func() {
			p3 := d.Apply(mid, board("a", "b", "c", "d"))

			Convey("Then rows start from the interpolated rectangles", func() {
				a := rowOf(p3, "a")
				So(a.From.Y, ShouldAlmostEqual, 96+0.75*264, 1e-9)
				So(a.To.Y, ShouldEqual, 96)
			})

			Convey("And the superseded settle is ignored", func() {
				_, ok := d.Settle(p3.Generation - 1)
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestDirectorCarryOver(t *testing.T) {
	Convey("Given an improvement whose transition is superseded", t, func() {
		d := director.New(director.WithTopN(3))
		p1 := d.Apply(t0, board("a", "b", "c", "d", "e"))
		d.Settle(p1.Generation)
		p2 := d.Apply(t0.Add(time.Second), board("b", "a", "c", "d", "e"))

		Convey("When the next poll leaves the entry in place", func() {
			p3 := d.Apply(t0.Add(time.Second+100*time.Millisecond), board("b", "a", "c", "d", "e"))

			Convey("Then the owed minor celebration fires at the next settle", func() {
				_, stale := d.Settle(p2.Generation)
				So(stale, ShouldBeFalse)

				bursts, ok := d.Settle(p3.Generation)
				So(ok, ShouldBeTrue)
				So(bursts, ShouldHaveLength, 1)
				So(bursts[0].EntryID, ShouldEqual, "b")
				So(bursts[0].Tier, ShouldEqual, "minor")
			})
		})

		Convey("When the next poll earns the same entry a major tier", func() {
			q1 := d.Apply(t0.Add(2*time.Second), board("a", "b", "c", "d", "e"))
			d.Settle(q1.Generation)
			q2 := d.Apply(t0.Add(3*time.Second), board("a", "b", "c", "e", "d"))
			q3 := d.Apply(t0.Add(3*time.Second+100*time.Millisecond), board("e", "a", "b", "c", "d"))

			Convey("Then the highest tier wins", func() {
				So(q2.Celebrating["e"], ShouldEqual, director.TierMinor)
				So(q3.Celebrating["e"], ShouldEqual, director.TierMajor)

				bursts, ok := d.Settle(q3.Generation)
				So(ok, ShouldBeTrue)
				So(bursts, ShouldHaveLength, 1)
				So(bursts[0].EntryID, ShouldEqual, "e")
				So(bursts[0].Tier, ShouldEqual, "major")
			})
		})

		Convey("When the owed entry leaves the board", func() {
			p3 := d.Apply(t0.Add(time.Second+100*time.Millisecond), board("a", "c", "d", "e"))
			bursts, _ := d.Settle(p3.Generation)

			Convey("Then its celebration is dropped", func() {
				So(p3.Removed, ShouldResemble, []string{"b"})
				So(p3.Celebrating, ShouldNotContainKey, "b")
				for _, b := range bursts {
					So(b.EntryID, ShouldNotEqual, "b")
				}
			})
		})
	})

	Convey("Given a major celebration waiting on its second burst", t, func() {
		d := director.New(director.WithTopN(3))
		p1 := d.Apply(t0, board("a", "b", "c", "d"))
		d.Settle(p1.Generation)
		p2 := d.Apply(t0.Add(time.Second), board("d", "a", "b", "c"))
		d.Settle(p2.Generation)

		Convey("When a new poll arrives before it fires", func() {
			d.Apply(t0.Add(time.Second+100*time.Millisecond), board("d", "a", "b", "c"))

			Convey("Then the delayed burst is cancelled", func() {
				bursts, ok := d.FlushDelayed(p2.Generation)
				So(ok, ShouldBeFalse)
				So(bursts, ShouldBeEmpty)
			})
		})
	})
}

func TestDirectorFailureAndEmpty(t *testing.T) {
	Convey("Given a director showing a ranking", t, func() {
		d := director.New(director.WithTopN(3))
		p1 := d.Apply(t0, board("a", "b", "c"))
		d.Settle(p1.Generation)

		Convey("When a poll fails", func() {
			d.BeginFetch()
			So(d.Phase(), ShouldEqual, director.PhaseFetching)
			d.Fail(t0.Add(time.Second), errors.New("store unavailable"))

			Convey("Then the last good ranking and snapshot are kept", func() {
				So(d.Phase(), ShouldEqual, director.PhaseFailed)
				So(d.View(t0.Add(time.Second)).Rows, ShouldHaveLength, 3)
				So(d.SnapshotLen(), ShouldEqual, 3)

				f := d.ErrorFrame(t0.Add(time.Second))
				So(f.Type, ShouldEqual, director.FrameError)
				So(f.Error.Retry, ShouldEqual, director.RetryPath)
				So(f.Error.Message, ShouldContainSubstring, "store unavailable")
			})

			Convey("And a retry that succeeds classifies against the kept snapshot", func() {
				d.BeginFetch()
				p := d.Apply(t0.Add(2*time.Second), board("a", "b", "c"))
				So(p.Classified.Count(tracker.Unchanged), ShouldEqual, 3)
				So(d.Err(), ShouldBeNil)
			})
		})

		Convey("When the ranking becomes empty", func() {
			p := d.Apply(t0.Add(time.Second), types.Ranking{})

			Convey("Then the model and snapshot are cleared", func() {
				So(p.Empty, ShouldBeTrue)
				So(p.Removed, ShouldResemble, []string{"a", "b", "c"})
				So(d.SnapshotLen(), ShouldEqual, 0)
				So(d.View(t0.Add(time.Second)).Rows, ShouldBeEmpty)
				So(d.TransitionFrame(t0, p).Type, ShouldEqual, director.FrameEmpty)
				So(d.RenderFrame(t0.Add(time.Second)).Type, ShouldEqual, director.FrameEmpty)
			})

			Convey("And entries that come back are unranked", func() {
				again := d.Apply(t0.Add(2*time.Second), board("a", "b", "c"))
				So(again.Classified.Count(tracker.Unranked), ShouldEqual, 3)
			})
		})
	})
}

func TestDirectorScoreTween(t *testing.T) {
	Convey("Given an entry whose score changes", t, func() {
		d := director.New()
		d.Apply(t0, types.Ranking{{ID: "a", Name: "Ada", Score: 10}})
		p := d.Apply(t0.Add(time.Second), types.Ranking{{ID: "a", Name: "Ada", Score: 20}})
		start := t0.Add(time.Second)

		Convey("Then the displayed score counts up with ease-out over 1.5s", func() {
			So(rowOf(p, "a").ScoreFrom, ShouldEqual, 10)
			So(d.View(start).Rows[0].Score, ShouldEqual, 10)
			So(d.View(start.Add(750*time.Millisecond)).Rows[0].Score, ShouldEqual, 18)
			So(d.View(start.Add(1500*time.Millisecond)).Rows[0].Score, ShouldEqual, 20)
			So(d.View(start.Add(5*time.Second)).Rows[0].ScoreRunning, ShouldBeFalse)
		})

		Convey("When the score changes again mid-count", func() {
			p3 := d.Apply(start.Add(750*time.Millisecond), types.Ranking{{ID: "a", Name: "Ada", Score: 30}})

			Convey("Then the new tween starts from the displayed value", func() {
				So(rowOf(p3, "a").ScoreFrom, ShouldEqual, 18)
			})
		})
	})
}

func TestLayoutPlacement(t *testing.T) {
	l := director.NewLayout(1920, 1080, 3)

	top := l.Place(2)
	if !top.Top || top.Row.Y != 96+2*264 || top.Row.W != 1280 {
		t.Errorf("unexpected top placement: %+v", top)
	}
	rest := l.Place(4)
	if rest.Top || rest.Row.X != 1312 || rest.Row.Y != 96+80 || rest.Row.W != 608 {
		t.Errorf("unexpected rest placement: %+v", rest)
	}
	if got := l.Normalize(director.Point{X: 960, Y: 540}); got.X != 0.5 || got.Y != 0.5 {
		t.Errorf("normalize: got %+v", got)
	}
}

func TestEaseOut(t *testing.T) {
	cases := map[float64]float64{0: 0, 0.5: 0.75, 1: 1}
	for in, want := range cases {
		if got := director.EaseOut(in); got != want {
			t.Errorf("EaseOut(%v) = %v, want %v", in, got, want)
		}
	}
	r := director.Rect{X: 1, Y: 2, W: 3, H: 4}
	m := director.Motion{From: r, To: r}
	if !m.Done(t0) || m.At(t0) != m.To {
		t.Error("a motion without duration is done and at rest")
	}
}
