package tracker_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/standings/internal/domain/tracker"
	"github.com/okian/standings/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func ranking(ids ...string) types.Ranking {
	r := make(types.Ranking, len(ids))
	for i, id := range ids {
		r[i] = types.Entry{ID: id, Name: "Player " + id, Score: int64(100 - i)}
	}
	return r
}

func tagsOf(c tracker.Classified) map[string]tracker.Tag {
	out := make(map[string]tracker.Tag, len(c))
	for _, m := range c {
		out[m.ID] = m.Tags
	}
	return out
}

func TestClassify(t *testing.T) {
	Convey("Given a tracker with TOP_N 3", t, func() {
		tr := tracker.New(3)

		Convey("When the first ranking is observed", func() {
			c, crossing := tr.Observe(ranking("a", "b", "c", "d"))

			Convey("Then every entry is unranked and nothing crosses", func() {
				So(crossing, ShouldBeFalse)
				So(c.Count(tracker.Unranked), ShouldEqual, 4)
				for _, m := range c {
					So(m.Tags, ShouldEqual, tracker.Unranked)
					So(m.PrevRank, ShouldEqual, tracker.NoRank)
				}
			})
		})

		Convey("When an identical ranking is observed twice", func() {
			tr.Observe(ranking("a", "b", "c", "d"))
			c, crossing := tr.Observe(ranking("a", "b", "c", "d"))

			Convey("Then every entry is unchanged", func() {
				So(crossing, ShouldBeFalse)
				So(c.Count(tracker.Unchanged), ShouldEqual, 4)
				So(c.Count(tracker.Improved), ShouldEqual, 0)
			})
		})

		Convey("When rank 5 moves to rank 1", func() {
			tr.Observe(ranking("a", "b", "c", "d", "e"))
			c, crossing := tr.Observe(ranking("e", "a", "b", "c", "d"))
			tags := tagsOf(c)

			Convey("Then it is improved and crossed in, and the displaced entry crossed out", func() {
				So(crossing, ShouldBeTrue)
				So(tags["e"], ShouldEqual, tracker.Improved|tracker.CrossedIn)
				So(tags["c"], ShouldEqual, tracker.Worsened|tracker.CrossedOut)
				So(tags["a"], ShouldEqual, tracker.Worsened)
				So(tags["b"], ShouldEqual, tracker.Worsened)
				So(tags["d"], ShouldEqual, tracker.Worsened)
			})
		})

		Convey("When two entries swap inside the top tier", func() {
			tr.Observe(ranking("a", "b", "c", "d"))
			c, crossing := tr.Observe(ranking("b", "a", "c", "d"))
			tags := tagsOf(c)

			Convey("Then no crossing is reported", func() {
				So(crossing, ShouldBeFalse)
				So(tags["b"], ShouldEqual, tracker.Improved)
				So(tags["a"], ShouldEqual, tracker.Worsened)
				So(tags["c"], ShouldEqual, tracker.Unchanged)
			})
		})

		Convey("When an entry with score 0 moves up", func() {
			prev := types.Ranking{
				{ID: "a", Name: "Ada", Score: 5},
				{ID: "b", Name: "Bo", Score: 0},
				{ID: "z", Name: "Zed", Score: 0},
			}
			next := types.Ranking{
				{ID: "a", Name: "Ada", Score: 5},
				{ID: "z", Name: "Zed", Score: 0},
				{ID: "b", Name: "Bo", Score: 0},
			}
			tr.Observe(prev)
			c, _ := tr.Observe(next)
			tags := tagsOf(c)

			Convey("Then it is never improved", func() {
				So(tags["z"].Has(tracker.Improved), ShouldBeFalse)
				So(tags["b"], ShouldEqual, tracker.Worsened)
			})
		})

		Convey("When a new entry enters straight into the top tier", func() {
			tr.Observe(ranking("a", "b", "c"))
			c, crossing := tr.Observe(ranking("n", "a", "b", "c"))
			tags := tagsOf(c)

			Convey("Then it is only unranked", func() {
				So(tags["n"], ShouldEqual, tracker.Unranked)
				So(tags["c"], ShouldEqual, tracker.Worsened|tracker.CrossedOut)
				So(crossing, ShouldBeTrue)
			})
		})

		Convey("When the ranking empties and entries come back", func() {
			tr.Observe(ranking("a", "b"))
			c, crossing := tr.Observe(types.Ranking{})

			Convey("Then the snapshot is cleared", func() {
				So(c, ShouldBeEmpty)
				So(crossing, ShouldBeFalse)
				So(tr.Len(), ShouldEqual, 0)

				again, _ := tr.Observe(ranking("a", "b"))
				So(again.Count(tracker.Unranked), ShouldEqual, 2)
			})
		})

		Convey("When an entry leaves the ranking", func() {
			tr.Observe(ranking("a", "b", "c"))
			tr.Observe(ranking("a", "c"))

			Convey("Then its id is dropped from the snapshot", func() {
				_, ok := tr.Snapshot().Rank("b")
				So(ok, ShouldBeFalse)
				So(tr.Len(), ShouldEqual, 2)
			})
		})
	})
}

func TestClassifyPurity(t *testing.T) {
	Convey("Given a previous snapshot and a new ranking", t, func() {
		prev := tracker.Commit(ranking("a", "b", "c", "d", "e"))
		next := ranking("d", "a", "e", "b", "c")

		Convey("When classifying twice", func() {
			first, crossFirst := tracker.Classify(next, prev, 3)
			second, crossSecond := tracker.Classify(next, prev, 3)

			Convey("Then both results are equal and the snapshot is untouched", func() {
				So(cmp.Diff(first, second), ShouldBeEmpty)
				So(crossFirst, ShouldEqual, crossSecond)
				So(cmp.Diff(prev, tracker.Commit(ranking("a", "b", "c", "d", "e"))), ShouldBeEmpty)
			})
		})

		Convey("When committing and classifying the same ranking", func() {
			c, crossing := tracker.Classify(next, tracker.Commit(next), 3)

			Convey("Then every entry is unchanged", func() {
				So(crossing, ShouldBeFalse)
				So(c.Count(tracker.Unchanged), ShouldEqual, len(next))
			})
		})

		Convey("When committing an empty ranking", func() {
			Convey("Then the snapshot is empty", func() {
				So(tracker.Commit(nil), ShouldBeEmpty)
			})
		})
	})
}

func TestClassifyMovementDetail(t *testing.T) {
	prev := tracker.Commit(ranking("a", "b", "c", "d"))
	got, crossing := tracker.Classify(ranking("a", "d", "b", "c"), prev, 3)

	want := tracker.Classified{
		{ID: "a", Name: "Player a", Score: 100, Rank: 0, PrevRank: 0, Tags: tracker.Unchanged},
		{ID: "d", Name: "Player d", Score: 99, Rank: 1, PrevRank: 3, Tags: tracker.Improved | tracker.CrossedIn},
		{ID: "b", Name: "Player b", Score: 98, Rank: 2, PrevRank: 1, Tags: tracker.Worsened},
		{ID: "c", Name: "Player c", Score: 97, Rank: 3, PrevRank: 2, Tags: tracker.Worsened | tracker.CrossedOut},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("classification mismatch (-want +got):\n%s", diff)
	}
	if !crossing {
		t.Error("expected a crossing")
	}
}

func TestTagString(t *testing.T) {
	cases := map[tracker.Tag]string{
		0:                                     "none",
		tracker.Unranked:                      "unranked",
		tracker.Improved | tracker.CrossedIn:  "improved|crossed-in",
		tracker.Worsened | tracker.CrossedOut: "worsened|crossed-out",
	}
	for tag, want := range cases {
		if got := tag.String(); got != want {
			t.Errorf("Tag(%d).String() = %q, want %q", tag, got, want)
		}
	}
	if tracker.Improved.Has(0) {
		t.Error("no tag set should never match")
	}
}
