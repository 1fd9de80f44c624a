package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/standings/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When recording ids", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then a new id is not seen and a repeat is", func() {
				So(d.SeenAndRecord(ctx, "n-1"), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "n-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a bounded deduper is over capacity", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for _, id := range []string{"n-1", "n-2", "n-3", "n-4"} {
				So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
			}

			Convey("Then the oldest id is forgotten first", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "n-4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "n-3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "n-2"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "n-1"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)
			})

			Convey("And the ring keeps wrapping", func() {
				for i := 5; i < 20; i++ {
					d.SeenAndRecord(ctx, fmt.Sprintf("n-%d", i))
				}
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "n-19"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "n-16"), ShouldBeFalse)
			})
		})

		Convey("When using unbounded mode", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			const n = 1000
			for i := 0; i < n; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("n-%d", i))
			}

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, n)
				So(d.SeenAndRecord(ctx, "n-0"), ShouldBeTrue)
			})
		})

		Convey("When many goroutines record the same ids", func() {
			d := dedupe.NewInMemoryDeduper()
			var (
				wg    sync.WaitGroup
				mu    sync.Mutex
				fresh int
			)
			for g := 0; g < 8; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 100; i++ {
						if !d.SeenAndRecord(ctx, fmt.Sprintf("n-%d", i)) {
							mu.Lock()
							fresh++
							mu.Unlock()
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then each id is new exactly once", func() {
				So(fresh, ShouldEqual, 100)
				So(d.Size(), ShouldEqual, 100)
			})
		})
	})
}
