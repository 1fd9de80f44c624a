package service_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/standings/internal/adapters/repository"
	service "github.com/okian/standings/internal/app"
	"github.com/okian/standings/internal/config"
	"github.com/okian/standings/internal/domain/director"
	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/internal/domain/types"
	"github.com/okian/standings/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("error")
}

// testConfig polls rarely so only startup, mutations and retries drive the
// engine during a test.
func testConfig() *config.Config {
	cfg := config.New(context.Background())
	cfg.PollIntervalMS = int(time.Hour / time.Millisecond)
	cfg.TransitionMS = 20
	cfg.ScoreTweenMS = 20
	cfg.BurstDelayMS = 10
	cfg.MutationPollRate = 1000
	cfg.MutationPollBurst = 100
	return cfg
}

// eventually polls cond until it holds or the deadline passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

// flakyStore fails or corrupts Ranking on demand.
type flakyStore struct {
	*repository.TreapStore

	mu        sync.Mutex
	fail      error
	duplicate bool
}

func (f *flakyStore) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *flakyStore) Ranking(ctx context.Context) (types.Ranking, error) {
	f.mu.Lock()
	fail, duplicate := f.fail, f.duplicate
	f.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	r, err := f.TreapStore.Ranking(ctx)
	if err != nil || !duplicate || len(r) == 0 {
		return r, err
	}
	return append(r, r[0]), nil
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it is not started", func() {
			So(svc, ShouldNotBeNil)
			So(svc.GetStats(context.Background())["started"], ShouldEqual, false)
			So(svc.Store(), ShouldBeNil)
		})

		Convey("And routes cannot be mounted yet", func() {
			So(svc.Mount(context.Background(), http.NewServeMux()), ShouldEqual, service.ErrNotStarted)
		})

		Convey("And the display has no view", func() {
			_, err := svc.View(context.Background())
			So(err, ShouldEqual, service.ErrNotStarted)
			So(svc.Retry(context.Background()), ShouldBeFalse)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a service with an invalid config", t, func() {
		cfg := testConfig()
		cfg.TopN = 0
		svc := service.New(service.WithConfig(cfg))

		Convey("Then Start fails with ErrInvalidConfig", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})
	})

	Convey("Given a started service", t, func() {
		svc := service.New(service.WithConfig(testConfig()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Then starting again is a no-op", func() {
			So(svc.Start(ctx), ShouldBeNil)
		})

		Convey("And the startup poll settles to an empty idle board", func() {
			So(eventually(func() bool {
				v, err := svc.View(ctx)
				return err == nil && v.Generation == 1 && v.Phase == director.PhaseIdle
			}), ShouldBeTrue)
		})

		Convey("And stats describe the running service", func() {
			stats := svc.GetStats(ctx)
			So(stats["started"], ShouldEqual, true)
			So(stats["storeBackend"], ShouldEqual, config.StoreMemory)
			So(stats["scores"], ShouldEqual, 0)
			So(stats["displayClients"], ShouldEqual, 0)
		})
	})
}

func TestService_Mutations(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithConfig(testConfig()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a score is added and announced", func() {
			e, err := svc.Store().Add(ctx, "Ann", 10)
			So(err, ShouldBeNil)
			svc.Notify(ctx, model.KindAdded, e.ID)

			Convey("Then the display picks it up without waiting for a tick", func() {
				So(eventually(func() bool {
					v, err := svc.View(ctx)
					return err == nil && len(v.Rows) == 1 && v.Rows[0].Entry.ID == e.ID
				}), ShouldBeTrue)
				So(svc.GetStats(ctx)["dedupeSize"], ShouldEqual, int64(1))
			})
		})
	})
}

func TestService_Failures(t *testing.T) {
	Convey("Given a service whose store fails", t, func() {
		store := &flakyStore{TreapStore: repository.NewTreapStore(), fail: errors.New("connection refused")}
		svc := service.New(service.WithConfig(testConfig()), service.WithStore(store))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Then the display enters the failed phase", func() {
			So(eventually(func() bool {
				v, err := svc.View(ctx)
				return err == nil && v.Phase == director.PhaseFailed
			}), ShouldBeTrue)

			Convey("And a retry recovers once the store is back", func() {
				store.setFail(nil)
				So(eventually(func() bool { return svc.Retry(ctx) }), ShouldBeTrue)
				So(eventually(func() bool {
					v, err := svc.View(ctx)
					return err == nil && v.Phase == director.PhaseIdle && v.Err == nil
				}), ShouldBeTrue)
			})
		})
	})

	Convey("Given a service whose store returns duplicate ids", t, func() {
		store := &flakyStore{TreapStore: repository.NewTreapStore(), duplicate: true}
		_, err := store.Add(context.Background(), "Ann", 3)
		So(err, ShouldBeNil)
		svc := service.New(service.WithConfig(testConfig()), service.WithStore(store))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Then the ranking is rejected as malformed", func() {
			So(eventually(func() bool {
				v, err := svc.View(ctx)
				return err == nil && errors.Is(v.Err, types.ErrMalformedRanking)
			}), ShouldBeTrue)
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithConfig(testConfig()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When stopping the service", func() {
			svc.Stop()

			Convey("Then it is marked as stopped", func() {
				So(svc.GetStats(ctx)["started"], ShouldEqual, false)
			})

			Convey("And the engine no longer answers", func() {
				_, err := svc.View(ctx)
				So(errors.Is(err, director.ErrEngineStopped), ShouldBeTrue)
				So(svc.Retry(ctx), ShouldBeFalse)
			})

			Convey("And stopping again is safe", func() {
				So(func() { svc.Stop() }, ShouldNotPanic)
			})
		})
	})
}
