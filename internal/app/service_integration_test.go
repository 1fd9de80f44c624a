package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/standings/internal/app"
	"github.com/okian/standings/internal/domain/director"
	"github.com/okian/standings/internal/domain/types"
)

type scoreReply struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Score   types.Entry `json:"score"`
}

func postScore(url, method string, body map[string]any) (int, scoreReply) {
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest(method, url+"/api/scores", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, scoreReply{}
	}
	defer resp.Body.Close()
	var out scoreReply
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

// nextFrame reads frames until match accepts one or the deadline passes.
func nextFrame(conn *websocket.Conn, match func(director.Frame) bool) (director.Frame, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var f director.Frame
		if err := conn.ReadJSON(&f); err != nil {
			return director.Frame{}, false
		}
		if match(f) {
			return f, true
		}
	}
}

func hasRow(f director.Frame, name string) bool {
	for _, r := range f.Rows {
		if r.Name == name {
			return true
		}
	}
	return false
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started service behind an HTTP server", t, func() {
		svc := service.New(service.WithConfig(testConfig()))
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		So(svc.Mount(ctx, mux), ShouldBeNil)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		// Wait for the startup poll so the first frame is deterministic.
		So(eventually(func() bool {
			v, err := svc.View(ctx)
			return err == nil && v.Generation >= 1
		}), ShouldBeTrue)

		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
		So(err, ShouldBeNil)
		defer conn.Close()

		Convey("Then the display first receives the empty board", func() {
			f, ok := nextFrame(conn, func(director.Frame) bool { return true })
			So(ok, ShouldBeTrue)
			So(f.Type, ShouldEqual, director.FrameEmpty)
			So(f.Message, ShouldEqual, director.EmptyMessage)
			So(svc.GetStats(ctx)["displayClients"], ShouldEqual, 1)
		})

		Convey("When a score is posted", func() {
			code, reply := postScore(srv.URL, http.MethodPost, map[string]any{"name": "Ann", "score": 10})
			So(code, ShouldEqual, http.StatusCreated)
			So(reply.Success, ShouldBeTrue)

			Convey("Then a transition frame brings it onto the board", func() {
				f, ok := nextFrame(conn, func(f director.Frame) bool {
					return f.Type == director.FrameTransition && hasRow(f, "Ann")
				})
				So(ok, ShouldBeTrue)
				So(f.Rows[0].ID, ShouldEqual, reply.Score.ID)
				So(f.Rows[0].Tags, ShouldContain, "unranked")
				So(f.Rows[0].Top, ShouldBeTrue)
			})
		})

		Convey("When the last entry jumps into the top tier", func() {
			var last types.Entry
			for i, name := range []string{"Ann", "Bob", "Cid", "Dee"} {
				code, reply := postScore(srv.URL, http.MethodPost, map[string]any{"name": name, "score": 40 - i*10})
				So(code, ShouldEqual, http.StatusCreated)
				last = reply.Score
			}
			So(eventually(func() bool {
				v, err := svc.View(ctx)
				return err == nil && len(v.Rows) == 4 && v.Phase == director.PhaseIdle
			}), ShouldBeTrue)

			code, _ := postScore(srv.URL, http.MethodPut, map[string]any{"id": last.ID, "name": last.Name, "score": 100})
			So(code, ShouldEqual, http.StatusOK)

			Convey("Then it snaps and earns a major celebration", func() {
				f, ok := nextFrame(conn, func(f director.Frame) bool {
					return f.Type == director.FrameTransition && len(f.Rows) == 4 && f.Rows[0].ID == last.ID
				})
				So(ok, ShouldBeTrue)
				So(f.Mode, ShouldEqual, director.ModeSnap)
				So(f.Rows[0].Tags, ShouldContain, "improved")
				So(f.Rows[0].Tags, ShouldContain, "crossed-in")

				c, ok := nextFrame(conn, func(f director.Frame) bool { return f.Type == director.FrameCelebrate })
				So(ok, ShouldBeTrue)
				So(c.Bursts[0].EntryID, ShouldEqual, last.ID)
				So(c.Bursts[0].Tier, ShouldEqual, "major")
			})
		})

		Convey("When the board is cleared", func() {
			code, _ := postScore(srv.URL, http.MethodPost, map[string]any{"name": "Ann", "score": 10})
			So(code, ShouldEqual, http.StatusCreated)
			_, ok := nextFrame(conn, func(f director.Frame) bool { return f.Type == director.FrameTransition })
			So(ok, ShouldBeTrue)

			req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/scores", nil)
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			Convey("Then the display falls back to the empty message", func() {
				f, ok := nextFrame(conn, func(f director.Frame) bool { return f.Type == director.FrameEmpty })
				So(ok, ShouldBeTrue)
				So(f.Removed, ShouldHaveLength, 1)
			})
		})

		Convey("When the display state is requested", func() {
			resp, err := http.Get(srv.URL + "/api/display/state")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the engine view is reported", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var state map[string]any
				So(json.NewDecoder(resp.Body).Decode(&state), ShouldBeNil)
				So(state["phase"], ShouldEqual, "idle")
			})
		})

		Convey("When the display page is requested", func() {
			resp, err := http.Get(srv.URL + "/")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(resp.Header.Get("Content-Type"), ShouldContainSubstring, "text/html")
		})
	})
}
