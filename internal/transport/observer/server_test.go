package observer

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"

	"unseen.ai/internal/observerproto"
	"unseen.ai/internal/sim/events"
	"unseen.ai/internal/sim/runtime"
	"unseen.ai/internal/sim/voxel"
)

type fakeRuntime struct {
	outs   chan chan events.Event
	poses  chan runtime.PoseUpdate
	leaves chan string
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		outs:   make(chan chan events.Event, 1),
		poses:  make(chan runtime.PoseUpdate, 8),
		leaves: make(chan string, 1),
	}
}

func (f *fakeRuntime) ID() string          { return "w1" }
func (f *fakeRuntime) CurrentTick() uint64 { return 42 }
func (f *fakeRuntime) TickRateHz() int     { return 20 }

func (f *fakeRuntime) Join(ctx context.Context, name string, out chan events.Event) (runtime.JoinResponse, error) {
	f.outs <- out
	return runtime.JoinResponse{ObserverID: "O1", Tick: 41, Spawn: mgl64.Vec3{0.5, 61, 0.5}}, nil
}

func (f *fakeRuntime) Leave(ctx context.Context, id string) { f.leaves <- id }

func (f *fakeRuntime) UpdatePose(p runtime.PoseUpdate) bool {
	f.poses <- p
	return true
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestWSHandler_HelloPoseEvent(t *testing.T) {
	rt := newFakeRuntime()
	s := NewServer(rt, nil)
	s.heartbeat = time.Hour
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	if err := conn.WriteJSON(observerproto.HelloMsg{Type: observerproto.TypeHello, ProtocolVersion: observerproto.Version, Name: "alice"}); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	var welcome observerproto.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if welcome.Type != observerproto.TypeWelcome || welcome.ObserverID != "O1" || welcome.WorldID != "w1" || welcome.Tick != 41 {
		t.Fatalf("welcome=%+v", welcome)
	}

	if err := conn.WriteJSON(observerproto.PoseMsg{Type: observerproto.TypePose, Pos: [3]float64{3.5, 61, -2.5}, Yaw: 90, Pitch: 10}); err != nil {
		t.Fatalf("write pose: %v", err)
	}
	select {
	case p := <-rt.poses:
		if p.ObserverID != "O1" || p.Pos != (mgl64.Vec3{3.5, 61, -2.5}) || p.Yaw != 90 || p.Pitch != 10 {
			t.Fatalf("pose=%+v", p)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("pose never reached the runtime")
	}

	out := <-rt.outs
	out <- events.Event{Tick: 50, Kind: events.KindPursuitCue, Pos: events.At(voxel.Pos{X: 1, Y: 61, Z: -20})}
	var ev observerproto.EventMsg
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != observerproto.TypeEvent || ev.Event.Kind != events.KindPursuitCue || ev.Event.Pos == nil || ev.Event.Pos.Z != -20 {
		t.Fatalf("event=%+v", ev)
	}

	// A malformed pose is answered, not applied.
	if err := conn.WriteJSON(map[string]any{"type": "POSE", "pos": []float64{1, 2}, "yaw": 0, "pitch": 0}); err != nil {
		t.Fatalf("write bad pose: %v", err)
	}
	var em observerproto.ErrorMsg
	if err := conn.ReadJSON(&em); err != nil {
		t.Fatalf("read error: %v", err)
	}
	if em.Type != observerproto.TypeError || em.Code != observerproto.ErrInvalidPose {
		t.Fatalf("error=%+v", em)
	}

	conn.Close()
	select {
	case id := <-rt.leaves:
		if id != "O1" {
			t.Fatalf("left=%q", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("observer never left after disconnect")
	}
}

func TestWSHandler_Heartbeat(t *testing.T) {
	rt := newFakeRuntime()
	s := NewServer(rt, nil)
	s.heartbeat = 20 * time.Millisecond
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	_ = conn.WriteJSON(observerproto.HelloMsg{Type: observerproto.TypeHello, ProtocolVersion: observerproto.Version, Name: "bob"})
	var welcome observerproto.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	var tick observerproto.TickMsg
	if err := conn.ReadJSON(&tick); err != nil {
		t.Fatalf("read tick: %v", err)
	}
	if tick.Type != observerproto.TypeTick || tick.Tick != 42 {
		t.Fatalf("tick=%+v", tick)
	}
}

func TestWSHandler_RejectsBadHandshake(t *testing.T) {
	cases := []any{
		observerproto.PoseMsg{Type: observerproto.TypePose},
		observerproto.HelloMsg{Type: observerproto.TypeHello, ProtocolVersion: "0.1", Name: "old"},
	}
	for _, first := range cases {
		rt := newFakeRuntime()
		srv := httptest.NewServer(NewServer(rt, nil).WSHandler())

		conn := dial(t, srv)
		if err := conn.WriteJSON(first); err != nil {
			t.Fatalf("write: %v", err)
		}
		// Read until the close frame arrives; at most one ERROR message precedes it.
		var err error
		for i := 0; i < 2 && err == nil; i++ {
			_, _, err = conn.ReadMessage()
		}
		if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			t.Fatalf("first=%+v err=%v want policy violation close", first, err)
		}
		if len(rt.outs) != 0 {
			t.Fatalf("joined despite bad handshake")
		}
		conn.Close()
		srv.Close()
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5555":   true,
		"[::1]:5555":       true,
		"10.0.0.7:5555":    false,
		"203.0.113.9":      false,
		"not-an-address:1": false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", addr, got, want)
		}
	}
}
