package observer

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"

	"unseen.ai/internal/observerproto"
	"unseen.ai/internal/sim/events"
	"unseen.ai/internal/sim/runtime"
)

// Runtime is the part of the simulation runtime a connection talks to.
type Runtime interface {
	ID() string
	CurrentTick() uint64
	TickRateHz() int
	Join(ctx context.Context, name string, out chan events.Event) (runtime.JoinResponse, error)
	Leave(ctx context.Context, id string)
	UpdatePose(p runtime.PoseUpdate) bool
}

type Server struct {
	rt  Runtime
	log *log.Logger

	upgrader  websocket.Upgrader
	heartbeat time.Duration
}

func NewServer(rt Runtime, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		rt:        rt,
		log:       logger,
		heartbeat: time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			// Loopback only; see isLoopbackRemote.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send HELLO first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var hello observerproto.HelloMsg
		if err := observerproto.Decode(msg, observerproto.TypeHello, &hello); err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
			return
		}
		if hello.ProtocolVersion != observerproto.Version {
			writeError(conn, observerproto.ErrBadVersion, "unsupported protocol_version")
			closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan events.Event, 256)
		joinCtx, joinCancel := context.WithTimeout(ctx, 5*time.Second)
		jr, err := s.rt.Join(joinCtx, hello.Name, out)
		joinCancel()
		if err != nil {
			writeError(conn, observerproto.ErrServerBusy, "join timed out")
			closeWith(conn, websocket.CloseTryAgainLater, "server busy")
			return
		}
		defer func() {
			leaveCtx, leaveCancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.rt.Leave(leaveCtx, jr.ObserverID)
			leaveCancel()
		}()
		s.log.Printf("observer %s (%s) connected from %s", jr.ObserverID, hello.Name, r.RemoteAddr)

		welcome := observerproto.WelcomeMsg{
			Type:            observerproto.TypeWelcome,
			ProtocolVersion: observerproto.Version,
			ObserverID:      jr.ObserverID,
			WorldID:         s.rt.ID(),
			Tick:            jr.Tick,
			TickRateHz:      s.rt.TickRateHz(),
			Spawn:           [3]float64(jr.Spawn),
		}
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(welcome); err != nil {
			return
		}

		// Writer goroutine. Every write after WELCOME goes through here.
		replies := make(chan any, 8)
		writeErr := make(chan error, 1)
		go func() {
			hb := time.NewTicker(s.heartbeat)
			defer hb.Stop()
			for {
				var v any
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case e := <-out:
					v = observerproto.EventMsg{Type: observerproto.TypeEvent, Event: e}
				case v = <-replies:
				case <-hb.C:
					v = observerproto.TickMsg{Type: observerproto.TypeTick, Tick: s.rt.CurrentTick()}
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(v); err != nil {
					writeErr <- err
					cancel()
					return
				}
			}
		}()

		// Reader loop: POSE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var base observerproto.BaseMessage
			if err := json.Unmarshal(msg, &base); err != nil || base.Type != observerproto.TypePose {
				reply(replies, observerproto.ErrBadRequest, "expected POSE")
				continue
			}
			var pose observerproto.PoseMsg
			if err := observerproto.Decode(msg, observerproto.TypePose, &pose); err != nil {
				reply(replies, observerproto.ErrInvalidPose, err.Error())
				continue
			}
			s.rt.UpdatePose(runtime.PoseUpdate{
				ObserverID: jr.ObserverID,
				Pos:        mgl64.Vec3(pose.Pos),
				Yaw:        pose.Yaw,
				Pitch:      pose.Pitch,
			})
		}

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		s.log.Printf("observer %s disconnected", jr.ObserverID)
	}
}

func reply(ch chan any, code, message string) {
	select {
	case ch <- observerproto.ErrorMsg{Type: observerproto.TypeError, Code: code, Message: message}:
	default:
	}
}

func writeError(conn *websocket.Conn, code, message string) {
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = conn.WriteJSON(observerproto.ErrorMsg{Type: observerproto.TypeError, Code: code, Message: message})
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
