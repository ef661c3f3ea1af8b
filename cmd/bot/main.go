package main

import (
	"encoding/json"
	"flag"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"

	"unseen.ai/internal/observerproto"
)

func main() {
	var (
		url      = flag.String("url", "ws://127.0.0.1:8080/v1/observe", "observer ws url")
		name     = flag.String("name", "bot", "observer name")
		interval = flag.Duration("interval", 250*time.Millisecond, "pose update interval")
		seed     = flag.Uint64("seed", uint64(time.Now().UnixNano()), "wander seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := observerproto.HelloMsg{
		Type:            observerproto.TypeHello,
		ProtocolVersion: observerproto.Version,
		Name:            *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}
	var w observerproto.WelcomeMsg
	if err := conn.ReadJSON(&w); err != nil || w.Type != observerproto.TypeWelcome {
		logger.Fatalf("expected WELCOME: %v %+v", err, w)
	}
	logger.Printf("WELCOME observer_id=%s world=%s tick=%d tick_rate=%d", w.ObserverID, w.WorldID, w.Tick, w.TickRateHz)

	msgs := make(chan []byte, 64)
	go func() {
		defer close(msgs)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msgs <- msg
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	t := time.NewTicker(*interval)
	defer t.Stop()

	rng := rand.New(rand.NewPCG(*seed, 0))
	p := pose{Pos: mgl64.Vec3(w.Spawn)}
	for {
		select {
		case <-stop:
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Printf("connection closed")
				return
			}
			handleMessage(logger, msg)
		case <-t.C:
			p = p.wander(rng)
			if err := conn.WriteJSON(p.msg()); err != nil {
				logger.Printf("send POSE: %v", err)
				return
			}
		}
	}
}

func handleMessage(logger *log.Logger, msg []byte) {
	var base observerproto.BaseMessage
	if err := json.Unmarshal(msg, &base); err != nil {
		return
	}
	switch base.Type {
	case observerproto.TypeEvent:
		var ev observerproto.EventMsg
		if err := json.Unmarshal(msg, &ev); err != nil {
			return
		}
		e := ev.Event
		if e.Pos != nil {
			logger.Printf("EVENT tick=%d %s %s at %v %s", e.Tick, e.Kind, e.ID, *e.Pos, e.Reason)
		} else {
			logger.Printf("EVENT tick=%d %s %s %s", e.Tick, e.Kind, e.ID, e.Reason)
		}
	case observerproto.TypeError:
		var em observerproto.ErrorMsg
		if err := json.Unmarshal(msg, &em); err == nil {
			logger.Printf("ERROR %s: %s", em.Code, em.Message)
		}
	}
}

type pose struct {
	Pos        mgl64.Vec3
	Yaw, Pitch float64
}

// wander turns a little and usually steps forward, staying on the spawn plane.
func (p pose) wander(rng *rand.Rand) pose {
	p.Yaw = math.Mod(p.Yaw+rng.Float64()*60-30+540, 360) - 180
	p.Pitch = mgl64.Clamp(p.Pitch+rng.Float64()*10-5, -45, 45)
	if rng.IntN(4) != 0 {
		rad := mgl64.DegToRad(p.Yaw)
		p.Pos = p.Pos.Add(mgl64.Vec3{-math.Sin(rad), 0, math.Cos(rad)}.Mul(0.5))
	}
	return p
}

func (p pose) msg() observerproto.PoseMsg {
	return observerproto.PoseMsg{
		Type:  observerproto.TypePose,
		Pos:   [3]float64(p.Pos),
		Yaw:   p.Yaw,
		Pitch: p.Pitch,
	}
}
