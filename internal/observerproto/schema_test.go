package observerproto

import (
	"encoding/json"
	"testing"

	"unseen.ai/internal/sim/events"
	"unseen.ai/internal/sim/voxel"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	var hello HelloMsg
	if err := Decode([]byte(`{"type":"HELLO","protocol_version":"1.0","name":"alice"}`), TypeHello, &hello); err != nil {
		t.Fatalf("hello: %v", err)
	}
	if hello.Name != "alice" {
		t.Fatalf("name=%q", hello.Name)
	}

	var pose PoseMsg
	if err := Decode([]byte(`{"type":"POSE","pos":[0.5,61,-3.25],"yaw":-90,"pitch":12.5}`), TypePose, &pose); err != nil {
		t.Fatalf("pose: %v", err)
	}
	if pose.Pos != [3]float64{0.5, 61, -3.25} || pose.Yaw != -90 {
		t.Fatalf("pose=%+v", pose)
	}

	// Outgoing messages must satisfy their own schemas.
	outgoing := []struct {
		typ string
		msg any
	}{
		{TypeWelcome, WelcomeMsg{Type: TypeWelcome, ProtocolVersion: Version, ObserverID: "O1", WorldID: "w1", Tick: 7, TickRateHz: 20, Spawn: [3]float64{0.5, 61, 0.5}}},
		{TypeEvent, EventMsg{Type: TypeEvent, Event: events.Event{Tick: 9, Kind: events.KindPursuitCue, ID: "r1", Pos: events.At(voxel.Pos{X: 1, Y: 61, Z: -20})}}},
	}
	for _, o := range outgoing {
		b, err := json.Marshal(o.msg)
		if err != nil {
			t.Fatalf("marshal %s: %v", o.typ, err)
		}
		var v map[string]any
		if err := Decode(b, o.typ, &v); err != nil {
			t.Fatalf("%s: %v\n%s", o.typ, err, b)
		}
	}
}

func TestSchemas_RejectMalformed(t *testing.T) {
	cases := []struct {
		typ string
		raw string
	}{
		{TypeHello, `{"type":"HELLO","protocol_version":"1.0"}`},
		{TypeHello, `{"type":"POSE","protocol_version":"1.0","name":"x"}`},
		{TypePose, `{"type":"POSE","pos":[1,2],"yaw":0,"pitch":0}`},
		{TypePose, `{"type":"POSE","pos":[1,2,3],"yaw":0,"pitch":120}`},
		{TypePose, `{"type":"POSE","pos":[1,2,"x"],"yaw":0,"pitch":0}`},
		{TypePose, `not json`},
	}
	for _, tc := range cases {
		var v map[string]any
		if err := Decode([]byte(tc.raw), tc.typ, &v); err == nil {
			t.Fatalf("%s accepted %s", tc.typ, tc.raw)
		}
	}
	if _, err := Schema("DANCE"); err == nil {
		t.Fatalf("schema for unknown type")
	}
}
