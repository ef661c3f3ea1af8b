package observerproto

import "unseen.ai/internal/sim/events"

// Version is the observer protocol version.
const Version = "1.0"

const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypePose    = "POSE"
	TypeEvent   = "EVENT"
	TypeTick    = "TICK"
	TypeError   = "ERROR"
)

// Client -> Server. First message on the connection.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
}

// Server -> Client. Reply to HELLO.
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	ObserverID      string     `json:"observer_id"`
	WorldID         string     `json:"world_id"`
	Tick            uint64     `json:"tick"`
	TickRateHz      int        `json:"tick_rate_hz"`
	Spawn           [3]float64 `json:"spawn"`
}

// Client -> Server. Current feet position and look direction.
// Yaw is degrees with 0 facing +Z and 90 facing -X; positive pitch looks down.
type PoseMsg struct {
	Type  string     `json:"type"`
	Pos   [3]float64 `json:"pos"`
	Yaw   float64    `json:"yaw"`
	Pitch float64    `json:"pitch"`
}

// Server -> Client. One simulation event the observer may perceive.
type EventMsg struct {
	Type  string       `json:"type"`
	Event events.Event `json:"event"`
}

// Server -> Client. Periodic heartbeat.
type TickMsg struct {
	Type string `json:"type"`
	Tick uint64 `json:"tick"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrBadRequest  = "E_BAD_REQUEST"
	ErrBadVersion  = "E_PROTOCOL_VERSION"
	ErrServerBusy  = "E_BUSY"
	ErrInvalidPose = "E_INVALID_POSE"
)

// BaseMessage peeks at the type of an incoming message.
type BaseMessage struct {
	Type string `json:"type"`
}
