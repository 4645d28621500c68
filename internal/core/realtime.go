package core

import (
	"context"
	"encoding/json"
)

// SocketMessage is an inbound frame from the real-time service: a kind tag and a raw payload.
type SocketMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// RealtimeClient is the external real-time client the session delegates to.
// It owns the wire protocol and room semantics.
type RealtimeClient interface {
	// CreateRoom returns the id of a newly created room.
	CreateRoom(ctx context.Context, nickname, icon string) (string, error)
	// JoinRoom returns the raw history snapshot of the joined room.
	JoinRoom(ctx context.Context, nickname, roomID, icon string) (json.RawMessage, error)
	// SendTagged sends payload under the given message kind.
	SendTagged(kind string, payload any) error
	// Teardown closes the connection. No events are delivered afterwards.
	Teardown() error
}

// EventHandler receives the three events a RealtimeClient produces.
// Calls arrive from the client's own goroutine, in transport order.
type EventHandler interface {
	OnConnectionReady()
	OnMessage(SocketMessage)
	OnClose()
}

// Dialer constructs a RealtimeClient bound to h. It must not block on the network:
// readiness is reported later through h.OnConnectionReady.
type Dialer func(ctx context.Context, h EventHandler) (RealtimeClient, error)
