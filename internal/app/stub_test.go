package app

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dkeye/WatchParty/internal/app/session"
	"github.com/dkeye/WatchParty/internal/core"
)

type stubClient struct {
	mu        sync.Mutex
	handler   core.EventHandler
	teardowns int
	sent      []string
}

func (c *stubClient) CreateRoom(context.Context, string, string) (string, error) { return "R1", nil }

func (c *stubClient) JoinRoom(context.Context, string, string, string) (json.RawMessage, error) {
	return json.RawMessage(`{"messages":[]}`), nil
}

func (c *stubClient) SendTagged(kind string, _ any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, kind)
	return nil
}

func (c *stubClient) Teardown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardowns++
	return nil
}

type stubSession struct {
	*session.Adapter
	mu      sync.Mutex
	clients []*stubClient
}

// newStubSession returns a real adapter over an in-memory client that is
// ready as soon as it is dialed.
func newStubSession() *stubSession {
	s := &stubSession{}
	s.Adapter = session.New(func(_ context.Context, h core.EventHandler) (core.RealtimeClient, error) {
		c := &stubClient{handler: h}
		s.mu.Lock()
		s.clients = append(s.clients, c)
		s.mu.Unlock()
		go h.OnConnectionReady()
		return c, nil
	}, session.DefaultKinds())
	return s
}

func (s *stubSession) client(i int) *stubClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.clients) {
		return nil
	}
	return s.clients[i]
}
