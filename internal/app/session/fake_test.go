package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/dkeye/WatchParty/internal/core"
)

type sent struct {
	kind    string
	payload any
}

type fakeClient struct {
	mu         sync.Mutex
	handler    core.EventHandler
	sent       []sent
	sendErr    error
	createID   string
	createErr  error
	joinRaw    json.RawMessage
	joinErr    error
	teardowns  int
	teardownEr error
}

func (f *fakeClient) CreateRoom(ctx context.Context, nickname, icon string) (string, error) {
	return f.createID, f.createErr
}

func (f *fakeClient) JoinRoom(ctx context.Context, nickname, roomID, icon string) (json.RawMessage, error) {
	return f.joinRaw, f.joinErr
}

func (f *fakeClient) SendTagged(kind string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sent{kind: kind, payload: payload})
	return nil
}

func (f *fakeClient) Teardown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teardowns++
	return f.teardownEr
}

func (f *fakeClient) Sent() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func (f *fakeClient) emit(kind string, data string) {
	f.handler.OnMessage(core.SocketMessage{Type: kind, Data: json.RawMessage(data)})
}

// fakeDialer hands out a fresh fakeClient per dial and remembers them.
type fakeDialer struct {
	mu      sync.Mutex
	clients []*fakeClient
	err     error
}

func (d *fakeDialer) Dial(ctx context.Context, h core.EventHandler) (core.RealtimeClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	c := &fakeClient{handler: h}
	d.clients = append(d.clients, c)
	return c, nil
}

func (d *fakeDialer) last() *fakeClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.clients) == 0 {
		return nil
	}
	return d.clients[len(d.clients)-1]
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}

var errBoom = errors.New("boom")
