package http

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/WatchParty/internal/app"
	"github.com/dkeye/WatchParty/internal/app/session"
	"github.com/dkeye/WatchParty/internal/config"
	"github.com/dkeye/WatchParty/internal/core"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// echoClient is an in-memory real-time service: chat sends come straight
// back as chat events carrying sender u1.
type echoClient struct {
	mu        sync.Mutex
	handler   core.EventHandler
	createErr error
	joinErr   error
	ts        int64
}

func (e *echoClient) CreateRoom(context.Context, string, string) (string, error) {
	if e.createErr != nil {
		return "", e.createErr
	}
	return "R1", nil
}

func (e *echoClient) JoinRoom(_ context.Context, _ string, roomID string, _ string) (json.RawMessage, error) {
	if e.joinErr != nil {
		return nil, e.joinErr
	}
	if roomID != "R1" {
		return nil, errors.New("Session not found")
	}
	return json.RawMessage(`{"messages":[{"isSystemMessage":true,"body":"alice joined","permId":"sys","timestamp":1}]}`), nil
}

func (e *echoClient) SendTagged(kind string, payload any) error {
	if kind != "sendMessage" {
		return nil
	}
	raw, _ := json.Marshal(payload)
	var p struct {
		Body string `json:"body"`
	}
	_ = json.Unmarshal(raw, &p)

	e.mu.Lock()
	e.ts++
	ts := e.ts + 100
	e.mu.Unlock()

	data, _ := json.Marshal(map[string]any{
		"userNickname": "alice",
		"body":         p.Body,
		"permId":       "u1",
		"timestamp":    ts,
	})
	go e.handler.OnMessage(core.SocketMessage{Type: kind, Data: data})
	return nil
}

func (e *echoClient) Teardown() error { return nil }

type testEnv struct {
	orch   *app.Orchestrator
	engine *gin.Engine
	client func() *echoClient
}

func newTestEnv(t *testing.T, setup func(*echoClient)) *testEnv {
	t.Helper()
	var mu sync.Mutex
	var last *echoClient
	adapter := session.New(func(_ context.Context, h core.EventHandler) (core.RealtimeClient, error) {
		c := &echoClient{handler: h}
		if setup != nil {
			setup(c)
		}
		mu.Lock()
		last = c
		mu.Unlock()
		go h.OnConnectionReady()
		return c, nil
	}, session.DefaultKinds())

	orch := &app.Orchestrator{
		Session:    adapter,
		Registry:   app.NewRegistry(),
		Policy:     app.SimplePolicy{},
		RetryDelay: time.Millisecond,
	}
	ctx, cancel := context.WithCancel(context.Background())
	orch.Run(ctx)
	t.Cleanup(func() {
		orch.Shutdown()
		cancel()
	})

	cfg := &config.Config{
		Mode:             "test",
		StaticPath:       t.TempDir(),
		Secret:           "test-secret",
		SendRateLimit:    2,
		SendRateInterval: time.Minute,
	}
	return &testEnv{
		orch:   orch,
		engine: SetupRouter(ctx, cfg, orch),
		client: func() *echoClient {
			mu.Lock()
			defer mu.Unlock()
			return last
		},
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
