package entry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/WatchParty/internal/app/session"
	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/domain"
)

type stubClient struct {
	handler   core.EventHandler
	createID  string
	createErr error
	joinErr   error
	creates   int
}

func (s *stubClient) CreateRoom(context.Context, string, string) (string, error) {
	s.creates++
	return s.createID, s.createErr
}

func (s *stubClient) JoinRoom(context.Context, string, string, string) (json.RawMessage, error) {
	return nil, s.joinErr
}

func (s *stubClient) SendTagged(string, any) error { return nil }
func (s *stubClient) Teardown() error              { return nil }

type stubDialer struct {
	mu      sync.Mutex
	clients []*stubClient
	setup   func(*stubClient)
}

func (d *stubDialer) Dial(_ context.Context, h core.EventHandler) (core.RealtimeClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &stubClient{handler: h}
	if d.setup != nil {
		d.setup(c)
	}
	d.clients = append(d.clients, c)
	return c, nil
}

func (d *stubDialer) client(i int) *stubClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.clients) {
		return nil
	}
	return d.clients[i]
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

// started returns a controller whose session is already ready.
func started(t *testing.T, setup func(*stubClient)) (*Controller, *stubDialer) {
	t.Helper()
	d := &stubDialer{setup: setup}
	c := New(session.New(d.Dial, session.DefaultKinds()), WithRetryDelay(time.Millisecond))
	c.Start(context.Background())
	t.Cleanup(c.Dispose)

	eventually(t, "dial", func() bool { return d.client(0) != nil })
	d.client(0).handler.OnConnectionReady()
	eventually(t, "ready", func() bool { return c.View().Ready })
	return c, d
}

func TestReadinessIsPushed(t *testing.T) {
	c, d := started(t, nil)

	d.client(0).handler.OnClose()
	eventually(t, "not ready", func() bool { return !c.View().Ready })

	eventually(t, "redial", func() bool { return d.client(1) != nil })
	d.client(1).handler.OnConnectionReady()
	eventually(t, "ready again", func() bool { return c.View().Ready })
}

func TestCloseBeforeReadyRedials(t *testing.T) {
	d := &stubDialer{}
	c := New(session.New(d.Dial, session.DefaultKinds()), WithRetryDelay(time.Millisecond))
	c.Start(context.Background())
	defer c.Dispose()

	eventually(t, "dial", func() bool { return d.client(0) != nil })
	d.client(0).handler.OnClose()
	eventually(t, "redial", func() bool { return d.client(1) != nil })
	if c.View().Ready {
		t.Fatal("ready without a ready event")
	}
}

func TestCreateRoomRequiresNickname(t *testing.T) {
	c, d := started(t, nil)
	c.SetNickname("   ")
	_, err := c.CreateRoom(context.Background())
	if !errors.Is(err, domain.ErrMissingParameter) {
		t.Fatalf("err = %v", err)
	}
	if got := c.View().Error; got != "Please enter your nickname" {
		t.Fatalf("error = %q", got)
	}
	if d.client(0).creates != 0 {
		t.Fatal("create must not reach the session")
	}
}

func TestCreateRoom(t *testing.T) {
	c, _ := started(t, func(s *stubClient) { s.createID = "R1" })
	c.SetNickname(" alice ")

	var busySeen bool
	c.OnChange(func(v View) {
		if v.Creating {
			busySeen = true
		}
	})

	nav, err := c.CreateRoom(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !busySeen {
		t.Fatal("creating flag never raised")
	}
	if nav.RoomID != "R1" || nav.Nickname != "alice" {
		t.Fatalf("nav = %+v", nav)
	}
	if got := nav.Location(); got != "/room/R1?nickname=alice" {
		t.Fatalf("location = %q", got)
	}
	if v := c.View(); v.Creating || v.Error != "" {
		t.Fatalf("view = %+v", v)
	}
}

func TestCreateRoomRejected(t *testing.T) {
	c, _ := started(t, func(s *stubClient) { s.createErr = errors.New("room limit reached") })
	c.SetNickname("alice")

	if _, err := c.CreateRoom(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	v := c.View()
	if v.Error != "Failed to create room: room limit reached" {
		t.Fatalf("error = %q", v.Error)
	}
	if v.Disabled() {
		t.Fatalf("actions should be enabled again: %+v", v)
	}
}

func TestJoinRoom(t *testing.T) {
	tests := []struct {
		name    string
		roomID  string
		joinErr error
		wantErr string
		wantNav domain.Navigation
	}{
		{name: "missing room", roomID: "  ", wantErr: "Please enter a room ID"},
		{name: "rejected", roomID: "R9", joinErr: errors.New("not found"),
			wantErr: "Failed to join room. Please check the room ID and try again."},
		{name: "ok", roomID: " R1 ", wantNav: domain.Navigation{RoomID: "R1", Nickname: "bob"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := started(t, func(s *stubClient) { s.joinErr = tc.joinErr })
			c.SetNickname("bob")
			c.SetRoomID(tc.roomID)

			nav, err := c.JoinRoom(context.Background())
			if tc.wantErr != "" {
				if err == nil || c.View().Error != tc.wantErr {
					t.Fatalf("err = %v, view error = %q", err, c.View().Error)
				}
				return
			}
			if err != nil || nav != tc.wantNav {
				t.Fatalf("nav = %+v, err = %v", nav, err)
			}
		})
	}
}

func TestDisposeIgnoresLateResult(t *testing.T) {
	d := &stubDialer{}
	c := New(session.New(d.Dial, session.DefaultKinds()))
	c.Start(context.Background())
	c.SetNickname("alice")

	var changes atomic.Int32
	c.OnChange(func(View) { changes.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.CreateRoom(ctx)
		done <- err
	}()
	eventually(t, "creating", func() bool { return changes.Load() >= 1 && c.View().Creating })

	c.Dispose()
	before := changes.Load()
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if changes.Load() != before {
		t.Fatal("notified after dispose")
	}
}
