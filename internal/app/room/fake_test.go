package room

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/WatchParty/internal/domain"
)

type fakeSession struct {
	mu          sync.Mutex
	subs        []func(domain.Event)
	closes      []func()
	history     domain.MessageHistory
	joinErr     error
	joinBlock   chan struct{}
	sent        []string
	sendErr     error
	typing      []bool
	disconnects int
	senderID    string
}

func (f *fakeSession) Connect(context.Context) error        { return nil }
func (f *fakeSession) WaitUntilReady(context.Context) error { return nil }
func (f *fakeSession) IsReady() bool                        { return true }

func (f *fakeSession) CreateRoom(context.Context, string, string) (domain.RoomID, error) {
	return "", nil
}

func (f *fakeSession) JoinRoom(ctx context.Context, nickname string, roomID domain.RoomID, icon string) (domain.MessageHistory, error) {
	if f.joinBlock != nil {
		select {
		case <-f.joinBlock:
		case <-ctx.Done():
			return domain.MessageHistory{}, ctx.Err()
		}
	}
	if f.joinErr != nil {
		return domain.MessageHistory{}, f.joinErr
	}
	if f.history.Messages != nil {
		f.publish(domain.HistoryEvent{History: f.history})
	}
	return f.history, nil
}

func (f *fakeSession) SendMessage(body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, body)
	return nil
}

func (f *fakeSession) SendTypingPresence(typing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, typing)
}

func (f *fakeSession) Subscribe(fn func(domain.Event)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
	idx := len(f.subs) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.subs[idx] = nil
	}
}

func (f *fakeSession) OnClose(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes = append(f.closes, fn)
	idx := len(f.closes) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.closes[idx] = nil
	}
}

func (f *fakeSession) LocalSenderID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.senderID
}

func (f *fakeSession) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}

func (f *fakeSession) publish(ev domain.Event) {
	f.mu.Lock()
	subs := slices.Clone(f.subs)
	f.mu.Unlock()
	for _, fn := range subs {
		if fn != nil {
			fn(ev)
		}
	}
}

func (f *fakeSession) fireClose() {
	f.mu.Lock()
	closes := slices.Clone(f.closes)
	f.mu.Unlock()
	for _, fn := range closes {
		if fn != nil {
			fn()
		}
	}
}

func (f *fakeSession) typingCalls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.typing)
}

func (f *fakeSession) liveSubscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, fn := range f.subs {
		if fn != nil {
			n++
		}
	}
	return n
}

// manualClock fires timers only when Advance is called.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	for {
		var next *manualTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at > target {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			break
		}
		c.now = next.at
		next.fired = true
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}
