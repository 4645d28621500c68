// Package entry holds the state of the pre-room view: nickname and room id
// fields, connection readiness, and the create/join commands.
package entry

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	textNicknameRequired = "Please enter your nickname"
	textRoomIDRequired   = "Please enter a room ID"
	textCreateFailed     = "Failed to create room: "
	textJoinFailed       = "Failed to join room. Please check the room ID and try again."
)

const DefaultRetryDelay = time.Second

var ErrBusy = errors.New("entry: request already in flight")

type View struct {
	Nickname string `json:"nickname"`
	RoomID   string `json:"room_id"`
	Ready    bool   `json:"ready"`
	Creating bool   `json:"creating"`
	Joining  bool   `json:"joining"`
	Error    string `json:"error,omitempty"`
}

// Disabled reports whether create/join should be offered.
func (v View) Disabled() bool { return !v.Ready || v.Creating || v.Joining }

type Option func(*Controller)

// WithRetryDelay sets the pause before reconnecting after the connection
// closes or fails to open.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

type Controller struct {
	session    core.Session
	retryDelay time.Duration

	mu        sync.Mutex
	nickname  string
	roomID    string
	ready     bool
	creating  bool
	joining   bool
	errText   string
	disposed  bool
	cancel    context.CancelFunc
	done      chan struct{}
	listeners []func(View)
}

func New(session core.Session, opts ...Option) *Controller {
	c := &Controller{session: session, retryDelay: DefaultRetryDelay}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnChange registers fn; it runs after every state change.
func (c *Controller) OnChange(fn func(View)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Start connects the session and tracks readiness until Dispose or ctx ends.
// Calling it again is a no-op.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil || c.disposed {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	closed := make(chan struct{}, 1)
	unsub := c.session.OnClose(func() {
		select {
		case closed <- struct{}{}:
		default:
		}
	})

	go func() {
		defer close(done)
		defer unsub()
		c.watch(ctx, closed)
	}()
}

func (c *Controller) watch(ctx context.Context, closed chan struct{}) {
	for {
		select {
		case <-closed:
		default:
		}

		if err := c.session.Connect(ctx); err != nil {
			log.Warn().Err(err).Str("module", "entry").Msg("connect failed, retrying")
			if !sleep(ctx, c.retryDelay) {
				return
			}
			continue
		}

		if !c.awaitReady(ctx, closed) {
			if !sleep(ctx, c.retryDelay) {
				return
			}
			continue
		}
		c.setReady(true)

		select {
		case <-closed:
			c.setReady(false)
			if !sleep(ctx, c.retryDelay) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// awaitReady blocks until the session is ready. It gives up when the
// connection closes first or ctx ends.
func (c *Controller) awaitReady(ctx context.Context, closed <-chan struct{}) bool {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	res := make(chan error, 1)
	go func() { res <- c.session.WaitUntilReady(waitCtx) }()

	select {
	case err := <-res:
		return err == nil
	case <-closed:
		log.Debug().Str("module", "entry").Msg("connection closed before ready")
		return false
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Dispose stops the readiness watcher. Results of in-flight commands are
// ignored afterwards.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (c *Controller) SetNickname(s string) {
	c.update(func() { c.nickname = s })
}

func (c *Controller) SetRoomID(s string) {
	c.update(func() { c.roomID = s })
}

// CreateRoom creates a room and returns where the room view lives.
func (c *Controller) CreateRoom(ctx context.Context) (domain.Navigation, error) {
	c.mu.Lock()
	if c.creating || c.joining {
		c.mu.Unlock()
		return domain.Navigation{}, ErrBusy
	}
	nickname, err := domain.NormalizeNickname(c.nickname)
	if err != nil {
		c.errText = nicknameError(err)
		c.mu.Unlock()
		c.notify()
		return domain.Navigation{}, err
	}
	c.creating = true
	c.errText = ""
	c.mu.Unlock()
	c.notify()

	roomID, err := c.session.CreateRoom(ctx, nickname, "")

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return domain.Navigation{}, err
	}
	c.creating = false
	if err != nil {
		c.errText = textCreateFailed + domain.Reason(err)
		c.mu.Unlock()
		log.Warn().Err(err).Str("module", "entry").Msg("create room failed")
		c.notify()
		return domain.Navigation{}, err
	}
	c.mu.Unlock()
	c.notify()

	log.Info().Str("module", "entry").Str("room_id", string(roomID)).Msg("room created")
	return domain.Navigation{RoomID: roomID, Nickname: nickname}, nil
}

// JoinRoom joins the room named in the room id field. The room view joins
// again on mount; the service treats that as a no-op rejoin.
func (c *Controller) JoinRoom(ctx context.Context) (domain.Navigation, error) {
	c.mu.Lock()
	if c.creating || c.joining {
		c.mu.Unlock()
		return domain.Navigation{}, ErrBusy
	}
	nickname, err := domain.NormalizeNickname(c.nickname)
	if err != nil {
		c.errText = nicknameError(err)
		c.mu.Unlock()
		c.notify()
		return domain.Navigation{}, err
	}
	roomID := domain.RoomID(strings.TrimSpace(c.roomID))
	if roomID == "" {
		c.errText = textRoomIDRequired
		c.mu.Unlock()
		c.notify()
		return domain.Navigation{}, domain.NewError(domain.ErrorMissingParameter, textRoomIDRequired)
	}
	c.joining = true
	c.errText = ""
	c.mu.Unlock()
	c.notify()

	_, err = c.session.JoinRoom(ctx, nickname, roomID, "")

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return domain.Navigation{}, err
	}
	c.joining = false
	if err != nil {
		c.errText = textJoinFailed
		c.mu.Unlock()
		log.Warn().Err(err).Str("module", "entry").Str("room_id", string(roomID)).Msg("join room failed")
		c.notify()
		return domain.Navigation{}, err
	}
	c.mu.Unlock()
	c.notify()

	return domain.Navigation{RoomID: roomID, Nickname: nickname}, nil
}

func nicknameError(err error) string {
	if errors.Is(err, domain.ErrMissingParameter) {
		return textNicknameRequired
	}
	return domain.Reason(err)
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	return View{
		Nickname: c.nickname,
		RoomID:   c.roomID,
		Ready:    c.ready,
		Creating: c.creating,
		Joining:  c.joining,
		Error:    c.errText,
	}
}

func (c *Controller) setReady(ready bool) {
	c.mu.Lock()
	changed := c.ready != ready
	c.ready = ready
	c.mu.Unlock()
	if changed {
		log.Debug().Str("module", "entry").Bool("ready", ready).Msg("readiness changed")
		c.notify()
	}
}

func (c *Controller) update(fn func()) {
	c.mu.Lock()
	fn()
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	v := c.viewLocked()
	ls := slices.Clone(c.listeners)
	c.mu.Unlock()
	for _, fn := range ls {
		fn(v)
	}
}
