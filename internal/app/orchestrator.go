package app

import (
	"context"
	"time"

	"github.com/dkeye/WatchParty/internal/app/entry"
	"github.com/dkeye/WatchParty/internal/app/room"
	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator wires the shared session to the per-client view controllers.
type Orchestrator struct {
	Session    core.Session
	Registry   *Registry
	Policy     Policy
	TypingIdle time.Duration
	RetryDelay time.Duration
	// EntryIdle evicts clients with no room that have been quiet this long.
	// Zero keeps them until Shutdown.
	EntryIdle  time.Duration
	Clock      room.Clock

	// Lifetime of entry watchers; set by Run.
	ctx context.Context
}

// Run opens the session and binds entry watchers to ctx. Call once before
// serving.
func (o *Orchestrator) Run(ctx context.Context) {
	o.ctx = ctx
	if err := o.Session.Connect(ctx); err != nil {
		log.Error().Err(err).Str("module", "app").Msg("initial connect failed")
	}
	if o.EntryIdle > 0 {
		go o.sweepLoop(ctx)
	}
}

func (o *Orchestrator) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(o.EntryIdle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.SweepIdle()
		}
	}
}

// SweepIdle stops the entry watchers of clients idle for EntryIdle and
// forgets them. It returns how many were removed.
func (o *Orchestrator) SweepIdle() int {
	if o.EntryIdle <= 0 {
		return 0
	}
	idle := o.Registry.RemoveIdle(o.EntryIdle)
	for _, ctl := range idle {
		ctl.Dispose()
	}
	if len(idle) > 0 {
		log.Info().Str("module", "app").Int("count", len(idle)).Msg("swept idle entry views")
	}
	return len(idle)
}

// Entry returns the entry controller of token, starting its readiness watcher
// on first use.
func (o *Orchestrator) Entry(token ClientToken) *entry.Controller {
	ctl, created := o.Registry.GetOrCreateEntry(token, func() *entry.Controller {
		return entry.New(o.Session, entry.WithRetryDelay(o.RetryDelay))
	})
	if created {
		ctx := o.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		ctl.Start(ctx)
	}
	return ctl
}

// MountRoom builds a room controller for token, replacing any mounted one, and
// joins in the background. onChange receives every view of the new controller.
func (o *Orchestrator) MountRoom(
	ctx context.Context,
	token ClientToken,
	nav domain.Navigation,
	onChange func(room.View),
) *room.Controller {
	// A room opened by direct link after a leave finds no live connection.
	if err := o.Session.Connect(ctx); err != nil {
		log.Warn().Err(err).Str("module", "app").Msg("connect before mount failed")
	}

	opts := []room.Option{room.WithTypingIdle(o.TypingIdle)}
	if o.Clock != nil {
		opts = append(opts, room.WithClock(o.Clock))
	}
	ctl := room.New(o.Session, opts...)
	if onChange != nil {
		ctl.OnChange(onChange)
	}

	ctx, cancel := context.WithCancel(ctx)
	if prev, prevCancel := o.Registry.BindRoom(token, nav.RoomID, ctl, cancel); prev != nil {
		log.Info().Str("module", "app").Str("token", string(token)).Msg("replacing mounted room view")
		prev.Unmount()
		if prevCancel != nil {
			prevCancel()
		}
	}

	go func() {
		if err := ctl.Mount(ctx, nav.RoomID, nav.Nickname); err != nil {
			log.Warn().Err(err).Str("module", "app").Str("room_id", string(nav.RoomID)).Msg("room mount failed")
		}
	}()
	return ctl
}

// Leave disconnects the session from the room view of token.
func (o *Orchestrator) Leave(token ClientToken) {
	_, ctl, ok := o.Registry.RoomOf(token)
	if !ok {
		return
	}
	ctl.Leave()
	o.Registry.Cancel(token)
	o.Registry.UnbindRoom(token, ctl)
}

// ReturnHome unmounts the room view of token and keeps the connection.
// It is the recovery path from an errored room.
func (o *Orchestrator) ReturnHome(token ClientToken, ctl *room.Controller) {
	_, bound, ok := o.Registry.RoomOf(token)
	if !ok || (ctl != nil && bound != ctl) {
		return
	}
	bound.Unmount()
	o.Registry.Cancel(token)
	o.Registry.UnbindRoom(token, bound)
}

// OnViewGone handles a dropped browser socket.
func (o *Orchestrator) OnViewGone(token ClientToken, ctl *room.Controller) {
	o.ReturnHome(token, ctl)
}

// OnBackPressure applies the policy to a view that cannot keep up.
// It reports whether the view connection should be closed.
func (o *Orchestrator) OnBackPressure(token ClientToken, conn core.ViewConnection) bool {
	if o.Policy == nil {
		return false
	}
	switch o.Policy.OnBackPressure(token, conn) {
	case KickView:
		log.Warn().Str("module", "app").Str("token", string(token)).Msg("kicking slow view")
		return true
	case DropFrame, NoAction:
	}
	return false
}

// Shutdown unmounts every room view and stops every entry watcher.
// The session itself is left to the caller.
func (o *Orchestrator) Shutdown() {
	for _, snap := range o.Registry.snapshot() {
		if snap.Room != nil {
			snap.Room.Unmount()
			o.Registry.Cancel(snap.Token)
		}
		if snap.Entry != nil {
			snap.Entry.Dispose()
		}
	}
}
