package app

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/WatchParty/internal/app/entry"
	"github.com/dkeye/WatchParty/internal/app/room"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/rs/zerolog/log"
)

// ClientToken identifies one browser (or terminal) driving the views.
type ClientToken string

type viewEntry struct {
	Entry    *entry.Controller
	RoomID   domain.RoomID
	Room     *room.Controller
	Cancel   context.CancelFunc
	LastSeen time.Time
}

// Registry keeps the controllers mounted for each client.
type Registry struct {
	mu    sync.RWMutex
	views map[ClientToken]*viewEntry
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{views: make(map[ClientToken]*viewEntry), now: time.Now}
}

// GetOrCreateEntry returns the entry controller of token, building it with
// newEntry on first use.
func (r *Registry) GetOrCreateEntry(token ClientToken, newEntry func() *entry.Controller) (*entry.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.views[token]; ok && v.Entry != nil {
		v.LastSeen = r.now()
		return v.Entry, false
	}
	v, ok := r.views[token]
	if !ok {
		v = &viewEntry{}
		r.views[token] = v
	}
	v.Entry = newEntry()
	v.LastSeen = r.now()
	log.Info().Str("module", "app.registry").Str("token", string(token)).Msg("created entry view")
	return v.Entry, true
}

// BindRoom records ctl as the mounted room of token and returns the one it
// replaces, if any.
func (r *Registry) BindRoom(
	token ClientToken,
	roomID domain.RoomID,
	ctl *room.Controller,
	cancel context.CancelFunc,
) (prev *room.Controller, prevCancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[token]
	if !ok {
		v = &viewEntry{}
		r.views[token] = v
	}
	prev, prevCancel = v.Room, v.Cancel
	v.RoomID = roomID
	v.Room = ctl
	v.Cancel = cancel
	v.LastSeen = r.now()
	log.Info().Str("module", "app.registry").Str("token", string(token)).Str("room_id", string(roomID)).Msg("bound room view")
	return prev, prevCancel
}

func (r *Registry) RoomOf(token ClientToken) (domain.RoomID, *room.Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.views[token]
	if !ok || v.Room == nil {
		return "", nil, false
	}
	return v.RoomID, v.Room, true
}

// UnbindRoom drops the room association of token if ctl is still the bound
// controller. It reports whether anything was removed.
func (r *Registry) UnbindRoom(token ClientToken, ctl *room.Controller) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[token]
	if !ok || v.Room == nil || (ctl != nil && v.Room != ctl) {
		return false
	}
	v.RoomID = ""
	v.Room = nil
	v.Cancel = nil
	v.LastSeen = r.now()
	log.Info().Str("module", "app.registry").Str("token", string(token)).Msg("removed room association")
	return true
}

func (r *Registry) Cancel(token ClientToken) bool {
	r.mu.RLock()
	v, ok := r.views[token]
	var cancel context.CancelFunc
	if ok {
		cancel = v.Cancel
	}
	r.mu.RUnlock()
	if cancel == nil {
		return false
	}
	cancel()
	log.Info().Str("module", "app.registry").Str("token", string(token)).Msg("canceled room view")
	return true
}

// RemoveIdle drops clients with no mounted room that have not been seen for
// idle and returns their entry controllers for disposal.
func (r *Registry) RemoveIdle(idle time.Duration) []*entry.Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-idle)
	var out []*entry.Controller
	for token, v := range r.views {
		if v.Room != nil || v.LastSeen.After(cutoff) {
			continue
		}
		delete(r.views, token)
		if v.Entry != nil {
			out = append(out, v.Entry)
		}
		log.Debug().Str("module", "app.registry").Str("token", string(token)).Msg("removed idle client")
	}
	return out
}

type regSnap struct {
	Token ClientToken
	Entry *entry.Controller
	Room  *room.Controller
}

func (r *Registry) snapshot() []regSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]regSnap, 0, len(r.views))
	for token, v := range r.views {
		out = append(out, regSnap{Token: token, Entry: v.Entry, Room: v.Room})
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views)
}
