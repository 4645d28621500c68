package app

import "github.com/dkeye/WatchParty/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickView
)

// Policy decides what happens when a view's push queue is full.
type Policy interface {
	OnBackPressure(token ClientToken, conn core.ViewConnection) BackpressureAction
}

type SimplePolicy struct{}

// SimplePolicy closes any view that falls behind. The browser reconnects
// and gets a fresh snapshot on mount.
func (SimplePolicy) OnBackPressure(token ClientToken, conn core.ViewConnection) BackpressureAction {
	return KickView
}
