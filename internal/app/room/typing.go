package room

import (
	"sync"
	"time"
)

const DefaultTypingIdle = 2 * time.Second

// Timer is the part of *time.Timer the typing policy needs.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Tests swap in a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// typingPolicy turns raw keystrokes into typing on/off transitions.
// The first keystroke after idle emits true; each keystroke restarts the
// quiet period; expiry or a send emits false once.
type typingPolicy struct {
	clock Clock
	idle  time.Duration
	emit  func(typing bool)

	mu     sync.Mutex
	typing bool
	timer  Timer
	gen    uint64 // invalidates timers that fire after being replaced
}

func newTypingPolicy(clock Clock, idle time.Duration, emit func(bool)) *typingPolicy {
	return &typingPolicy{clock: clock, idle: idle, emit: emit}
}

func (p *typingPolicy) keystroke() {
	p.mu.Lock()
	start := !p.typing
	p.typing = true
	p.gen++
	gen := p.gen
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = p.clock.AfterFunc(p.idle, func() { p.expire(gen) })
	p.mu.Unlock()

	if start {
		p.emit(true)
	}
}

func (p *typingPolicy) expire(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || !p.typing {
		p.mu.Unlock()
		return
	}
	p.typing = false
	p.timer = nil
	p.mu.Unlock()

	p.emit(false)
}

// stop ends typing now, as on send.
func (p *typingPolicy) stop() {
	if p.reset() {
		p.emit(false)
	}
}

// cancel drops the timer without emitting anything.
func (p *typingPolicy) cancel() {
	p.reset()
}

func (p *typingPolicy) reset() (wasTyping bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	wasTyping = p.typing
	p.typing = false
	return wasTyping
}
