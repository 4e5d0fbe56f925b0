package usecase

import (
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
)

// DefaultSilenceWindow is the quiet period after which a turn is considered
// finished.
const DefaultSilenceWindow = 2 * time.Second

// Endpointer declares end-of-turn after a fixed quiet period. Arm restarts
// the timer; only the last arm before expiry matters. Disarm cancels without
// firing. A fire with an empty (or whitespace-only) snapshot is silently
// discarded so silence alone never produces a submission.
//
// The timer itself is a debounced single-shot; a generation counter guards
// the case where a disarm races timer delivery, so a stale callback is
// recognized and dropped.
type Endpointer struct {
	window      time.Duration
	snapshot    func() string
	onEndOfTurn func(text string)
	debounced   func(func())

	mu    sync.Mutex
	gen   uint64
	armed bool
}

func NewEndpointer(window time.Duration, snapshot func() string, onEndOfTurn func(string)) *Endpointer {
	if window <= 0 {
		window = DefaultSilenceWindow
	}
	return &Endpointer{
		window:      window,
		snapshot:    snapshot,
		onEndOfTurn: onEndOfTurn,
		debounced:   debounce.New(window),
	}
}

// Arm cancels any running timer and starts a fresh one. Safe to call
// redundantly in rapid succession.
func (e *Endpointer) Arm() {
	e.mu.Lock()
	e.gen++
	g := e.gen
	e.armed = true
	e.mu.Unlock()

	e.debounced(func() { e.fire(g) })
}

// Disarm cancels the pending timer without firing.
func (e *Endpointer) Disarm() {
	e.mu.Lock()
	e.gen++
	e.armed = false
	e.mu.Unlock()
}

func (e *Endpointer) fire(gen uint64) {
	e.mu.Lock()
	if !e.armed || gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.armed = false
	e.mu.Unlock()

	text := strings.TrimSpace(e.snapshot())
	if text == "" {
		return
	}
	e.onEndOfTurn(text)
}
