package socketio

import (
	"sync"
	"time"

	"github.com/edumarques81/stellar-cloudplayer/internal/app"
)

// flushOrder is the order pending changes are broadcast in.
var flushOrder = []app.Change{app.ChangeState, app.ChangeBrowse, app.ChangeLibrary, app.ChangeAuth}

// BroadcastDebouncer collapses rapid application changes into batched broadcasts.
// Multiple changes of the same kind within the debounce window result in a
// single broadcast for that kind.
type BroadcastDebouncer struct {
	window    time.Duration
	broadcast func(app.Change)

	mu      sync.Mutex
	pending map[app.Change]bool
	timer   *time.Timer
	stopped bool
}

// NewBroadcastDebouncer creates a debouncer with the given window duration.
// broadcast is called once per pending change kind when the window elapses.
func NewBroadcastDebouncer(window time.Duration, broadcast func(app.Change)) *BroadcastDebouncer {
	return &BroadcastDebouncer{
		window:    window,
		broadcast: broadcast,
		pending:   make(map[app.Change]bool),
	}
}

// Trigger records that the given part of the application changed.
// The broadcast is deferred until the debounce window elapses without
// further triggers.
func (d *BroadcastDebouncer) Trigger(change app.Change) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.pending[change] = true

	// Reset the timer
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush fires the callback for every pending change and resets them.
func (d *BroadcastDebouncer) flush() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	pending := d.pending
	d.pending = make(map[app.Change]bool)
	d.mu.Unlock()

	if d.broadcast == nil {
		return
	}
	for _, c := range flushOrder {
		if pending[c] {
			d.broadcast(c)
		}
	}
}

// Stop prevents any further callbacks from firing.
func (d *BroadcastDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = make(map[app.Change]bool)
}
