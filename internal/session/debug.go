package session

import (
	"fmt"
	"time"
)

// DebugCapacity is the number of events kept per session.
const DebugCapacity = 50

// Event is one line of the session debug log.
type Event struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// DebugLog is a fixed-size ring of recent events. It is not safe for concurrent
// use on its own; State guards it.
type DebugLog struct {
	events []Event
	next   int
	full   bool
}

func newDebugLog() *DebugLog {
	return &DebugLog{events: make([]Event, DebugCapacity)}
}

func (d *DebugLog) add(at time.Time, format string, args ...any) {
	d.events[d.next] = Event{At: at, Message: fmt.Sprintf(format, args...)}
	d.next = (d.next + 1) % len(d.events)
	if d.next == 0 {
		d.full = true
	}
}

// entries returns the events oldest first.
func (d *DebugLog) entries() []Event {
	if !d.full {
		return append([]Event(nil), d.events[:d.next]...)
	}
	out := make([]Event, 0, len(d.events))
	out = append(out, d.events[d.next:]...)
	return append(out, d.events[:d.next]...)
}
