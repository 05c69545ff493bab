// Package queue provides the thread-safe audio queue at the heart of the
// audio manager. Items are scheduled by (priority, reservation time): higher
// priority first, and within a priority, the slot that was reserved earlier
// plays earlier — even when its audio arrives later. A slot may be reserved
// before its audio exists, which is how FIFO order is preserved across
// windows whose synthesis finishes at different speeds.
package queue

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority is the scheduling class of a queue item. Lower values are
// scheduled first.
type Priority int

const (
	// PriorityHigh is for system messages and chimes that should jump the queue.
	PriorityHigh Priority = iota

	// PriorityNormal is for regular TTS messages.
	PriorityNormal

	// PriorityLow is for background or deferred messages.
	PriorityLow
)

// ParsePriority maps a wire-level priority string to a [Priority]. Unknown
// values (including the empty string) coerce to [PriorityNormal]; callers
// that care about strictness must validate before parsing.
func ParsePriority(s string) Priority {
	switch strings.ToLower(s) {
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// String returns the wire-level name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

// State is the lifecycle state of an [Item].
type State int

const (
	// StatePending means the slot is reserved but its audio has not arrived.
	StatePending State = iota

	// StateReady means audio is attached and the item is waiting its turn.
	StateReady

	// StatePlaying means the playback worker has taken the item.
	StatePlaying

	// StateDone means playback finished (or was stopped).
	StateDone

	// StateExpired means the item was removed unplayed: its reservation
	// timed out, or it was cleared.
	StateExpired
)

// String returns a short lowercase name for the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StateDone:
		return "done"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Item is one unit of queued audio. An item in [StatePending] has nil Audio;
// every other state carries audio. Items are created by the queue and handed
// out by Dequeue; after that the playback worker is the only writer.
type Item struct {
	// ID is the opaque unique identifier returned to clients at
	// reservation time.
	ID string

	// Priority is the scheduling class.
	Priority Priority

	// ReservationTime is when the slot was reserved. It is the FIFO
	// tiebreaker within a priority.
	ReservationTime time.Time

	// Audio is raw interleaved 16-bit signed little-endian mono PCM.
	// Nil while the item is pending.
	Audio []byte

	// SampleRate is the PCM sample rate in Hz. Meaningful only when
	// Audio is set.
	SampleRate int

	// Project identifies the originating client window.
	Project string

	// State is the current lifecycle state.
	State State

	// seq is the monotonic insertion counter used as the final ordering
	// tiebreaker, so ordering is a strict weak order even when two
	// reservations land on the same clock reading.
	seq uint64
}

// newItemID returns a fresh opaque item identifier.
func newItemID() string {
	return uuid.NewString()
}

// before reports whether a is scheduled strictly ahead of b.
func (a *Item) before(b *Item) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.ReservationTime.Equal(b.ReservationTime) {
		return a.ReservationTime.Before(b.ReservationTime)
	}
	return a.seq < b.seq
}
