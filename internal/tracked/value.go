// Package tracked implements the reconciliation atom between optimistic
// user intent and authoritative console echoes: Value[T] (the tracked
// value) and its queue-less sibling Immediate[T]. Ported from
// original_source/dlive/value.py, which this design is modeled on.
package tracked

import (
	"sync"
	"time"
)

type request[T comparable] struct {
	value T
	at    time.Time
}

// Value is a per-attribute state cell with an outstanding-request queue,
// match-on-resolve, and staleness purge (spec §4.3).
type Value[T comparable] struct {
	mu sync.Mutex

	current      *T
	hasCurrent   bool
	lastResolve  time.Time
	requests     []request[T]

	onResolve    func(v T)
	onUpdateIdle func(v T)
}

// New creates a Value. Both callbacks fire only from a resolve() call
// that changes current: onResolve when that call also matched and
// removed a queued request, onUpdateIdle when the queue is empty
// afterwards. Both may be nil.
func New[T comparable](onResolve, onUpdateIdle func(v T)) *Value[T] {
	return &Value[T]{onResolve: onResolve, onUpdateIdle: onUpdateIdle}
}

// Current returns the last resolved value, if any.
func (v *Value[T]) Current() (val T, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.hasCurrent {
		return val, false
	}
	return *v.current, true
}

// Pending returns the number of outstanding requests.
func (v *Value[T]) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.requests)
}

// Request queues an intent to set the attribute to val. If the queue is
// empty and current already equals val, it is a no-op (queued=false,
// pending=0). If the tail of the queue already equals val, only its
// timestamp is refreshed (queued=false, coalesced). Otherwise val is
// appended (queued=true).
func (v *Value[T]) Request(val T) (queued bool, pending int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := time.Now()

	if len(v.requests) == 0 && v.hasCurrent && *v.current == val {
		return false, 0
	}

	if n := len(v.requests); n > 0 && v.requests[n-1].value == val {
		v.requests[n-1].at = now
		return false, n
	}

	v.requests = append(v.requests, request[T]{value: val, at: now})
	return true, len(v.requests)
}

// Resolve is called when the console reports the authoritative value.
// It updates current, sets lastResolve, and removes the first queued
// request whose value equals val. Returns the number of requests
// remaining in the queue.
func (v *Value[T]) Resolve(val T) int {
	v.mu.Lock()

	changed := !v.hasCurrent || *v.current != val
	cur := val
	v.current = &cur
	v.hasCurrent = true
	v.lastResolve = time.Now()

	matchedIdx := -1
	for i, r := range v.requests {
		if r.value == val {
			matchedIdx = i
			break
		}
	}
	if matchedIdx >= 0 {
		v.requests = append(v.requests[:matchedIdx], v.requests[matchedIdx+1:]...)
	}
	remaining := len(v.requests)
	onResolve := v.onResolve
	onUpdateIdle := v.onUpdateIdle
	emptyNow := remaining == 0

	v.mu.Unlock()

	if changed {
		if matchedIdx >= 0 && onResolve != nil {
			onResolve(val)
		}
		if emptyNow && onUpdateIdle != nil {
			onUpdateIdle(val)
		}
	}
	return remaining
}

// Purge drops requests older than maxAge, never touching current.
// Returns the count dropped.
func (v *Value[T]) Purge(maxAge time.Duration) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	kept := v.requests[:0:0]
	dropped := 0
	for _, r := range v.requests {
		if r.at.Before(cutoff) {
			dropped++
			continue
		}
		kept = append(kept, r)
	}
	v.requests = kept
	return dropped
}
