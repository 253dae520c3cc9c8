package token

import "sync/atomic"

// Flag is an edge-triggered boolean shared between an interrupt context and a
// consuming task.
//
// The interrupt side only calls Set; the task side consumes with TakeIfSet or
// observes with IsSet and clears with Clear. There is no queueing: multiple
// sets before consumption collapse to a single observation.
type Flag struct {
	v atomic.Bool
}

// Set raises the flag. Safe to call from interrupt context; it performs a
// single atomic store and nothing else.
func (f *Flag) Set() {
	f.v.Store(true)
}

// TakeIfSet consumes the flag: it returns true and clears the flag if it was
// set, and returns false otherwise.
func (f *Flag) TakeIfSet() bool {
	return f.v.CompareAndSwap(true, false)
}

// IsSet reports whether the flag is currently raised without consuming it.
func (f *Flag) IsSet() bool {
	return f.v.Load()
}

// Clear lowers the flag.
func (f *Flag) Clear() {
	f.v.Store(false)
}
