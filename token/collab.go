package token

// Invalidator resets higher-level security/session state (PIN verification,
// command chaining, cached session secrets).
//
// The core calls Invalidate on every connectivity transition and on every
// session-ending disconnect, including the "nothing to receive" and
// connect-failure cases.
type Invalidator interface {
	Invalidate()
}

// StateBringup performs the boot-time bring-up of the external application
// state.
type StateBringup interface {
	// Initialize performs first-time initialization. On success it must leave
	// the lifecycle flag durably true in the persisted store.
	Initialize() error

	// Restore restores the persisted application state on a subsequent boot.
	Restore() error
}

// FlagStore provides persisted boolean flags, durable across restarts.
type FlagStore interface {
	// ReadFlag returns the value of the named flag. It returns ErrFlagAbsent
	// when the flag has never been written or has been erased.
	ReadFlag(name string) (bool, error)

	// EraseFlag removes the named flag from the store. Erasing an absent flag
	// is not an error.
	EraseFlag(name string) error
}

// Storage provides scoped filesystem availability. Mount failure at boot is
// fatal; the core always unmounts before restarting.
type Storage interface {
	Mount() error
	Unmount()
}

// Restarter triggers the hardware restart path. It does not return.
type Restarter interface {
	Restart()
}

// Pin is a single digital output (status or link indicator LED).
type Pin interface {
	Set(on bool)
}

// InvalidatorFunc adapts a function to the Invalidator interface.
type InvalidatorFunc func()

func (f InvalidatorFunc) Invalidate() { f() }
