package token

import "errors"

var (
	// ErrConfigNil indicates that a nil configuration was provided.
	ErrConfigNil = errors.New("config is nil")

	// ErrNoCandidates indicates that the candidate network list is empty.
	ErrNoCandidates = errors.New("candidate network list is empty")
)

var (
	// ErrFlagAbsent indicates that a persisted flag does not exist in the store.
	// It is distinct from a store failure: an absent lifecycle flag selects the
	// first-time initialization path, while any other read error aborts boot.
	ErrFlagAbsent = errors.New("persisted flag absent")

	// ErrLifecycleAbort indicates that the boot-time lifecycle decision failed
	// and the device must perform a controlled restart.
	ErrLifecycleAbort = errors.New("lifecycle abort")
)
