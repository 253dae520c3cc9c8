package token

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/openpgp-hw/tokencore/logger"
)

// Link represents the two connectivity states of the device.
type Link uint32

const (
	// LinkDown indicates that the device does not hold a network address.
	LinkDown Link = iota
	// LinkUp indicates that the device holds a network address and the peer
	// may be reachable.
	LinkUp
)

// IsUp returns if the link currently holds an address.
func (l Link) IsUp() bool { return l == LinkUp }

// String returns string representation of the link state.
func (l Link) String() string {
	switch l {
	case LinkDown:
		return "down"
	case LinkUp:
		return "up"
	default:
		return "unknown"
	}
}

// LinkHandler is invoked on every link transition, before any goroutine
// blocked in WaitUp is released. The device hooks its link indicator here.
//
// Handlers run in the network event delivery context and must not block for
// long durations.
type LinkHandler func(prev Link, cur Link)

// LinkState manages the connectivity bit shared between the network event
// handler (the only writer) and the session loop (a blocking reader).
//
// It provides the bit-set/wait primitive the session loop parks on: WaitUp
// blocks until the link comes up or the context is done. Transitions are
// strictly ordered because the network stack delivers events serially.
type LinkState struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    atomic.Uint32
	logger   logger.Logger
	handlers []LinkHandler
}

// NewLinkState creates a LinkState in the LinkDown state.
//
// It accepts optional LinkHandler functions that will be invoked on every
// transition.
func NewLinkState(l logger.Logger, handlers ...LinkHandler) *LinkState {
	ls := &LinkState{
		logger:   l,
		handlers: append([]LinkHandler(nil), handlers...),
	}
	if ls.logger == nil {
		ls.logger = logger.GetLogger()
	}

	ls.state.Store(uint32(LinkDown))
	ls.cond = sync.NewCond(&ls.mu)

	return ls
}

// State returns the current link state.
func (ls *LinkState) State() Link {
	return Link(ls.state.Load())
}

// IsUp returns if the link currently holds an address.
func (ls *LinkState) IsUp() bool {
	return ls.State().IsUp()
}

// AddHandler adds one or more LinkHandler functions to be invoked on
// transitions.
func (ls *LinkState) AddHandler(handlers ...LinkHandler) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.handlers = append(ls.handlers, handlers...)
}

// ToUp transitions the link to LinkUp. No-op if already up.
//
// Handlers run before waiting goroutines are released, so handler effects
// are observed before any session activity resumes.
func (ls *LinkState) ToUp() {
	ls.transition(LinkUp)
}

// ToDown transitions the link to LinkDown. No-op if already down.
func (ls *LinkState) ToDown() {
	ls.transition(LinkDown)
}

// WaitUp blocks until the link state is LinkUp or the context is done.
// It returns nil when the link is up, or the context error otherwise.
func (ls *LinkState) WaitUp(ctx context.Context) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.State().IsUp() {
		return nil
	}

	ls.logger.Debug("wait for link up", "cur_state", ls.State())

	stopFunc := context.AfterFunc(ctx, func() {
		ls.cond.Broadcast()
	})
	defer stopFunc()

	for !ls.State().IsUp() {
		select {
		case <-ctx.Done():
			ls.logger.Debug("wait for link up cancelled", "cur_state", ls.State())
			return ctx.Err()
		default:
			ls.cond.Wait()
		}
	}

	return nil
}

func (ls *LinkState) transition(to Link) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	prev := ls.State()
	if prev == to {
		return
	}

	// invoke handlers before broadcasting so their effects complete before
	// WaitUp returns in the session loop
	for _, handler := range ls.handlers {
		if handler != nil {
			handler(prev, to)
		}
	}

	ls.state.Store(uint32(to))
	ls.cond.Broadcast()

	ls.logger.Debug("link state changed", "prev", prev, "cur", to)
}
