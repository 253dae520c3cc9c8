// Package hostnet provides a token.NetworkStack for running the control core
// on a host operating system instead of device firmware.
//
// A host has no join-able candidate networks, so the stack models "joined"
// as peer reachability: after Join it probes the candidate's peer address on
// a fixed interval and reports AddressAcquired when the peer starts
// answering, Disconnected when it stops. All events are delivered serially
// from a single probe goroutine, matching the serialized event delivery of a
// firmware network stack.
package hostnet

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/openpgp-hw/tokencore/logger"
	"github.com/openpgp-hw/tokencore/token"
)

// Stack is a reachability-probing implementation of token.NetworkStack.
type Stack struct {
	port          int
	probeInterval time.Duration
	probeTimeout  time.Duration
	logger        logger.Logger

	mu      sync.Mutex
	target  *token.Candidate
	handler token.EventHandler

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	up     bool // owned by the probe goroutine
}

// StackOption configures a Stack.
type StackOption func(*Stack)

// WithProbeInterval sets the reachability probe period. The default is 2
// seconds.
func WithProbeInterval(d time.Duration) StackOption {
	return func(s *Stack) { s.probeInterval = d }
}

// WithProbeTimeout bounds one reachability probe. The default is 1 second.
func WithProbeTimeout(d time.Duration) StackOption {
	return func(s *Stack) { s.probeTimeout = d }
}

// WithLogger sets the logger for the stack.
func WithLogger(l logger.Logger) StackOption {
	return func(s *Stack) { s.logger = l }
}

// NewStack creates a Stack probing the given peer service port.
func NewStack(port int, opts ...StackOption) *Stack {
	s := &Stack{
		port:          port,
		probeInterval: 2 * time.Second,
		probeTimeout:  time.Second,
		logger:        logger.GetLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start registers the event handler and starts the probe goroutine. The
// InterfaceStarted event is emitted from that goroutine before the first
// probe.
func (s *Stack) Start(handler token.EventHandler) error {
	if handler == nil {
		return errors.New("event handler is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return errors.New("stack already started")
	}

	s.handler = handler
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.done = make(chan struct{})

	go s.probeLoop()

	return nil
}

// Join selects the candidate whose peer the stack probes. The outcome is
// reported asynchronously by the probe goroutine.
func (s *Stack) Join(c token.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.target = &c
	s.logger.Debug("joining network", "network", c.Name, "peer", c.PeerHost)

	return nil
}

// Stop terminates the probe goroutine. No events are delivered after Stop
// returns.
func (s *Stack) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	<-done

	return nil
}

func (s *Stack) probeLoop() {
	defer close(s.done)

	s.handler(token.Event{Kind: token.InterfaceStarted})

	ticker := time.NewTicker(s.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.probe()
		}
	}
}

func (s *Stack) probe() {
	s.mu.Lock()
	target := s.target
	s.mu.Unlock()

	if target == nil {
		return
	}

	reachable := s.reachable(target.PeerHost)
	switch {
	case reachable && !s.up:
		s.up = true
		s.handler(token.Event{Kind: token.AddressAcquired})
	case !reachable && s.up:
		s.up = false
		s.handler(token.Event{Kind: token.Disconnected})
	}
}

func (s *Stack) reachable(host string) bool {
	addr := net.JoinHostPort(host, strconv.Itoa(s.port))

	conn, err := net.DialTimeout("tcp", addr, s.probeTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()

	return true
}
