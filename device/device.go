package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/openpgp-hw/tokencore/apdu"
	"github.com/openpgp-hw/tokencore/internal/pool"
	"github.com/openpgp-hw/tokencore/logger"
	"github.com/openpgp-hw/tokencore/token"
)

// Collaborators holds the external collaborators consumed by the control
// core. Stack, Processor, Invalidator, Bringup, Flags, Storage and Restarter
// are required; Parser defaults to apdu.HeaderParser and nil pins are
// replaced by no-op pins.
type Collaborators struct {
	// Stack is the platform network layer.
	Stack token.NetworkStack
	// Parser turns raw received bytes into a Command envelope.
	Parser apdu.Parser
	// Processor performs the opaque security operation.
	Processor apdu.Processor
	// Invalidator resets higher-level security/session state.
	Invalidator token.Invalidator
	// Bringup initializes or restores the external application state at boot.
	Bringup token.StateBringup
	// Flags is the persisted flag store holding the lifecycle flag.
	Flags token.FlagStore
	// Storage provides scoped filesystem availability.
	Storage token.Storage
	// Restarter triggers the hardware restart path.
	Restarter token.Restarter
	// StatusPin is the processing/initialization indicator output.
	StatusPin token.Pin
	// LinkPin is the connectivity indicator output.
	LinkPin token.Pin
}

// Device is the on-device control core. It owns the three cooperating tasks
// (session loop, reset watcher, status indicator), the signal bridge flags,
// and the candidate selector, and drives the external collaborators.
type Device struct {
	pctx      context.Context
	ctx       context.Context
	ctxCancel context.CancelFunc
	cfg       *Config
	logger    logger.Logger

	taskMgr  *token.TaskManager
	link     *token.LinkState
	selector *token.Selector

	confirm token.Flag // set by the confirmation button interrupt
	reset   token.Flag // set by the hard-reset button interrupt

	stack       token.NetworkStack
	parser      apdu.Parser
	processor   apdu.Processor
	invalidator token.Invalidator
	bringup     token.StateBringup
	flags       token.FlagStore
	storage     token.Storage
	restarter   token.Restarter
	statusPin   token.Pin
	linkPin     token.Pin

	dial func(ctx context.Context, addr string) (net.Conn, error)

	connMu     sync.Mutex
	activeConn net.Conn

	diag        Diagnostics
	restartOnce sync.Once
	blinkOn     bool // owned by the status indicator task
}

// New creates a Device with the given context, configuration and
// collaborators. Returns an error if the configuration or a required
// collaborator is missing.
func New(ctx context.Context, cfg *Config, collab Collaborators) (*Device, error) {
	if cfg == nil {
		return nil, token.ErrConfigNil
	}
	if err := requireCollaborators(collab); err != nil {
		return nil, err
	}

	selector, err := token.NewSelector(cfg.candidates)
	if err != nil {
		return nil, err
	}

	d := &Device{
		pctx:        ctx,
		cfg:         cfg,
		logger:      cfg.logger,
		taskMgr:     token.NewTaskManager(ctx, cfg.logger),
		selector:    selector,
		stack:       collab.Stack,
		parser:      collab.Parser,
		processor:   collab.Processor,
		invalidator: collab.Invalidator,
		bringup:     collab.Bringup,
		flags:       collab.Flags,
		storage:     collab.Storage,
		restarter:   collab.Restarter,
		statusPin:   collab.StatusPin,
		linkPin:     collab.LinkPin,
	}

	if d.parser == nil {
		d.parser = apdu.HeaderParser{}
	}
	if d.statusPin == nil {
		d.statusPin = nopPin{}
	}
	if d.linkPin == nil {
		d.linkPin = nopPin{}
	}

	d.ctx, d.ctxCancel = context.WithCancel(ctx)
	d.dial = d.dialPeer
	d.diag.init()

	// the link indicator follows the connectivity state
	d.link = token.NewLinkState(cfg.logger, func(prev token.Link, cur token.Link) {
		d.linkPin.Set(cur.IsUp())
	})

	return d, nil
}

func requireCollaborators(collab Collaborators) error {
	switch {
	case collab.Stack == nil:
		return errors.New("network stack is nil")
	case collab.Processor == nil:
		return errors.New("processor is nil")
	case collab.Invalidator == nil:
		return errors.New("invalidator is nil")
	case collab.Bringup == nil:
		return errors.New("state bringup is nil")
	case collab.Flags == nil:
		return errors.New("flag store is nil")
	case collab.Storage == nil:
		return errors.New("storage is nil")
	case collab.Restarter == nil:
		return errors.New("restarter is nil")
	}

	return nil
}

// Run mounts storage, performs the boot-time lifecycle decision, brings the
// network up, and starts the device tasks. It returns once the tasks are
// running.
//
// A storage mount failure is fatal at boot and returned to the caller without
// a restart. A lifecycle abort triggers the controlled restart sequence and
// returns token.ErrLifecycleAbort.
func (d *Device) Run() error {
	if err := d.storage.Mount(); err != nil {
		d.logger.Error("failed to mount storage", "error", err)
		return fmt.Errorf("mount storage: %w", err)
	}

	if err := d.runLifecycle(); err != nil {
		d.logger.Error("lifecycle decision failed", "error", err)
		d.controlledRestart("lifecycle abort")

		return err
	}

	if err := d.stack.Start(d.handleEvent); err != nil {
		return fmt.Errorf("start network stack: %w", err)
	}

	if err := d.taskMgr.Start("session", d.runSession); err != nil {
		return err
	}
	if _, err := d.taskMgr.StartInterval("resetWatcher", d.watchReset, d.cfg.resetPollInterval, false); err != nil {
		return err
	}
	if _, err := d.taskMgr.StartInterval("statusIndicator", d.blinkStatus, d.cfg.blinkInterval, false); err != nil {
		return err
	}

	d.logger.Info("device running", "candidates", d.selector.Len(), "peer_port", d.cfg.peerPort)

	return nil
}

// Close stops all device tasks, tears the network down, and waits for the
// tasks to terminate.
func (d *Device) Close() error {
	d.ctxCancel()
	d.taskMgr.Stop()

	// unblock a session parked in a connection read
	d.connMu.Lock()
	if d.activeConn != nil {
		_ = d.activeConn.Close()
	}
	d.connMu.Unlock()

	err := d.stack.Stop()

	d.taskMgr.Wait()

	return err
}

// Confirm is the interrupt entry point of the physical confirmation button.
// It sets a single flag and returns.
func (d *Device) Confirm() {
	d.confirm.Set()
}

// RequestReset is the interrupt entry point of the hard-reset button.
// It sets a single flag and returns.
func (d *Device) RequestReset() {
	d.reset.Set()
}

// Link returns the connectivity state manager.
func (d *Device) Link() *token.LinkState {
	return d.link
}

// Diag returns the diagnostics counters.
func (d *Device) Diag() *Diagnostics {
	return &d.diag
}

// controlledRestart performs the restart sequence shared by every fatal
// path: countdown log, storage unmount, restart. It runs at most once per
// process; restart always happens with storage cleanly unmounted.
func (d *Device) controlledRestart(reason string) {
	d.restartOnce.Do(func() {
		d.logger.Warn("controlled restart", "reason", reason)

		for countdown := d.cfg.restartCountdown; countdown > 0; countdown-- {
			d.logger.Info("restart in", "seconds", countdown)
			time.Sleep(time.Second)
		}

		d.logger.Info("starting again")
		d.storage.Unmount()
		d.restarter.Restart()
	})
}

// sleep waits for the given duration with a pooled timer. It returns false
// when the device context is done before the duration elapses.
func (d *Device) sleep(ctx context.Context, duration time.Duration) bool {
	timer := pool.GetTimer(duration)
	defer pool.PutTimer(timer)

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// setConn publishes the session's open connection so Close can abort a
// blocked read during shutdown.
func (d *Device) setConn(conn net.Conn) {
	d.connMu.Lock()
	d.activeConn = conn
	d.connMu.Unlock()
}

func (d *Device) dialPeer(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{}

	dialCtx, cancel := context.WithTimeout(ctx, d.cfg.connectTimeout)
	defer cancel()

	return dialer.DialContext(dialCtx, "tcp", addr)
}

type nopPin struct{}

func (nopPin) Set(bool) {}
