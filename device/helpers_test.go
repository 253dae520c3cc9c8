package device

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openpgp-hw/tokencore/apdu"
	"github.com/openpgp-hw/tokencore/logger"
	"github.com/openpgp-hw/tokencore/token"
)

func testLogger() logger.Logger {
	return logger.NewSlog(logger.ErrorLevel, false)
}

func testCandidates() []token.Candidate {
	return []token.Candidate{
		{Name: "home", Credential: "pass-home", PeerHost: "10.0.0.2"},
		{Name: "lab", Credential: "pass-lab", PeerHost: "10.0.1.2"},
	}
}

// recorder captures the order of storage/restart side effects so tests can
// assert that unmount always precedes restart.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.events...)
}

type fakeStack struct {
	mu       sync.Mutex
	handler  token.EventHandler
	joins    []string
	startErr error
	joinErr  error
}

func (f *fakeStack) Start(handler token.EventHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler

	return f.startErr
}

func (f *fakeStack) Join(cand token.Candidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, cand.Name)

	return f.joinErr
}

func (f *fakeStack) Stop() error { return nil }

func (f *fakeStack) joined() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.joins...)
}

type fakeProcessor struct {
	mu    sync.Mutex
	calls []apdu.Command
	rsp   apdu.Response
}

func (f *fakeProcessor) Process(cmd apdu.Command) apdu.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmd)

	return f.rsp
}

func (f *fakeProcessor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

func (f *fakeProcessor) last() apdu.Command {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[len(f.calls)-1]
}

type fakeInvalidator struct {
	n atomic.Int32
}

func (f *fakeInvalidator) Invalidate() { f.n.Add(1) }

type fakeBringup struct {
	initErr    error
	restoreErr error

	initCalls    int
	restoreCalls int
}

func (f *fakeBringup) Initialize() error {
	f.initCalls++
	return f.initErr
}

func (f *fakeBringup) Restore() error {
	f.restoreCalls++
	return f.restoreErr
}

type fakeFlags struct {
	mu       sync.Mutex
	values   map[string]bool
	readErr  error
	eraseErr error
	erased   []string
}

func (f *fakeFlags) ReadFlag(name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readErr != nil {
		return false, f.readErr
	}

	val, ok := f.values[name]
	if !ok {
		return false, token.ErrFlagAbsent
	}

	return val, nil
}

func (f *fakeFlags) EraseFlag(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.eraseErr != nil {
		return f.eraseErr
	}

	delete(f.values, name)
	f.erased = append(f.erased, name)

	return nil
}

func (f *fakeFlags) setEraseErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eraseErr = err
}

type fakeStorage struct {
	rec      *recorder
	mountErr error
}

func (f *fakeStorage) Mount() error {
	f.rec.add("mount")
	return f.mountErr
}

func (f *fakeStorage) Unmount() {
	f.rec.add("unmount")
}

type fakeRestarter struct {
	rec *recorder
	n   atomic.Int32
}

func (f *fakeRestarter) Restart() {
	f.n.Add(1)
	f.rec.add("restart")
}

type fakePin struct {
	mu      sync.Mutex
	history []bool
}

func (f *fakePin) Set(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, on)
}

func (f *fakePin) sets() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]bool(nil), f.history...)
}

func (f *fakePin) lastSet() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.history) == 0 {
		return false, false
	}

	return f.history[len(f.history)-1], true
}

// stubConn is a scripted net.Conn: one read delivers the payload, later reads
// report EOF.
type stubConn struct {
	mu       sync.Mutex
	payload  []byte
	consumed bool
	written  []byte
	writeErr error
	closed   int
}

func (c *stubConn) Read(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.consumed {
		return 0, io.EOF
	}
	c.consumed = true

	return copy(b, c.payload), nil
}

func (c *stubConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.written = append(c.written, b...)

	return len(b), nil
}

func (c *stubConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++

	return nil
}

func (c *stubConn) writtenBytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]byte(nil), c.written...)
}

func (c *stubConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func (c *stubConn) LocalAddr() net.Addr                { return &net.TCPAddr{} }
func (c *stubConn) RemoteAddr() net.Addr               { return &net.TCPAddr{} }
func (c *stubConn) SetDeadline(t time.Time) error      { return nil }
func (c *stubConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *stubConn) SetWriteDeadline(t time.Time) error { return nil }

// fixture bundles a Device with all of its fake collaborators.
type fixture struct {
	dev     *Device
	stack   *fakeStack
	proc    *fakeProcessor
	inval   *fakeInvalidator
	bringup *fakeBringup
	flags   *fakeFlags
	rec     *recorder
	storage *fakeStorage
	restart *fakeRestarter
	status  *fakePin
	link    *fakePin
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	rec := &recorder{}
	f := &fixture{
		stack:   &fakeStack{},
		proc:    &fakeProcessor{rsp: apdu.Response{Data: []byte{0x01, 0x02, 0x90, 0x00}}},
		inval:   &fakeInvalidator{},
		bringup: &fakeBringup{},
		flags:   &fakeFlags{values: make(map[string]bool)},
		rec:     rec,
		storage: &fakeStorage{rec: rec},
		restart: &fakeRestarter{rec: rec},
		status:  &fakePin{},
		link:    &fakePin{},
	}

	base := []Option{
		WithLogger(testLogger()),
		WithRestartCountdown(0),
		WithDialRetryDelay(10 * time.Millisecond),
		WithConfirmPollInterval(time.Millisecond),
		WithConfirmBudget(2),
	}

	cfg, err := NewConfig(testCandidates(), append(base, opts...)...)
	require.NoError(t, err)

	dev, err := New(context.Background(), cfg, Collaborators{
		Stack:       f.stack,
		Processor:   f.proc,
		Invalidator: f.inval,
		Bringup:     f.bringup,
		Flags:       f.flags,
		Storage:     f.storage,
		Restarter:   f.restart,
		StatusPin:   f.status,
		LinkPin:     f.link,
	})
	require.NoError(t, err)

	f.dev = dev

	return f
}
