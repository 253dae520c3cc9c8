// Package deviceintegration contains integration tests for the device
// package that exercise full session lifecycles over real TCP.
//
// A raw TCP peer stands in for the counterpart machine: the control core
// connects out, the peer sends one command per accepted connection and reads
// the response, matching the one-command session discipline.
package deviceintegration

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openpgp-hw/tokencore/apdu"
	"github.com/openpgp-hw/tokencore/device"
	"github.com/openpgp-hw/tokencore/fsstore"
	"github.com/openpgp-hw/tokencore/hostnet"
	"github.com/openpgp-hw/tokencore/logger"
	"github.com/openpgp-hw/tokencore/token"
)

const exchangeTimeout = 10 * time.Second

// peer is a raw TCP counterpart: every accepted connection is handed to the
// test so it can script the exchange.
type peer struct {
	ln    net.Listener
	conns chan net.Conn
}

func startPeer(t *testing.T) *peer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	p := &peer{ln: ln, conns: make(chan net.Conn, 4)}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				close(p.conns)
				return
			}
			p.conns <- conn
		}
	}()

	t.Cleanup(func() { _ = ln.Close() })

	return p
}

func (p *peer) port() int {
	return p.ln.Addr().(*net.TCPAddr).Port
}

// exchange sends one command on the next session connection and returns the
// response bytes. Reachability probe connections arrive on the same port and
// close immediately; they are skipped.
func (p *peer) exchange(t *testing.T, cmd []byte) []byte {
	t.Helper()

	deadline := time.Now().Add(exchangeTimeout)
	for time.Now().Before(deadline) {
		var conn net.Conn
		select {
		case conn = <-p.conns:
		case <-time.After(time.Until(deadline)):
			t.Fatal("control core did not connect")
		}

		rsp, ok := tryExchange(conn, cmd)
		_ = conn.Close()

		if ok {
			return rsp
		}
	}

	t.Fatal("no session connection within the deadline")

	return nil
}

func tryExchange(conn net.Conn, cmd []byte) ([]byte, bool) {
	if _, err := conn.Write(cmd); err != nil {
		return nil, false
	}

	if err := conn.SetReadDeadline(time.Now().Add(exchangeTimeout)); err != nil {
		return nil, false
	}

	buf := make([]byte, 512)

	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		return nil, false
	}

	return buf[:n], true
}

type testBringup struct {
	store *fsstore.Store
}

func (b *testBringup) Initialize() error {
	return b.store.WriteFlag("initialized", true)
}

func (b *testBringup) Restore() error { return nil }

type noRestart struct {
	t *testing.T
}

func (r noRestart) Restart() {
	r.t.Error("unexpected restart")
}

func startDevice(t *testing.T, p *peer) *device.Device {
	t.Helper()

	log := logger.NewSlog(logger.ErrorLevel, false)

	store := fsstore.New(filepath.Join(t.TempDir(), "store"), log)
	stack := hostnet.NewStack(p.port(),
		hostnet.WithProbeInterval(20*time.Millisecond),
		hostnet.WithProbeTimeout(time.Second),
		hostnet.WithLogger(log),
	)

	cfg, err := device.NewConfig(
		[]token.Candidate{{Name: "local", PeerHost: "127.0.0.1"}},
		device.WithPeerPort(p.port()),
		device.WithDialRetryDelay(20*time.Millisecond),
		device.WithConfirmPollInterval(time.Millisecond),
		device.WithConfirmBudget(5),
		device.WithRestartCountdown(0),
		device.WithLogger(log),
	)
	require.NoError(t, err)

	echo := apdu.ProcessorFunc(func(cmd apdu.Command) apdu.Response {
		data := append([]byte{cmd.CLA, cmd.INS}, cmd.Data...)
		return apdu.Response{Data: append(data, 0x90, 0x00)}
	})

	dev, err := device.New(context.Background(), cfg, device.Collaborators{
		Stack:       stack,
		Processor:   echo,
		Invalidator: token.InvalidatorFunc(func() {}),
		Bringup:     &testBringup{store: store},
		Flags:       store,
		Storage:     store,
		Restarter:   noRestart{t: t},
	})
	require.NoError(t, err)

	require.NoError(t, dev.Run())
	t.Cleanup(func() { require.NoError(t, dev.Close()) })

	return dev
}

func TestSessionFlowOverTCP(t *testing.T) {
	p := startPeer(t)
	dev := startDevice(t, p)

	// plain command: dispatched without confirmation and echoed back
	rsp := p.exchange(t, []byte{0x00, 0x84, 0x00, 0x00, 0x08})
	require.Equal(t, []byte{0x00, 0x84, 0x90, 0x00}, rsp)

	// a second exchange reuses a fresh connection
	rsp = p.exchange(t, []byte{0x00, 0xCA, 0x00, 0x6E, 0x00})
	require.Equal(t, []byte{0x00, 0xCA, 0x90, 0x00}, rsp)

	require.Equal(t, uint64(2), dev.Diag().OpCount.Load())
}

func TestSensitiveCommandBlockedOverTCP(t *testing.T) {
	p := startPeer(t)
	dev := startDevice(t, p)

	rsp := p.exchange(t, []byte{0x00, 0x88, 0x00, 0x00})
	require.Equal(t, []byte{0x69, 0x83}, rsp)
	require.Equal(t, uint64(0), dev.Diag().OpCount.Load())
}

func TestSensitiveCommandConfirmedOverTCP(t *testing.T) {
	p := startPeer(t)
	dev := startDevice(t, p)

	stop := make(chan struct{})
	pressDone := make(chan struct{})
	go func() {
		defer close(pressDone)
		for {
			select {
			case <-stop:
				return
			default:
				dev.Confirm()
				time.Sleep(time.Millisecond)
			}
		}
	}()

	rsp := p.exchange(t, []byte{0x00, 0x2A, 0x9E, 0x9A})
	close(stop)
	<-pressDone

	require.Equal(t, []byte{0x00, 0x2A, 0x90, 0x00}, rsp)
	require.Equal(t, uint64(1), dev.Diag().OpCount.Load())
}
