package device

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/openpgp-hw/tokencore/apdu"
	"github.com/openpgp-hw/tokencore/logger"
)

// sessionState is a state of the per-iteration session finite-state machine.
type sessionState int

const (
	// stateWaitLink blocks until the device holds a network address.
	stateWaitLink sessionState = iota
	// stateConnecting opens a client connection to the current candidate's
	// peer address.
	stateConnecting
	// stateReceiving reads one command from the connection and parses it.
	stateReceiving
	// stateGating waits for physical confirmation of a sensitive operation.
	stateGating
	// stateDispatching hands the command to the external processor.
	stateDispatching
	// stateResponding writes the response bytes to the connection.
	stateResponding
	// stateClosing closes the connection; reached on every path that opened
	// one.
	stateClosing
	// stateFatalRestart performs the controlled restart sequence.
	stateFatalRestart
	// stateDone ends the iteration.
	stateDone
)

func (s sessionState) String() string {
	switch s {
	case stateWaitLink:
		return "wait-link"
	case stateConnecting:
		return "connecting"
	case stateReceiving:
		return "receiving"
	case stateGating:
		return "gating"
	case stateDispatching:
		return "dispatching"
	case stateResponding:
		return "responding"
	case stateClosing:
		return "closing"
	case stateFatalRestart:
		return "fatal-restart"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// session is the ephemeral per-iteration state: the connection handle, the
// receive buffer, and the command/response envelopes. It is destroyed at
// iteration end regardless of outcome.
type session struct {
	conn net.Conn
	buf  []byte
	cmd  apdu.Command
	rsp  apdu.Response

	fatal       bool
	fatalReason string
}

// runSession runs one session iteration: wait for connectivity, connect to
// the counterpart, exchange one command/response pair, close. It is the task
// function of the "session" task; returning true schedules the next
// iteration.
//
// Exactly one command is processed per opened connection, and the connection
// is closed exactly once per iteration on every path.
func (d *Device) runSession() bool {
	s := &session{buf: make([]byte, d.cfg.recvBufferSize)}

	state := stateWaitLink
	for state != stateDone {
		next := d.stepSession(d.ctx, s, state)
		d.logger.Debug("session transition", "from", state, "to", next)
		state = next
	}

	if s.fatal {
		return false
	}

	return d.ctx.Err() == nil
}

// stepSession executes one state of the session machine and returns the next
// state.
func (d *Device) stepSession(ctx context.Context, s *session, state sessionState) sessionState {
	switch state {
	case stateWaitLink:
		if err := d.link.WaitUp(ctx); err != nil {
			return stateDone
		}

		return stateConnecting

	case stateConnecting:
		cand := d.selector.Current()
		addr := net.JoinHostPort(cand.PeerHost, strconv.Itoa(d.cfg.peerPort))

		conn, err := d.dial(ctx, addr)
		if err != nil {
			d.logger.Warn("failed to connect to peer, check that the server is running at the other end",
				"addr", addr, "error", err,
			)
			// a dial failure may be the tail end of a dead connection
			d.invalidator.Invalidate()
			d.sleep(ctx, d.cfg.dialRetryDelay)

			// retry from the connectivity wait; the candidate only advances
			// on a real disconnect event
			return stateDone
		}

		s.conn = conn
		d.setConn(conn)
		d.logger.Debug("connected to peer", "addr", addr)

		return stateReceiving

	case stateReceiving:
		n, err := s.conn.Read(s.buf)
		if err != nil && n <= 0 {
			n = 0 // the parser turns an empty read into the sentinel
		}

		s.cmd = d.parser.Parse(s.buf[:n])
		if s.cmd.IsNone() {
			d.logger.Debug("nothing to receive, closing session")
			d.invalidator.Invalidate()

			return stateClosing
		}

		d.logCommand(s.cmd, n)

		if s.cmd.Sensitive() {
			return stateGating
		}

		return stateDispatching

	case stateGating:
		if d.waitConfirmation(ctx) {
			return stateDispatching
		}

		// gate timed out: bypass dispatch with the fixed blocked status
		s.rsp = apdu.BlockedResponse()

		return stateResponding

	case stateDispatching:
		d.statusPin.Set(true)
		start := time.Now()

		s.rsp = d.processor.Process(s.cmd)

		d.diag.observe(s.cmd.INS, time.Since(start))
		d.statusPin.Set(false)

		d.logResponse(s.rsp)

		return stateResponding

	case stateResponding:
		if _, err := s.conn.Write(s.rsp.Data); err != nil {
			d.logger.Error("failed to write response", "error", err)
			s.fatal = true
			s.fatalReason = "response write failed"
		}

		return stateClosing

	case stateClosing:
		if s.conn != nil {
			if err := s.conn.Close(); err != nil {
				d.logger.Debug("failed to close connection", "error", err)
			}
			s.conn = nil
			d.setConn(nil)
		}

		if s.fatal {
			return stateFatalRestart
		}

		return stateDone

	case stateFatalRestart:
		d.controlledRestart(s.fatalReason)
		return stateDone
	}

	return stateDone
}

func (d *Device) logCommand(cmd apdu.Command, total int) {
	if d.logger.Level() != logger.DebugLevel {
		return
	}

	d.logger.Debug("command parsed",
		"cla", fmt.Sprintf("%02X", cmd.CLA),
		"ins", fmt.Sprintf("%02X", cmd.INS),
		"p1", fmt.Sprintf("%02X", cmd.P1),
		"p2", fmt.Sprintf("%02X", cmd.P2),
		"lc", cmd.Lc,
		"data", hex.EncodeToString(cmd.Data),
		"le", cmd.Le,
		"total", total,
	)
}

func (d *Device) logResponse(rsp apdu.Response) {
	if d.logger.Level() != logger.DebugLevel {
		return
	}

	d.logger.Debug("response produced",
		"data", hex.EncodeToString(rsp.Data),
		"length", rsp.Length(),
	)
}
