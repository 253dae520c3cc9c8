package apdu

// Instruction codes the control core inspects. All other codes are opaque and
// passed straight to the Processor.
const (
	// InsNone is the sentinel instruction produced by the parser when fewer
	// than a minimal header's worth of bytes was received. It signals
	// "nothing to receive": the session closes without a response.
	InsNone byte = 0x00

	// InsInternalAuthenticate (INTERNAL AUTHENTICATE) requires physical
	// confirmation before dispatch.
	InsInternalAuthenticate byte = 0x88

	// InsPerformSecurityOp (PERFORM SECURITY OPERATION) requires physical
	// confirmation before dispatch.
	InsPerformSecurityOp byte = 0x2A

	// ClaChaining is the command-chaining class. Chained continuation
	// commands are exempt from the confirmation gate; only the operation
	// that started the chain is gated.
	ClaChaining byte = 0x10
)

// Blocked status word, returned when the confirmation gate times out.
const (
	swBlockedHigh byte = 0x69
	swBlockedLow  byte = 0x83
)

// Command is a parsed command envelope.
type Command struct {
	// CLA is the instruction class.
	CLA byte
	// INS is the instruction code.
	INS byte
	// P1 and P2 are the instruction parameters.
	P1 byte
	P2 byte
	// Data is the command payload of exactly Lc bytes.
	Data []byte
	// Lc is the length of Data.
	Lc int
	// Le is the maximum expected response length, 0 when absent.
	Le int
}

// P1P2 returns the two parameter bytes combined into one 16-bit value.
func (c Command) P1P2() uint16 {
	return uint16(c.P1)<<8 | uint16(c.P2)
}

// IsNone reports whether the command carries the "nothing to receive"
// sentinel.
func (c Command) IsNone() bool {
	return c.INS == InsNone
}

// Sensitive reports whether the command requires physical confirmation before
// dispatch: INTERNAL AUTHENTICATE and PERFORM SECURITY OPERATION, except when
// sent under the command-chaining class.
func (c Command) Sensitive() bool {
	if c.CLA == ClaChaining {
		return false
	}

	return c.INS == InsInternalAuthenticate || c.INS == InsPerformSecurityOp
}

// Response is a response envelope. Data carries the full response including
// the trailing status word; its length is explicit.
type Response struct {
	Data []byte
}

// Length returns the number of response bytes.
func (r Response) Length() int {
	return len(r.Data)
}

// BlockedResponse returns the fixed 2-byte "operation blocked" status
// produced when the confirmation gate times out.
func BlockedResponse() Response {
	return Response{Data: []byte{swBlockedHigh, swBlockedLow}}
}

// Processor performs the opaque security operation for one command. It may
// take variable, potentially significant time, and must always return a
// well-formed Response.
type Processor interface {
	Process(cmd Command) Response
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(cmd Command) Response

func (f ProcessorFunc) Process(cmd Command) Response { return f(cmd) }
