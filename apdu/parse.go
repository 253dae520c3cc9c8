package apdu

// Header length of a T=0 style command: CLA, INS, P1, P2.
const headerLen = 4

// Parser turns raw received bytes into a Command envelope.
type Parser interface {
	// Parse parses raw into a Command. Implementations must return a Command
	// with the InsNone sentinel when raw holds fewer than a minimal header's
	// worth of bytes.
	Parse(raw []byte) Command
}

// HeaderParser is the default Parser. It understands the four short command
// cases: header only, header+Le, header+Lc+data, and header+Lc+data+Le.
//
// A malformed body (Lc announcing more bytes than received) is clamped to the
// bytes actually present rather than read past the buffer.
type HeaderParser struct{}

var _ Parser = HeaderParser{}

// Parse parses raw into a Command.
func (HeaderParser) Parse(raw []byte) Command {
	if len(raw) < headerLen {
		return Command{INS: InsNone}
	}

	cmd := Command{
		CLA: raw[0],
		INS: raw[1],
		P1:  raw[2],
		P2:  raw[3],
	}

	body := raw[headerLen:]
	switch {
	case len(body) == 0:
		// case 1: no body

	case len(body) == 1:
		// case 2: Le only
		cmd.Le = expectedLen(body[0])

	default:
		// case 3 or 4: Lc + data, optionally followed by Le
		lc := int(body[0])
		data := body[1:]
		if lc > len(data) {
			lc = len(data)
		}

		cmd.Lc = lc
		cmd.Data = data[:lc]

		if len(data) > lc {
			cmd.Le = expectedLen(data[lc])
		}
	}

	return cmd
}

// expectedLen decodes a short Le byte, where 0x00 encodes 256.
func expectedLen(le byte) int {
	if le == 0 {
		return 256
	}

	return int(le)
}
