// Package apdu defines the command/response envelopes exchanged with the
// counterpart machine and the classification rules the control core needs:
// the "nothing to receive" sentinel and the sensitive-operation set that is
// gated behind physical confirmation.
//
// The actual security computation is opaque to this package; it is performed
// by an external Processor that receives a parsed Command and returns a
// Response. Data fields carry explicit lengths everywhere; no zero-byte
// termination is assumed.
package apdu
