package token

// Candidate is one configured network the device may attempt to join, together
// with the address of the fixed counterpart reachable through it.
//
// The candidate list is immutable after configuration; its insertion order
// defines the round-robin order.
type Candidate struct {
	// Name is the human-readable network identifier (e.g. an SSID).
	Name string
	// Credential is the joining credential for the network.
	Credential string
	// PeerHost is the host of the counterpart machine on this network.
	PeerHost string
}

// Selector cycles through the candidate list in round-robin order.
//
// Next is called exactly twice in the system: when the network interface
// starts, to pick the first candidate, and when a disconnect event is
// observed, to pick the next candidate before reconnecting. A failed join
// does not advance the selector by itself; it advances exactly once at the
// next disconnect event. This keeps the device cycling through all candidates
// over repeated failures.
//
// The selector is exclusively owned by the connectivity event handler and is
// never accessed concurrently.
type Selector struct {
	candidates []Candidate
	current    int
	next       int
}

// NewSelector creates a Selector over the given candidates.
// It returns ErrNoCandidates when the list is empty.
func NewSelector(candidates []Candidate) (*Selector, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	return &Selector{
		candidates: append([]Candidate(nil), candidates...),
	}, nil
}

// Next advances the selection and returns the now-current candidate.
//
// A single-candidate configuration degenerates to always reselecting the same
// candidate.
func (s *Selector) Next() Candidate {
	s.current = s.next
	s.next = (s.next + 1) % len(s.candidates)

	return s.candidates[s.current]
}

// Current returns the currently selected candidate without advancing.
// Before the first Next call it returns the first configured candidate.
func (s *Selector) Current() Candidate {
	return s.candidates[s.current]
}

// Len returns the number of configured candidates.
func (s *Selector) Len() int {
	return len(s.candidates)
}
