package token

// EventKind identifies a connectivity event delivered by the network stack.
type EventKind uint8

const (
	// InterfaceStarted indicates that the network interface came up and the
	// first candidate should be selected and joined.
	InterfaceStarted EventKind = iota
	// AddressAcquired indicates that the device obtained a network address.
	AddressAcquired
	// Disconnected indicates that the device lost its network address.
	Disconnected
)

// String returns string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case InterfaceStarted:
		return "interface-started"
	case AddressAcquired:
		return "address-acquired"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is a connectivity event notification.
type Event struct {
	Kind EventKind
}

// EventHandler processes connectivity events.
//
// The network stack delivers events serially from its own callback context;
// the handler must not block for long durations, but it may perform stack
// calls such as Join.
type EventHandler func(ev Event)

// NetworkStack abstracts the platform network layer. Implementations bring
// the interface up, attempt to join candidate networks, and deliver
// serialized connectivity events to the registered handler.
type NetworkStack interface {
	// Start brings the network interface up and registers the event handler.
	// The stack emits InterfaceStarted once the interface is running.
	Start(handler EventHandler) error

	// Join initiates joining the given candidate network. The outcome is
	// reported asynchronously: AddressAcquired on success, Disconnected when
	// the attempt fails or a later loss occurs.
	Join(c Candidate) error

	// Stop tears the network interface down. No events are delivered after
	// Stop returns.
	Stop() error
}
