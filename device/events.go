package device

import (
	"github.com/openpgp-hw/tokencore/token"
)

// handleEvent is the connectivity event handler registered with the network
// stack. Events are delivered serially from the stack's own callback context,
// so the selector is never accessed concurrently.
//
// Higher-level security state is invalidated on every address event, before
// the link state changes, so a session waiter can never observe the new link
// state with stale authentication still in place.
func (d *Device) handleEvent(ev token.Event) {
	switch ev.Kind {
	case token.InterfaceStarted:
		cand := d.selector.Next()
		d.logger.Info("interface started, joining network", "network", cand.Name)
		if err := d.stack.Join(cand); err != nil {
			d.logger.Error("failed to join network", "network", cand.Name, "error", err)
		}

	case token.AddressAcquired:
		d.logger.Info("address acquired", "network", d.selector.Current().Name)
		d.invalidator.Invalidate()
		d.link.ToUp()

	case token.Disconnected:
		d.logger.Info("disconnected", "network", d.selector.Current().Name)
		d.invalidator.Invalidate()
		d.link.ToDown()

		// advance the round-robin selection; this is the only place a
		// candidate change happens besides interface start
		cand := d.selector.Next()
		d.logger.Info("joining next network", "network", cand.Name)
		if err := d.stack.Join(cand); err != nil {
			d.logger.Error("failed to join network", "network", cand.Name, "error", err)
		}
	}
}
