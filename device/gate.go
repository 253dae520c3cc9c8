package device

import (
	"context"
)

// waitConfirmation is the confirmation gate: it blocks the session task until
// the physical confirmation flag is raised or the iteration budget runs out.
//
// The flag is cleared on entry so a stale press cannot satisfy the gate. Each
// iteration flashes both indicator pins on for one poll interval and off for
// one, then checks the flag; with the defaults that is a 15 second total
// wait. On exit the status pin is switched off and the link pin is restored
// to reflect the connectivity state, on every path including cancellation
// mid-flash.
//
// It returns true when confirmation arrived within the budget and dispatch
// should proceed, false on timeout or context cancellation.
func (d *Device) waitConfirmation(ctx context.Context) bool {
	d.confirm.Clear()

	confirmed := false
	for i := 0; i < d.cfg.confirmBudget && !confirmed; i++ {
		d.statusPin.Set(true)
		d.linkPin.Set(true)
		if !d.sleep(ctx, d.cfg.confirmPollInterval) {
			break
		}

		d.statusPin.Set(false)
		d.linkPin.Set(false)
		if !d.sleep(ctx, d.cfg.confirmPollInterval) {
			break
		}

		confirmed = d.confirm.TakeIfSet()
	}

	// leave the indicators in a defined state: processing off, link
	// reflecting connectivity
	d.statusPin.Set(false)
	d.linkPin.Set(d.link.IsUp())

	if !confirmed {
		d.logger.Warn("confirmation not received, operation blocked")
	}

	return confirmed
}
