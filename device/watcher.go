package device

// watchReset is the task function of the reset watcher. It polls the
// hard-reset flag; when raised, it erases the lifecycle flag and performs a
// controlled restart, which forces re-initialization on the next boot.
//
// An erase failure leaves the flag raised so the watcher retries on its next
// period.
func (d *Device) watchReset() bool {
	if !d.reset.IsSet() {
		return true
	}

	d.logger.Warn("hard reset requested, erasing lifecycle flag")

	if err := d.flags.EraseFlag(d.cfg.lifecycleFlagName); err != nil {
		d.logger.Error("failed to erase lifecycle flag", "flag", d.cfg.lifecycleFlagName, "error", err)
		return true
	}

	d.reset.Clear()
	d.controlledRestart("hard reset")

	return false
}

// blinkStatus is the task function of the status indicator. While the link is
// down it toggles the link pin each period as a "searching" blink; once the
// link is up the pin is left under the connectivity handler's control.
func (d *Device) blinkStatus() bool {
	if !d.link.IsUp() {
		d.blinkOn = !d.blinkOn
		d.linkPin.Set(d.blinkOn)
	}

	return true
}
