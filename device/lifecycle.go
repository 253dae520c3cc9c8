package device

import (
	"errors"

	"github.com/openpgp-hw/tokencore/token"
)

// lifecycleState is a state of the boot-time lifecycle decision.
type lifecycleState int

const (
	lifecycleStart lifecycleState = iota
	lifecycleRestoring
	lifecycleInitializing
	lifecycleReady
	lifecycleAbort
)

func (s lifecycleState) String() string {
	switch s {
	case lifecycleStart:
		return "start"
	case lifecycleRestoring:
		return "restoring"
	case lifecycleInitializing:
		return "initializing"
	case lifecycleReady:
		return "ready"
	case lifecycleAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// runLifecycle runs the boot-time decision once: restore when the persisted
// lifecycle flag is present and true, initialize when it is absent, abort on
// any other store error or bring-up failure.
//
// A restore failure additionally erases the lifecycle flag before aborting:
// the persisted state is unrecoverable, so the restart must land on the
// initialization path rather than retrying the failing restore forever.
//
// The status pin is held high for the duration of the bring-up, mirroring the
// initialize/restore indication of the hardware.
func (d *Device) runLifecycle() error {
	d.statusPin.Set(true)
	defer d.statusPin.Set(false)

	state := lifecycleStart
	for {
		d.logger.Debug("lifecycle state", "state", state)

		switch state {
		case lifecycleStart:
			initialized, err := d.flags.ReadFlag(d.cfg.lifecycleFlagName)
			switch {
			case errors.Is(err, token.ErrFlagAbsent):
				state = lifecycleInitializing
			case err != nil:
				d.logger.Error("failed to read lifecycle flag", "flag", d.cfg.lifecycleFlagName, "error", err)
				state = lifecycleAbort
			case initialized:
				state = lifecycleRestoring
			default:
				// flag present but false: the store only ever records true,
				// so treat it like a fresh device
				state = lifecycleInitializing
			}

		case lifecycleRestoring:
			if err := d.bringup.Restore(); err != nil {
				d.logger.Error("failed to restore state, erasing lifecycle flag", "error", err)

				// unrecoverable persisted state: erase the flag so the next
				// boot re-initializes instead of retrying the failing restore
				if eraseErr := d.flags.EraseFlag(d.cfg.lifecycleFlagName); eraseErr != nil {
					d.logger.Error("failed to erase lifecycle flag",
						"flag", d.cfg.lifecycleFlagName, "error", eraseErr,
					)
				}

				state = lifecycleAbort
			} else {
				state = lifecycleReady
			}

		case lifecycleInitializing:
			// Initialize must leave the lifecycle flag durably true on success
			if err := d.bringup.Initialize(); err != nil {
				d.logger.Error("failed to initialize", "error", err)
				state = lifecycleAbort
			} else {
				state = lifecycleReady
			}

		case lifecycleReady:
			d.logger.Info("lifecycle ready")
			return nil

		case lifecycleAbort:
			return token.ErrLifecycleAbort
		}
	}
}
