// Package device wires the tokencore primitives into the on-device control
// core of an OpenPGP secure-element peer. It keeps the device joined to one
// of several known networks in round-robin order, runs a single-session
// command/response loop against the fixed counterpart machine, gates
// sensitive operations behind a physical confirmation step, and manages the
// boot-time lifecycle decision (first-time initialize vs. restore) together
// with the hard-reset path that forces re-initialization.
//
// Lifecycle:
//   - Create a Config with NewConfig() and the WithXXX options.
//   - Create a Device with New(), supplying the external collaborators
//     (network stack, command processor, persisted store, pins, restarter).
//   - Call Run() to perform the boot lifecycle and start the device tasks.
//   - Call Close() to stop all tasks and tear the network down.
//
// Three cooperating tasks run once Run returns: the session loop, the reset
// watcher, and the status indicator. Interrupt-context inputs (confirmation
// and hard-reset buttons) enter through Confirm() and RequestReset(), which
// only set an edge-triggered flag and return.
//
// Every fatal condition (lifecycle abort, response write failure, hard-reset
// request) goes through the same controlled restart sequence: countdown log,
// storage unmount, restart. The device never restarts with storage mounted.
package device
