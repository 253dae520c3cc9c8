// Package token provides the core primitives for the on-device control loop of
// an OpenPGP secure-element peer: the signal bridge between interrupt and task
// contexts, the candidate-network selector, the connectivity link state, and
// the task lifecycle manager.
//
// Signal Bridge:
// Interrupt handlers and cooperating tasks share state through exactly two
// primitives, each with a single-writer-per-direction discipline:
//   - Flag: an edge-triggered boolean set from interrupt context and cleared by
//     the consuming task. Multiple sets before consumption collapse to one.
//   - LinkState: the connectivity bit with a blocking wait. The network event
//     handler is its only writer; the session loop blocks on WaitUp.
//
// Collaborator Interfaces:
// The control core performs no security computation and owns no persistence
// format. It consumes external collaborators through narrow interfaces:
//   - Invalidator: resets higher-level security/session state on every
//     connectivity transition and session-ending disconnect.
//   - StateBringup: first-time initialization and boot-time restore of the
//     persisted application state.
//   - FlagStore, Storage: persisted boolean flags and scoped filesystem
//     availability.
//   - NetworkStack: network interface bring-up and candidate join, delivering
//     serialized connectivity events.
//   - Pin, Restarter: output pins and the hardware restart path.
package token
