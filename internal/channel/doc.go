// Package channel is the channel registry and state synchronisation engine.
//
// A Registry owns the live set of attached hardware channels. Sources
// (GPIO, USB relay, simulated boards) report presence and input edges as
// Events on a single ingress channel; Run applies them one at a time.
// Inbound commands from MQTT or HTTP call SetOutputState,
// SetDefaultOutputStates and GetStates directly.
//
// # Output state
//
// On attach, an output is driven to the value the policy store computes
// (forced default, else last observed) with a forced notification, so a
// consumer always hears about it. SetOutputState is idempotent: asking for
// the current value does nothing unless forced. Real transitions are written
// through to the policy store before the notification is emitted.
//
// # Notifications
//
// Side effects go to a Listener (normally the notify.Publisher), which only
// enqueues. The registry never waits on the network.
//
// # Errors
//
// Failures are reported as ErrNotFound, ErrAdapter, ErrPersistence or
// ErrTimeout. None of them stop the registry; hardware and persistence
// errors are logged and the registry keeps serving other channels.
package channel
