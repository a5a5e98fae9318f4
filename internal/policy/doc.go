// Package policy is the durable output state policy of the bridge.
//
// For every (device id, channel index) it keeps two things:
//
//   - a default Policy, set in bulk per device from a pattern such as "1*0"
//     ('1' ForceOn, '0' ForceOff, '*' UseLastObserved, anything else Unset)
//   - the last observed output state, written through on every real change
//
// GetInitialState combines them to decide what an output should do when it
// attaches: forced defaults win, then the last observed state, and when
// nothing is known the hardware is left alone.
//
// # Persistence
//
// A Repository loads and saves both tables wholesale. Save is atomic per
// call; SQLiteRepository wraps the two table rewrites in one transaction.
package policy
