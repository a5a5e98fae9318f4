package policy

import "errors"

// ErrPersistence is returned when the policy tables could not be loaded or
// saved. The in-memory tables stay authoritative when it occurs.
var ErrPersistence = errors.New("policy: persistence failed")
