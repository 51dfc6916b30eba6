package model

import "errors"

// Failure signals a config entry reports back to the host.
var (
	// ErrEntryNotReady means setup failed for a transient reason; retry later.
	ErrEntryNotReady = errors.New("config entry not ready")
	// ErrEntryAuthFailed means the credentials were rejected; reconfiguration is required.
	ErrEntryAuthFailed = errors.New("config entry authentication failed")
	// ErrUpdateFailed is returned by a coordinator refresh that could not reach the hub.
	ErrUpdateFailed = errors.New("update failed")
)
