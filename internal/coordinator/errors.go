package coordinator

import "errors"

var (
	// ErrCooldown is returned when a trigger arrives too soon after the last
	// accepted capture. The request is rejected, never queued.
	ErrCooldown = errors.New("capture cooldown active")

	// ErrBusy is returned when a capture pipeline is already in flight.
	ErrBusy = errors.New("capture already in progress")
)
