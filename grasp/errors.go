package grasp

import "errors"

var (
	// ErrNoActorInfo is returned when a scan cannot be built because the owner
	// has no valid actor context. Retried after the error delay.
	ErrNoActorInfo = errors.New("grasp: no valid actor info")

	// ErrNotAuthoritative means the task was activated without authority and
	// terminated without side effects.
	ErrNotAuthoritative = errors.New("grasp: not authoritative")

	// ErrStaleCallback marks a scan callback whose handle is not the outstanding one.
	ErrStaleCallback = errors.New("grasp: stale scan callback")

	// ErrInvalidData is returned by Data.Validate.
	ErrInvalidData = errors.New("grasp: invalid grasp data")
)
