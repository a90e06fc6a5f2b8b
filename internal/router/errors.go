package router

import "errors"

var (
	// ErrAlreadyActive is returned when a customer tries to open a
	// second support session while one is still open.
	ErrAlreadyActive = errors.New("customer already has an active support session")
	// ErrRoomNotFound is returned when the referenced room does not exist.
	ErrRoomNotFound = errors.New("room not found")
	// ErrParticipantNotFound is returned when the referenced participant
	// row does not exist in the room.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrNotSupportRoom is returned when a routing operation targets an
	// ordinary 1:1 room.
	ErrNotSupportRoom = errors.New("room is not a support room")
	// ErrStorageUnavailable wraps session store failures. The caller
	// decides whether to retry the whole operation; every router
	// operation is idempotent given the same arguments.
	ErrStorageUnavailable = errors.New("session store unavailable")
)
