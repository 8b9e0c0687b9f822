package service

import "errors"

var (
	// ErrJobActive is returned when creating or starting a job while another
	// job is running or paused; redemption work is serialized system-wide.
	ErrJobActive = errors.New("another job is already active")

	// ErrJobNotFound is returned when a job id does not exist
	ErrJobNotFound = errors.New("job not found")

	// ErrJobFinished is returned when starting or cancelling a job that has
	// already reached a terminal state
	ErrJobFinished = errors.New("job already finished")

	// ErrPlayerNotFound is returned when a player id does not exist in the roster
	ErrPlayerNotFound = errors.New("player not found")

	// ErrPlayerExists is returned when adding a player id that is already tracked
	ErrPlayerExists = errors.New("player already exists")

	// ErrCodeNotFound is returned when a gift code does not exist
	ErrCodeNotFound = errors.New("code not found")

	// ErrCodeExists is returned when adding a gift code that is already tracked
	ErrCodeExists = errors.New("code already exists")

	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")
)
