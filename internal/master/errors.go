package master

import "errors"

var (
	// ErrInvalidArgument is returned when a required argument is empty.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrRegistrationConflict is returned when a generated worker id is already taken.
	ErrRegistrationConflict = errors.New("registration conflict")
)
