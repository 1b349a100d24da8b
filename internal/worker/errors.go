package worker

import "errors"

var (
	// ErrAlreadyWorking is returned by start while a background operation runs.
	ErrAlreadyWorking = errors.New("already working on a task, stop the current task first")
	// ErrFileLocked is returned when a requested file is already locked.
	ErrFileLocked = errors.New("file already locked")
	// ErrInvalidPayload is returned when a command payload lacks required data.
	ErrInvalidPayload = errors.New("invalid payload")
)
