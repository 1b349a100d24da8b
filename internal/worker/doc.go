// Package worker holds the worker-side core: the command registry that tracks
// every accepted envelope, and the processor that executes command kinds.
//
// A worker runs at most one background operation at a time. A second start
// while one is running is rejected with ErrAlreadyWorking, never queued.
package worker
