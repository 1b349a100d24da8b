// Package master implements the master node: the worker registry that tracks
// membership and heartbeats, the scheduler that polls workers and dispatches
// work, and the optional stale sweep.
package master
