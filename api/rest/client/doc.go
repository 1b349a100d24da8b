// Package client implements the outbound HTTP clients using Fiber: the
// worker's registration and heartbeat client, and the master's command sender.
package client
