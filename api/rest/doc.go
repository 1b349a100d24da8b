// Package rest exposes the master's worker registry endpoints and the
// worker's command listener over HTTP.
package rest
