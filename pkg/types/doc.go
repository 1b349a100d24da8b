// Package types defines the wire contract exchanged between the master and
// its workers.
//
// This package contains:
//   - Command envelopes and command responses
//   - Worker node records and registration requests
//   - Command lifecycle and worker state enums
//   - The structured error body returned by both HTTP surfaces
package types
