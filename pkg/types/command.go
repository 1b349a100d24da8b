package types

import (
	"github.com/mrgentlewombat/spring-practice-2025/pkg/utils"
)

// CommandEnvelope is the unit of work sent from the master to a worker.
type CommandEnvelope struct {
	// Type is the case-insensitive command name.
	Type string `json:"type"`

	// Payload is opaque, command-specific data.
	Payload any `json:"payload,omitempty"`

	// CommandID identifies the command within one worker's command registry.
	// The sender generates it; the worker mints one when it is absent.
	CommandID string `json:"id,omitempty"`
}

// envelopeWire mirrors CommandEnvelope and also accepts the long-form
// "commandId" key some senders use.
type envelopeWire struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload"`
	ID        string `json:"id"`
	CommandID string `json:"commandId"`
}

// UnmarshalJSON decodes an envelope. Field names are matched case-insensitively.
func (e *CommandEnvelope) UnmarshalJSON(data []byte) error {
	var w envelopeWire
	if err := utils.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Type = w.Type
	e.Payload = w.Payload
	e.CommandID = w.ID
	if e.CommandID == "" {
		e.CommandID = w.CommandID
	}
	return nil
}

// CommandResponse is the synchronous reply to a dispatched command.
type CommandResponse struct {
	Success   bool     `json:"success"`
	Status    string   `json:"status"`
	Result    any      `json:"result,omitempty"`
	Progress  *float64 `json:"progress,omitempty"`
	CommandID string   `json:"id"`
}

// ErrorResponse is the structured body of every protocol-level failure.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// NewErrorResponse builds an ErrorResponse with Error set.
func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Error: true, Message: message}
}

// CommandStatus is the lifecycle state of one accepted command.
type CommandStatus string

const (
	// CommandStatusRunning indicates the command was accepted and has not finished.
	CommandStatusRunning CommandStatus = "Running"
	// CommandStatusCompleted indicates the command finished successfully.
	CommandStatusCompleted CommandStatus = "Completed"
	// CommandStatusCancelled indicates the command was cancelled.
	CommandStatusCancelled CommandStatus = "Cancelled"
	// CommandStatusFailed indicates the command finished with an error.
	CommandStatusFailed CommandStatus = "Failed"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s CommandStatus) IsTerminal() bool {
	switch s {
	case CommandStatusCompleted, CommandStatusCancelled, CommandStatusFailed:
		return true
	default:
		return false
	}
}

// WorkState is the worker-wide state of the background operation.
type WorkState string

const (
	// WorkStateIdle indicates no background operation is running.
	WorkStateIdle WorkState = "Idle"
	// WorkStateWorking indicates a background operation is running.
	WorkStateWorking WorkState = "Working"
	// WorkStateError indicates the last background operation failed.
	WorkStateError WorkState = "Error"
)

// Well-known command types.
const (
	TypeStatus          = "status"
	TypeCancel          = "cancel"
	TypePing            = "ping"
	TypeHello           = "hello"
	TypeStart           = "start"
	TypeStartProcessing = "startprocessing"
	TypeStop            = "stop"
	TypeSendStatistics  = "sendstatistics"
	TypeLockFiles       = "lockfiles"
	TypeUnlockFiles     = "unlockfiles"
	TypeInfo            = "info"
)
