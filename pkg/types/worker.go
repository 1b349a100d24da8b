package types

import "time"

// Worker status values kept in WorkerNode.Status.
const (
	// WorkerStatusActive is assigned on registration.
	WorkerStatusActive = "Active"
	// WorkerStatusUnreachable is assigned by the stale sweep policy when it is enabled.
	WorkerStatusUnreachable = "Unreachable"
)

// WorkerNode represents one registered worker.
type WorkerNode struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
	Status        string    `json:"status"`
	RegisteredAt  time.Time `json:"registeredAt"`
}

// RegisterWorkerRequest is the body of a worker registration call.
type RegisterWorkerRequest struct {
	URL string `json:"url"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
