package master

import (
	"context"

	"github.com/mrgentlewombat/spring-practice-2025/pkg/types"
)

// WorkerClient sends command envelopes to a worker's command endpoint.
type WorkerClient interface {
	SendCommand(ctx context.Context, workerURL string, cmd *types.CommandEnvelope) (*types.CommandResponse, error)
}

// WorkerSource lists the workers the scheduler should poll.
type WorkerSource interface {
	GetAllWorkers() []types.WorkerNode
}
