package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrgentlewombat/spring-practice-2025/pkg/types"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/utils"
)

// ErrWorkerNotFound is returned when the master does not know this worker.
var ErrWorkerNotFound = errors.New("worker not registered with master")

// StatusError is a non-2xx HTTP answer.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

// newStatusError extracts the message of an ErrorResponse body when present.
func newStatusError(code int, body []byte) *StatusError {
	se := &StatusError{Code: code}
	if errResp, err := utils.FromJSONBytes[types.ErrorResponse](body); err == nil && errResp.Message != "" {
		se.Message = errResp.Message
	} else if len(body) > 0 && len(body) < 512 {
		se.Message = string(body)
	}
	return se
}

// timeoutFor bounds def by the context deadline.
func timeoutFor(ctx context.Context, def time.Duration) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, context.DeadlineExceeded
		}
		if def <= 0 || remaining < def {
			return remaining, nil
		}
	}
	return def, nil
}
