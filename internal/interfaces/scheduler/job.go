package scheduler

import "context"

// Job is a unit of work executed by the worker pool.
type Job interface {
	// Execute runs the job. Implementations honor ctx cancellation.
	Execute(ctx context.Context) error

	// OwnerID identifies whose data the job touches.
	OwnerID() string

	Description() string
}
