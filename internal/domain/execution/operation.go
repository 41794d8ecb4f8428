package execution

import "context"

// Operation is the wrapped call of an adaptive executor. It knows nothing
// about strategies; returning an error marks the attempt as failed.
type Operation[In, Out any] func(ctx context.Context, in In, ec Context) (Out, error)
