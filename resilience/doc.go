// Package resilience guards calls to remote resource stores.
//
// Retry repeats an operation with exponential backoff while its error is
// retryable: by default an AppError marked Retryable, never a context error.
// CircuitBreaker fails fast with SERVICE_UNAVAILABLE once a store has failed
// repeatedly, and lets a probe through after a cool-down.
//
//	res, err := resilience.Retry(ctx, cfg.Retry, func(ctx context.Context) (resource.Result, error) {
//	    return store.fetch(ctx, q)
//	})
package resilience
