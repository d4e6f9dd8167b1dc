// Package retry retries transient transport failures of platform calls.
//
// Only network and 5xx errors are retried. Rate limit responses are passed
// straight through so the session engine can pause on the platform's own
// reset window instead of hammering the endpoint:
//
//	users, err := retry.DoWithResult(ctx, cfg, func(ctx context.Context) ([]models.User, error) {
//		return c.lookup(ctx, ids)
//	})
package retry
