package rate

import "errors"

var (
	// ErrRateLimited reports a key whose attempt budget is spent for the current window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps any Redis failure. Callers decide whether to fail open.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
