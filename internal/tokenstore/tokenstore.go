package tokenstore

import (
	"context"
	"errors"
	"time"
)

var ErrUnavailable = errors.New("token store unavailable")

// Store holds short-lived, single-use correlation tokens. A token is
// minted when a callback URL is generated and consumed exactly once by
// the webhook that carries it. Consume must be atomic: two concurrent
// consumers of the same token must not both succeed.
type Store interface {
	Put(ctx context.Context, token string, ttl time.Duration) error
	Exists(ctx context.Context, token string) (bool, error)
	// Consume looks up and deletes the token in one step. It returns
	// false when the token does not exist or has already expired.
	Consume(ctx context.Context, token string) (bool, error)
}
