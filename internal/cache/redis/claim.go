package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/floorline/floorline/internal/domain"
)

// releaseLua deletes a claim key only if its value matches the caller's
// unique token. This prevents one holder from releasing another holder's
// claim after its own TTL expired.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// ClaimStore implements domain.ClaimStore using Redis SETNX with a TTL and a
// Lua-based conditional release. Claims guard one-time side effects, so a
// lost claim is reported as false, not an error.
type ClaimStore struct {
	rdb       *redis.Client
	releaseSc *redis.Script

	mu     sync.Mutex
	tokens map[string]string // key -> token for claims held by this process
}

// NewClaimStore creates a ClaimStore backed by the given Client.
func NewClaimStore(c *Client) *ClaimStore {
	return &ClaimStore{
		rdb:       c.Underlying(),
		releaseSc: redis.NewScript(releaseLua),
		tokens:    make(map[string]string),
	}
}

func claimKey(key string) string {
	return "claim:" + key
}

// Claim attempts to take key for ttl. It reports whether the caller won the
// claim. The TTL bounds how long a crashed holder can block later claimants.
func (cs *ClaimStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.New().String()

	ok, err := cs.rdb.SetNX(ctx, claimKey(key), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: claim %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	cs.mu.Lock()
	cs.tokens[key] = token
	cs.mu.Unlock()
	return true, nil
}

// Release frees a claim previously won by this process. Releasing a claim
// that was never held, or that has already expired, is a no-op.
func (cs *ClaimStore) Release(ctx context.Context, key string) error {
	cs.mu.Lock()
	token, ok := cs.tokens[key]
	delete(cs.tokens, key)
	cs.mu.Unlock()
	if !ok {
		return nil
	}

	if err := cs.releaseSc.Run(ctx, cs.rdb, []string{claimKey(key)}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis: release claim %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ClaimStore = (*ClaimStore)(nil)
