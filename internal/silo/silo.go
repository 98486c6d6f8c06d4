// Package silo implements the status-publication adapter (component H): a
// Redis-backed sink that chains write their state transitions and final
// results to under a TTL-bounded hash key, so external viewers can poll
// chain progress without holding a reference to the running process.
//
// Grounded on the original source's silos.py (BaseSilo connection-pool
// shape) and chains/base.py's results_to_silo/update_status (hset + expire
// against a per-chain "task:<parent>:<id>" key).
package silo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudchain/taskengine/internal/logging"
	"github.com/redis/go-redis/v9"
)

// TTL is the expiration set on every status/result write, per spec.md §4.H.
const TTL = 3600 * time.Second

// Adapter publishes chain status and result records to a Redis hash,
// satisfying internal/chain.StatusPublisher. A single Adapter's client is a
// shared connection pool safe for concurrent use by many chains, mirroring
// the original source's silo-per-engine connection pool.
type Adapter struct {
	client *redis.Client
}

// New wraps an already-configured Redis client. The client itself is built
// from a silo-catalog entry (internal/config), keeping connection-pool
// parameters (host, port, credentials, database) out of this package.
func New(client *redis.Client) *Adapter {
	return &Adapter{client: client}
}

// PublishStatus writes record (the chain's Snapshot(), e.g. id/parent/name/
// type/status/agent/position/total/start/end) to the record's key and
// resets its TTL, mirroring update_status.
func (a *Adapter) PublishStatus(ctx context.Context, record map[string]any) error {
	return a.publish(ctx, record)
}

// PublishResult writes result (the chain's final data/errors/meta/metrics/
// template, plus id/parent for keying) to the same key used for status,
// mirroring results_to_silo: both writes land in one hash per chain run.
func (a *Adapter) PublishResult(ctx context.Context, result map[string]any) error {
	return a.publish(ctx, result)
}

func (a *Adapter) publish(ctx context.Context, fields map[string]any) error {
	key := redisName(fields)

	if err := a.client.HSet(ctx, key, formatHSet(fields)).Err(); err != nil {
		return fmt.Errorf("silo: hset %s: %w", key, err)
	}

	// The original source expires self.id rather than self.redis_name in
	// results_to_silo, which sets a TTL on a key nothing ever wrote to and
	// so silently does nothing; here the TTL always targets the key that
	// was just written.
	if err := a.client.Expire(ctx, key, TTL).Err(); err != nil {
		return fmt.Errorf("silo: expire %s: %w", key, err)
	}

	return nil
}

// redisName builds the original source's "task:<parent>:<id>" key from the
// id/parent fields every record/result map carries.
func redisName(fields map[string]any) string {
	return fmt.Sprintf("task:%v:%v", orEmpty(fields["parent"]), orEmpty(fields["id"]))
}

func orEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}

// formatHSet converts every non-scalar value to a compact JSON string (or,
// failing that, its fmt string form) so the whole mapping can be written
// through HSET's flat field API, mirroring format_hset's
// `json.dumps(value, default=str)`. Scalars (string, numeric, bool) pass
// through unchanged; nil becomes "".
func formatHSet(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch v.(type) {
		case nil:
			out[k] = ""
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			out[k] = v
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				logging.Get().Error("silo: failed to format value for hset", "key", k, "error", err)
				out[k] = fmt.Sprintf("%v", v)
				continue
			}
			out[k] = string(encoded)
		}
	}
	return out
}
