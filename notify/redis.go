package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/waypointcast/tourguide/pipeline"
)

// RedisSink publishes each committed Decision to a Redis pub/sub channel,
// using the same ping-on-connect, context-bounded connection construction
// as this pipeline's other stores, but used here as an
// outbound fan-out sink rather than a state store.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink connects to addr and verifies it with a Ping before
// returning.
func NewRedisSink(addr, password string, db int, channel string) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisSink{client: client, channel: channel}, nil
}

// Observe publishes the Decision as JSON. Publish failures are logged,
// not returned, since DecisionSink.Observe has no error channel. The
// publish is synchronous and bounded by a 2-second timeout, so a downed
// Redis instance delays each Collector flush by at most that long.
func (s *RedisSink) Observe(e pipeline.Entry) {
	data, err := json.Marshal(toMessage(e))
	if err != nil {
		log.Printf("notify: failed to marshal decision for %s: %v", e.Point.Key, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		log.Printf("notify: redis publish failed for %s: %v", e.Point.Key, err)
	}
}

// Close closes the underlying Redis client.
func (s *RedisSink) Close() error { return s.client.Close() }

var _ pipeline.DecisionSink = (*RedisSink)(nil)
