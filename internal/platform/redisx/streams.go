package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// StreamPublisher appends JSON records to one Redis stream, trimmed to MaxLen
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(client *redis.Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

// Stream returns the target stream name
func (p *StreamPublisher) Stream() string { return p.stream }

// PublishJSON serialises data into the "data" field of a new entry
func (p *StreamPublisher) PublishJSON(ctx context.Context, kind string, data any) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stream payload: %w", err)
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"kind":      kind,
			"data":      string(b),
			"timestamp": strconv.FormatInt(time.Now().Unix(), 10),
		},
	}).Result()
}
