package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agrikonek/internal/domain"
)

const (
	stateInFlight  = "in_flight"
	stateCompleted = "completed"
)

// Replay a completed response stored under an idempotency key
type Replay struct {
	State  string          `json:"state"`
	Status int             `json:"status,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// Idempotency guards mutating requests keyed by (scope, Idempotency-Key).
// The first caller claims the key with SETNX; duplicates either wait out the TTL
// (ErrDuplicateRequest while in flight) or receive the stored response.
type Idempotency struct {
	kv     KV
	ttl    time.Duration
	prefix string
}

func NewIdempotency(kv KV, ttl time.Duration) *Idempotency {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Idempotency{kv: kv, ttl: ttl, prefix: "agrikonek:idem:"}
}

func (i *Idempotency) key(scope, key string) string {
	return i.prefix + scope + ":" + key
}

// Begin claims the key. A nil Replay with nil error means the caller owns the request.
func (i *Idempotency) Begin(ctx context.Context, scope, key string) (*Replay, error) {
	b, _ := json.Marshal(Replay{State: stateInFlight})
	ok, err := i.kv.SetNX(ctx, i.key(scope, key), string(b), i.ttl)
	if err != nil {
		return nil, fmt.Errorf("idempotency claim: %w: %v", domain.ErrUnavailable, err)
	}
	if ok {
		return nil, nil
	}

	raw, err := i.kv.Get(ctx, i.key(scope, key))
	if errors.Is(err, ErrMiss) {
		// expired between SETNX and GET; treat as a fresh claim attempt
		return i.Begin(ctx, scope, key)
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w: %v", domain.ErrUnavailable, err)
	}
	var r Replay
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("idempotency record: %w", err)
	}
	if r.State != stateCompleted {
		return nil, fmt.Errorf("request %q still in flight: %w", key, domain.ErrDuplicateRequest)
	}
	return &r, nil
}

// Complete stores the response so later duplicates replay it
func (i *Idempotency) Complete(ctx context.Context, scope, key string, status int, body []byte) error {
	b, err := json.Marshal(Replay{State: stateCompleted, Status: status, Body: json.RawMessage(body)})
	if err != nil {
		return err
	}
	return i.kv.Set(ctx, i.key(scope, key), string(b), i.ttl)
}

// Abort releases the key so the client may retry after a failure
func (i *Idempotency) Abort(ctx context.Context, scope, key string) error {
	return i.kv.Delete(ctx, i.key(scope, key))
}
