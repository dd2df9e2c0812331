// Package redisstore implements the checkout correlation store on Redis, for
// deployments where Begin and OnReturn may land on different instances.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/velora/checkout/internal/domain/checkout"
)

// CorrelationStore stores checkout correlation entries under a TTL. Entries
// are best-effort state: an expired or lost entry degrades to skipping the
// point award, so store errors are reported but never fatal to callers.
type CorrelationStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ checkout.CorrelationStore = (*CorrelationStore)(nil)

// New creates a CorrelationStore on the given Redis address.
func New(addr string, ttl time.Duration) *CorrelationStore {
	return &CorrelationStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

// Ping checks connectivity, for readiness probes.
func (s *CorrelationStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

type entryJSON struct {
	CartToken      string `json:"cart_token"`
	UserID         string `json:"user_id"`
	PointsDebited  int    `json:"points_debited"`
	CashbackPoints int    `json:"cashback_points"`
	FinalTotal     string `json:"final_total"`
}

func key(sessionID string) string {
	return fmt.Sprintf("checkout:attempt:%s", sessionID)
}

// Put stores the entry under the session id with the configured TTL.
func (s *CorrelationStore) Put(ctx context.Context, sessionID string, e checkout.Entry) error {
	payload, err := json.Marshal(entryJSON{
		CartToken:      e.CartToken,
		UserID:         e.UserID,
		PointsDebited:  e.PointsDebited,
		CashbackPoints: e.CashbackPoints,
		FinalTotal:     e.FinalTotal.String(),
	})
	if err != nil {
		return errors.Wrap(err, "marshal entry")
	}
	if err := s.client.Set(ctx, key(sessionID), payload, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "set entry")
	}
	return nil
}

// Take atomically returns and removes the entry for the session id.
func (s *CorrelationStore) Take(ctx context.Context, sessionID string) (checkout.Entry, bool, error) {
	payload, err := s.client.GetDel(ctx, key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return checkout.Entry{}, false, nil
	}
	if err != nil {
		return checkout.Entry{}, false, errors.Wrap(err, "get entry")
	}

	var ej entryJSON
	if err := json.Unmarshal([]byte(payload), &ej); err != nil {
		return checkout.Entry{}, false, errors.Wrap(err, "unmarshal entry")
	}
	total, err := decimal.NewFromString(ej.FinalTotal)
	if err != nil {
		return checkout.Entry{}, false, errors.Wrap(err, "parse final total")
	}
	return checkout.Entry{
		CartToken:      ej.CartToken,
		UserID:         ej.UserID,
		PointsDebited:  ej.PointsDebited,
		CashbackPoints: ej.CashbackPoints,
		FinalTotal:     total,
	}, true, nil
}
