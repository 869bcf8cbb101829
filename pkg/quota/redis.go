// Copyright (c) 2025 CarrierGate Inc. All Rights Reserved.
// This is licensed software from CarrierGate Inc, for limitations
// and restrictions contact your company contract manager.

package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	// KeyPrefix is the prefix for all notification quota keys.
	KeyPrefix = "slicepurchase:notification_quota:"
)

// RedisStore persists notification quota counters in Redis, namespaced by
// device and slot so multi-SIM devices track quotas independently.
type RedisStore struct {
	client   redis.UniversalClient
	deviceID string
	slot     int
}

// NewRedisStore creates a Redis-backed quota store for one device slot.
func NewRedisStore(client redis.UniversalClient, deviceID string, slot int) *RedisStore {
	return &RedisStore{
		client:   client,
		deviceID: deviceID,
		slot:     slot,
	}
}

func (s *RedisStore) key() string {
	return fmt.Sprintf("%s%s:%d", KeyPrefix, s.deviceID, s.slot)
}

// load retrieves the stored state, returning a zero state when none exists.
func (s *RedisStore) load(ctx context.Context) (*State, error) {
	data, err := s.client.Get(ctx, s.key()).Result()
	if err == redis.Nil {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quota state: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quota state: %w", err)
	}
	return &state, nil
}

func (s *RedisStore) save(ctx context.Context, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal quota state: %w", err)
	}
	// No TTL: counters must survive until the next date-based reset.
	if err := s.client.Set(ctx, s.key(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set quota state: %w", err)
	}
	return nil
}

// DailyCount returns the number of notifications shown today.
func (s *RedisStore) DailyCount(ctx context.Context) (int, error) {
	state, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	return state.Daily, nil
}

// MonthlyCount returns the number of notifications shown this month.
func (s *RedisStore) MonthlyCount(ctx context.Context) (int, error) {
	state, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	return state.Monthly, nil
}

// Increment bumps both counters by one.
func (s *RedisStore) Increment(ctx context.Context) error {
	state, err := s.load(ctx)
	if err != nil {
		return err
	}

	state.Daily++
	state.Monthly++
	if state.LastReset.IsZero() {
		state.LastReset = time.Now()
	}

	if err := s.save(ctx, state); err != nil {
		return err
	}

	logrus.Debugf("notification quota incremented for %s slot %d: daily=%d monthly=%d",
		s.deviceID, s.slot, state.Daily, state.Monthly)
	return nil
}

// ResetIfStale applies the date-based reset when needed.
func (s *RedisStore) ResetIfStale(ctx context.Context, today time.Time) error {
	state, err := s.load(ctx)
	if err != nil {
		return err
	}

	if !CheckDateReset(state, today) {
		return nil
	}
	return s.save(ctx, state)
}
