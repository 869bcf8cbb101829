// Copyright (c) 2025 CarrierGate Inc. All Rights Reserved.
// This is licensed software from CarrierGate Inc, for limitations
// and restrictions contact your company contract manager.

package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func TestRedisStore_EmptyState(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewRedisStore(client, "device-abc", 0)

	daily, err := store.DailyCount(ctx)
	if err != nil {
		t.Fatalf("DailyCount() error = %v", err)
	}
	if daily != 0 {
		t.Errorf("DailyCount() = %d, expected 0", daily)
	}

	monthly, err := store.MonthlyCount(ctx)
	if err != nil {
		t.Fatalf("MonthlyCount() error = %v", err)
	}
	if monthly != 0 {
		t.Errorf("MonthlyCount() = %d, expected 0", monthly)
	}
}

func TestRedisStore_IncrementPersists(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewRedisStore(client, "device-abc", 0)

	for i := 0; i < 3; i++ {
		if err := store.Increment(ctx); err != nil {
			t.Fatalf("Increment() error = %v", err)
		}
	}

	// A fresh store instance must observe the persisted counters.
	store2 := NewRedisStore(client, "device-abc", 0)
	daily, err := store2.DailyCount(ctx)
	if err != nil {
		t.Fatalf("DailyCount() error = %v", err)
	}
	if daily != 3 {
		t.Errorf("DailyCount() = %d, expected 3", daily)
	}
	monthly, err := store2.MonthlyCount(ctx)
	if err != nil {
		t.Fatalf("MonthlyCount() error = %v", err)
	}
	if monthly != 3 {
		t.Errorf("MonthlyCount() = %d, expected 3", monthly)
	}
}

func TestRedisStore_SlotNamespacing(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	slot0 := NewRedisStore(client, "device-abc", 0)
	slot1 := NewRedisStore(client, "device-abc", 1)

	if err := slot0.Increment(ctx); err != nil {
		t.Fatalf("Increment() error = %v", err)
	}

	daily, err := slot1.DailyCount(ctx)
	if err != nil {
		t.Fatalf("DailyCount() error = %v", err)
	}
	if daily != 0 {
		t.Errorf("slot 1 DailyCount() = %d, expected 0", daily)
	}
}

func TestRedisStore_ResetIfStale(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewRedisStore(client, "device-abc", 0)

	if err := store.Increment(ctx); err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if err := store.Increment(ctx); err != nil {
		t.Fatalf("Increment() error = %v", err)
	}

	// Next day: daily resets, monthly survives.
	tomorrow := time.Now().Add(24 * time.Hour)
	if err := store.ResetIfStale(ctx, tomorrow); err != nil {
		t.Fatalf("ResetIfStale() error = %v", err)
	}

	daily, _ := store.DailyCount(ctx)
	monthly, _ := store.MonthlyCount(ctx)
	if daily != 0 {
		t.Errorf("DailyCount() after daily reset = %d, expected 0", daily)
	}
	if monthly != 2 && monthly != 0 {
		// A month boundary crossed by the 24h jump also clears monthly.
		t.Errorf("MonthlyCount() after reset = %d, expected 2 or 0", monthly)
	}
}
