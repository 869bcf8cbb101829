// Copyright (c) 2025 CarrierGate Inc. All Rights Reserved.
// This is licensed software from CarrierGate Inc, for limitations
// and restrictions contact your company contract manager.

//go:build integration
// +build integration

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/carriergate/slicepurchase/pkg/quota"
)

// This is a manual integration test for the Redis-backed notification quota.
// Run this with: go run test_redis_integration.go
// Requires: Redis running on localhost:6379

func main() {
	logrus.SetLevel(logrus.DebugLevel)
	logrus.Infof("Starting Redis integration test...")

	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}

	deviceID := fmt.Sprintf("test-device-%d", time.Now().Unix())
	logrus.Infof("Testing with device ID: %s", deviceID)

	store := quota.NewRedisStore(client, deviceID, 0)
	key := fmt.Sprintf("%s%s:0", quota.KeyPrefix, deviceID)
	defer client.Del(ctx, key)

	// Test 1: Fresh device reads as zero
	logrus.Infof("\n=== Test 1: Fresh device reads as zero ===")
	daily, err := store.DailyCount(ctx)
	if err != nil {
		logrus.Fatalf("DailyCount failed: %v", err)
	}
	monthly, err := store.MonthlyCount(ctx)
	if err != nil {
		logrus.Fatalf("MonthlyCount failed: %v", err)
	}
	if daily != 0 || monthly != 0 {
		logrus.Fatalf("expected zero counters, got daily=%d monthly=%d", daily, monthly)
	}
	logrus.Infof("fresh device counters are zero")

	// Test 2: Increment persists across store instances
	logrus.Infof("\n=== Test 2: Increment persists ===")
	for i := 0; i < 3; i++ {
		if err := store.Increment(ctx); err != nil {
			logrus.Fatalf("Increment failed: %v", err)
		}
	}
	reopened := quota.NewRedisStore(client, deviceID, 0)
	daily, err = reopened.DailyCount(ctx)
	if err != nil {
		logrus.Fatalf("DailyCount failed: %v", err)
	}
	if daily != 3 {
		logrus.Fatalf("expected daily=3 after restart, got %d", daily)
	}
	logrus.Infof("counters survive a new store instance: daily=%d", daily)

	// Test 3: Slot namespacing
	logrus.Infof("\n=== Test 3: Slot namespacing ===")
	otherSlot := quota.NewRedisStore(client, deviceID, 1)
	defer client.Del(ctx, fmt.Sprintf("%s%s:1", quota.KeyPrefix, deviceID))
	daily, err = otherSlot.DailyCount(ctx)
	if err != nil {
		logrus.Fatalf("DailyCount failed: %v", err)
	}
	if daily != 0 {
		logrus.Fatalf("slot 1 must not see slot 0 counters, got daily=%d", daily)
	}
	logrus.Infof("slots track quotas independently")

	// Test 4: Date-based reset
	logrus.Infof("\n=== Test 4: Date-based reset ===")
	if err := store.ResetIfStale(ctx, time.Now().Add(24*time.Hour)); err != nil {
		logrus.Fatalf("ResetIfStale failed: %v", err)
	}
	daily, err = store.DailyCount(ctx)
	if err != nil {
		logrus.Fatalf("DailyCount failed: %v", err)
	}
	monthly, err = store.MonthlyCount(ctx)
	if err != nil {
		logrus.Fatalf("MonthlyCount failed: %v", err)
	}
	if daily != 0 {
		logrus.Fatalf("daily counter should reset on a new day, got %d", daily)
	}
	logrus.Infof("daily reset applied: daily=%d monthly=%d", daily, monthly)

	logrus.Infof("\n==================================================")
	logrus.Infof("All Redis integration tests passed")
	logrus.Infof("==================================================")
}
