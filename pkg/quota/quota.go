// Copyright (c) 2025 CarrierGate Inc. All Rights Reserved.
// This is licensed software from CarrierGate Inc, for limitations
// and restrictions contact your company contract manager.

package quota

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// State holds the persisted notification counters for one device/slot.
type State struct {
	Daily     int       `json:"daily"`
	Monthly   int       `json:"monthly"`
	LastReset time.Time `json:"lastReset"`
}

// Store tracks how many purchase notifications have been shown to the user,
// with daily and monthly windows. Counters persist across process restarts.
type Store interface {
	DailyCount(ctx context.Context) (int, error)
	MonthlyCount(ctx context.Context) (int, error)
	// Increment bumps both counters by one. Called after the purchase flow
	// reports that a notification was shown.
	Increment(ctx context.Context) error
	// ResetIfStale rolls the counters over when the stored last-reset date
	// is from an earlier day or month than today.
	ResetIfStale(ctx context.Context, today time.Time) error
}

// CheckDateReset checks if a date-based reset should occur and performs it if
// needed. A month or year change resets both counters; a day change resets
// only the daily counter. Returns true if a reset occurred.
func CheckDateReset(state *State, today time.Time) bool {
	if state.LastReset.IsZero() {
		state.LastReset = today
		return false
	}

	lastY, lastM, lastD := state.LastReset.Date()
	nowY, nowM, nowD := today.Date()

	switch {
	case lastY != nowY || lastM != nowM:
		logrus.Debugf("monthly quota reset: last reset %v", state.LastReset)
		state.Daily = 0
		state.Monthly = 0
		state.LastReset = today
		return true
	case lastD != nowD:
		logrus.Debugf("daily quota reset: last reset %v", state.LastReset)
		state.Daily = 0
		state.LastReset = today
		return true
	default:
		return false
	}
}
