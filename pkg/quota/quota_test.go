// Copyright (c) 2025 CarrierGate Inc. All Rights Reserved.
// This is licensed software from CarrierGate Inc, for limitations
// and restrictions contact your company contract manager.

package quota

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestCheckDateReset(t *testing.T) {
	tests := []struct {
		name            string
		state           *State
		today           time.Time
		expectReset     bool
		expectedDaily   int
		expectedMonthly int
	}{
		{
			name:            "no reset - same day",
			state:           &State{Daily: 2, Monthly: 5, LastReset: date(2025, time.March, 10)},
			today:           date(2025, time.March, 10),
			expectReset:     false,
			expectedDaily:   2,
			expectedMonthly: 5,
		},
		{
			name:            "daily reset - next day same month",
			state:           &State{Daily: 2, Monthly: 5, LastReset: date(2025, time.March, 10)},
			today:           date(2025, time.March, 11),
			expectReset:     true,
			expectedDaily:   0,
			expectedMonthly: 5,
		},
		{
			name:            "monthly reset - month change resets both",
			state:           &State{Daily: 2, Monthly: 5, LastReset: date(2025, time.March, 31)},
			today:           date(2025, time.April, 1),
			expectReset:     true,
			expectedDaily:   0,
			expectedMonthly: 0,
		},
		{
			name:            "monthly reset - year change resets both",
			state:           &State{Daily: 1, Monthly: 9, LastReset: date(2024, time.December, 31)},
			today:           date(2025, time.January, 1),
			expectReset:     true,
			expectedDaily:   0,
			expectedMonthly: 0,
		},
		{
			name:            "monthly reset - same day number in later month",
			state:           &State{Daily: 2, Monthly: 5, LastReset: date(2025, time.March, 10)},
			today:           date(2025, time.April, 10),
			expectReset:     true,
			expectedDaily:   0,
			expectedMonthly: 0,
		},
		{
			name:            "no reset - zero last reset initializes date only",
			state:           &State{Daily: 0, Monthly: 0},
			today:           date(2025, time.March, 10),
			expectReset:     false,
			expectedDaily:   0,
			expectedMonthly: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckDateReset(tt.state, tt.today)

			if result != tt.expectReset {
				t.Errorf("CheckDateReset() = %v, expected %v", result, tt.expectReset)
			}
			if tt.state.Daily != tt.expectedDaily {
				t.Errorf("Daily = %d, expected %d", tt.state.Daily, tt.expectedDaily)
			}
			if tt.state.Monthly != tt.expectedMonthly {
				t.Errorf("Monthly = %d, expected %d", tt.state.Monthly, tt.expectedMonthly)
			}
			if tt.state.LastReset.IsZero() {
				t.Error("LastReset should never remain zero after a check")
			}
		})
	}
}
