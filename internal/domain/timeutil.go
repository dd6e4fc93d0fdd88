package domain

import "time"

// All market timing runs on Unix-millisecond integers. The audience is global
// and the values cross a JSON boundary constantly; integer math avoids every
// timezone and serialization pitfall structured datetimes carry.

// Now returns the current Unix time in milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// SecondsToMs converts whole seconds to milliseconds.
func SecondsToMs(s int64) int64 {
	return s * 1000
}

// MinutesToMs converts whole minutes to milliseconds.
func MinutesToMs(m int64) int64 {
	return m * 60 * 1000
}

// AddDuration returns start shifted by d milliseconds.
func AddDuration(start, d int64) int64 {
	return start + d
}

// IsMarketActive reports whether the current time lies inside the betting
// window. Both bounds are inclusive: a market is active at the exact opening
// and closing instants.
func IsMarketActive(startTime, estEndTime int64) bool {
	now := Now()
	return now >= startTime && now <= estEndTime
}

// Remaining describes the time left until a target instant, broken into
// display components. Total is clamped at zero; IsExpired is true exactly
// when Total is zero.
type Remaining struct {
	Total     int64 `json:"total"` // milliseconds
	Days      int64 `json:"days"`
	Hours     int64 `json:"hours"`
	Minutes   int64 `json:"minutes"`
	Seconds   int64 `json:"seconds"`
	IsExpired bool  `json:"isExpired"`
}

// TimeRemaining computes the countdown to target (Unix ms).
func TimeRemaining(target int64) Remaining {
	total := target - Now()
	if total <= 0 {
		return Remaining{IsExpired: true}
	}
	return Remaining{
		Total:   total,
		Days:    total / (24 * 60 * 60 * 1000),
		Hours:   (total / (60 * 60 * 1000)) % 24,
		Minutes: (total / (60 * 1000)) % 60,
		Seconds: (total / 1000) % 60,
	}
}
