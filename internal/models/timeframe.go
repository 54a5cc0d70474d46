package models

import "strings"

// Timeframe is one of the six fixed bar windows the engine maintains.
// No other values are valid.
type Timeframe int

const (
	M1 Timeframe = iota
	M5
	M15
	H1
	H4
	D1
)

// AllTimeframes lists every timeframe in ascending duration order.
var AllTimeframes = []Timeframe{M1, M5, M15, H1, H4, D1}

// durationMs holds the exact millisecond duration per timeframe.
var durationMs = map[Timeframe]int64{
	M1:  60_000,
	M5:  300_000,
	M15: 900_000,
	H1:  3_600_000,
	H4:  14_400_000,
	D1:  86_400_000,
}

var timeframeNames = map[Timeframe]string{
	M1:  "M1",
	M5:  "M5",
	M15: "M15",
	H1:  "H1",
	H4:  "H4",
	D1:  "D1",
}

// topicNames maps a timeframe to its event-bus topic string.
var topicNames = map[Timeframe]string{
	M1:  "1M",
	M5:  "5M",
	M15: "15M",
	H1:  "1H",
	H4:  "4H",
	D1:  "D1",
}

// WildcardTopic subscribes to every timeframe's events.
const WildcardTopic = "*"

// DurationMs returns the exact millisecond window length for tf.
func (tf Timeframe) DurationMs() int64 {
	return durationMs[tf]
}

// String returns the canonical uppercase name (M1, M5, M15, H1, H4, D1).
func (tf Timeframe) String() string {
	if name, ok := timeframeNames[tf]; ok {
		return name
	}
	return "UNKNOWN"
}

// Topic returns the event-bus topic string for tf.
func (tf Timeframe) Topic() string {
	if topic, ok := topicNames[tf]; ok {
		return topic
	}
	return ""
}

// Valid reports whether tf is one of the six known timeframes.
func (tf Timeframe) Valid() bool {
	_, ok := durationMs[tf]
	return ok
}

// ParseTimeframe accepts the timeframe grammar case-insensitively;
// unknown tokens return an *UnknownTimeframeError.
func ParseTimeframe(token string) (Timeframe, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "1m", "m1":
		return M1, nil
	case "5m", "m5":
		return M5, nil
	case "15m", "m15":
		return M15, nil
	case "1h", "h1", "60m":
		return H1, nil
	case "4h", "h4", "240m":
		return H4, nil
	case "1d", "d1", "daily":
		return D1, nil
	default:
		return 0, &UnknownTimeframeError{Token: token}
	}
}

// BarStart returns the start-of-window timestamp (ms) containing t, using
// integer-division floor arithmetic: floor(t / duration) * duration.
// offsetMs shifts t before the modulo, for session-aware daily closes.
func (tf Timeframe) BarStart(tMs int64, offsetMs int64) int64 {
	d := tf.DurationMs()
	shifted := tMs - offsetMs
	start := floorDiv(shifted, d) * d
	return start + offsetMs
}

// BarEnd returns BarStart(t) + duration.
func (tf Timeframe) BarEnd(tMs int64, offsetMs int64) int64 {
	return tf.BarStart(tMs, offsetMs) + tf.DurationMs()
}

// IsBoundary reports whether t sits exactly on a bar boundary for tf.
func (tf Timeframe) IsBoundary(tMs int64, offsetMs int64) bool {
	return (tMs-offsetMs)%tf.DurationMs() == 0
}

// floorDiv performs floored (not truncated) integer division, matching the
// floor(t/duration) convention for both positive and negative inputs.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
