// Package session implements market-hours/holiday schedules, session
// boundary detection, and gap classification.
package session

import "time"

// MarketHours bundles a symbol's trading calendar.
type MarketHours struct {
	Symbol       string
	Location     *time.Location
	OpenTime     time.Duration // offset from midnight in Location
	CloseTime    time.Duration
	TradingDays  map[time.Weekday]bool
	SessionBreak *SessionBreak // e.g. CME 16:00-17:00 daily maintenance
}

// SessionBreak is a daily intra-session gap (e.g. futures maintenance window).
type SessionBreak struct {
	Start time.Duration
	End   time.Duration
}

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// America/New_York must be present in the tzdata the binary ships
		// with; fall back to UTC rather than panic so degraded environments
		// still run (bars just won't reflect the DST-aware close).
		return time.UTC
	}
	return loc
}

// ForexHours returns the standard 24/5 forex session: Sunday 17:00 ET open
// through Friday 17:00 ET close.
func ForexHours(symbol string) MarketHours {
	loc := mustLocation("America/New_York")
	return MarketHours{
		Symbol:    symbol,
		Location:  loc,
		OpenTime:  17 * time.Hour,
		CloseTime: 17 * time.Hour,
		TradingDays: map[time.Weekday]bool{
			time.Sunday: true, time.Monday: true, time.Tuesday: true,
			time.Wednesday: true, time.Thursday: true, time.Friday: true,
		},
	}
}

// StockMarketHours returns the standard US equity session: 9:30-16:00 ET,
// Monday-Friday.
func StockMarketHours(symbol string) MarketHours {
	loc := mustLocation("America/New_York")
	return MarketHours{
		Symbol:    symbol,
		Location:  loc,
		OpenTime:  9*time.Hour + 30*time.Minute,
		CloseTime: 16 * time.Hour,
		TradingDays: map[time.Weekday]bool{
			time.Monday: true, time.Tuesday: true, time.Wednesday: true,
			time.Thursday: true, time.Friday: true,
		},
	}
}

// FuturesHours returns a CME-style session with a 16:00-17:00 ET daily
// maintenance break.
func FuturesHours(symbol string) MarketHours {
	loc := mustLocation("America/New_York")
	return MarketHours{
		Symbol:    symbol,
		Location:  loc,
		OpenTime:  17 * time.Hour,
		CloseTime: 16 * time.Hour,
		TradingDays: map[time.Weekday]bool{
			time.Sunday: true, time.Monday: true, time.Tuesday: true,
			time.Wednesday: true, time.Thursday: true, time.Friday: true,
		},
		SessionBreak: &SessionBreak{Start: 16 * time.Hour, End: 17 * time.Hour},
	}
}

// MarketSchedule adds holiday and early-close overrides on top of
// MarketHours.
type MarketSchedule struct {
	Hours       MarketHours
	Holidays    map[string]bool          // "YYYY-MM-DD" in Hours.Location
	EarlyCloses map[string]time.Duration // "YYYY-MM-DD" -> close offset from midnight
}

// NewMarketSchedule wraps hours with empty holiday/early-close tables.
func NewMarketSchedule(hours MarketHours) *MarketSchedule {
	return &MarketSchedule{
		Hours:       hours,
		Holidays:    make(map[string]bool),
		EarlyCloses: make(map[string]time.Duration),
	}
}

// AddHoliday marks date (in the schedule's location) as a holiday.
func (s *MarketSchedule) AddHoliday(date time.Time) {
	s.Holidays[dateKey(date.In(s.Hours.Location))] = true
}

// IsHoliday reports whether date falls on a configured holiday.
func (s *MarketSchedule) IsHoliday(date time.Time) bool {
	return s.Holidays[dateKey(date.In(s.Hours.Location))]
}

// IsTradingDay reports whether date is both a configured trading weekday and
// not a holiday.
func (s *MarketSchedule) IsTradingDay(date time.Time) bool {
	local := date.In(s.Hours.Location)
	if !s.Hours.TradingDays[local.Weekday()] {
		return false
	}
	return !s.IsHoliday(local)
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
