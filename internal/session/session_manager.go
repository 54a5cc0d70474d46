package session

import (
	"time"

	"github.com/ashgroveq/mtfengine/internal/models"
)

// SessionManager answers "is t a session boundary for timeframe tf",
// daily-close-aware rather than premarket/market/postmarket session
// labels.
type SessionManager struct {
	Schedule   *MarketSchedule
	DailyClose time.Duration // default 17:00 ET
}

// NewSessionManager builds a manager over the given schedule; DailyClose
// defaults to the schedule's configured close time.
func NewSessionManager(schedule *MarketSchedule) *SessionManager {
	return &SessionManager{
		Schedule:   schedule,
		DailyClose: schedule.Hours.CloseTime,
	}
}

// IsSessionBoundary applies the per-timeframe boundary rules:
//   - D1: time(t) == configured daily close
//   - H4: hour(t) % 4 == 0 && minute == 0 && second == 0
//   - H1/M15/M5/M1: zero seconds, and zero minutes-mod-N for N in {15,5,1}
func (sm *SessionManager) IsSessionBoundary(tf models.Timeframe, tMs int64) bool {
	t := time.UnixMilli(tMs).In(sm.Schedule.Hours.Location)
	if t.Second() != 0 || t.Nanosecond() != 0 {
		return false
	}
	switch tf {
	case models.D1:
		clock := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
		return clock == sm.DailyClose
	case models.H4:
		return t.Hour()%4 == 0 && t.Minute() == 0
	case models.H1:
		return t.Minute() == 0
	case models.M15:
		return t.Minute()%15 == 0
	case models.M5:
		return t.Minute()%5 == 0
	case models.M1:
		return true
	default:
		return false
	}
}

// DailyCloseOffsetMs converts DailyClose into the millisecond offset used by
// Timeframe.BarStart/BarEnd for D1 session-aware alignment.
// Only meaningful when the schedule's location is UTC-equivalent for the
// purposes of bar arithmetic; non-UTC schedules should pre-convert tick
// timestamps or accept approximate alignment, documented as a limitation.
func (sm *SessionManager) DailyCloseOffsetMs() int64 {
	return int64(sm.DailyClose / time.Millisecond)
}
