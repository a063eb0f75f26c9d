package volatility

import (
	"time"

	"github.com/contactkeval/option-vol/internal/calendar"
)

// SettlementDate takes the date portion of the trade time and advances it
// by days business days on cal. Weekends and holidays are skipped, not
// counted. It is a pure function; nothing is cached.
func SettlementDate(tradeTime time.Time, days int, cal calendar.ID) time.Time {
	return calendar.Advance(cal, calendar.DateOf(tradeTime), days)
}
