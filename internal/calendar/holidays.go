package calendar

import "time"

// All helpers below take a date at midnight UTC (see DateOf).

func isNYSEHoliday(d time.Time) bool {
	y := d.Year()
	switch {
	case isNewYearsDay(d, false),
		y >= 1998 && isNthWeekday(d, time.January, time.Monday, 3), // Martin Luther King Jr. Day
		isNthWeekday(d, time.February, time.Monday, 3),             // Washington's Birthday
		isGoodFriday(d),
		isLastWeekday(d, time.May, time.Monday), // Memorial Day
		y >= 2022 && isObserved(d, time.June, 19),
		isObserved(d, time.July, 4),
		isNthWeekday(d, time.September, time.Monday, 1),  // Labor Day
		isNthWeekday(d, time.November, time.Thursday, 4), // Thanksgiving
		isObserved(d, time.December, 25):
		return true
	}
	return false
}

func isSettlementHoliday(d time.Time) bool {
	y := d.Year()
	switch {
	case isNewYearsDay(d, true),
		y >= 1983 && isNthWeekday(d, time.January, time.Monday, 3),
		isNthWeekday(d, time.February, time.Monday, 3),
		isLastWeekday(d, time.May, time.Monday),
		y >= 2022 && isObserved(d, time.June, 19),
		isObserved(d, time.July, 4),
		isNthWeekday(d, time.September, time.Monday, 1),
		isNthWeekday(d, time.October, time.Monday, 2), // Columbus Day
		isObserved(d, time.November, 11),              // Veterans Day
		isNthWeekday(d, time.November, time.Thursday, 4),
		isObserved(d, time.December, 25):
		return true
	}
	return false
}

// isNewYearsDay matches January 1st and its Monday observance. The NYSE
// does not close on Friday December 31st when January 1st is a Saturday;
// the settlement calendar does.
func isNewYearsDay(d time.Time, observeFriday bool) bool {
	_, m, day := d.Date()
	wd := d.Weekday()
	switch {
	case m == time.January && day == 1:
		return true
	case m == time.January && day == 2 && wd == time.Monday:
		return true
	case observeFriday && m == time.December && day == 31 && wd == time.Friday:
		return true
	}
	return false
}

// isObserved matches a fixed-date holiday, moved to Friday when it falls
// on Saturday and to Monday when it falls on Sunday.
func isObserved(d time.Time, month time.Month, day int) bool {
	h := time.Date(d.Year(), month, day, 0, 0, 0, 0, time.UTC)
	if d.Equal(h) {
		return true
	}
	switch h.Weekday() {
	case time.Saturday:
		h = h.AddDate(0, 0, -1)
	case time.Sunday:
		h = h.AddDate(0, 0, 1)
	}
	return d.Equal(h)
}

func isNthWeekday(d time.Time, month time.Month, wd time.Weekday, n int) bool {
	return d.Month() == month && d.Weekday() == wd && (d.Day()-1)/7 == n-1
}

func isLastWeekday(d time.Time, month time.Month, wd time.Weekday) bool {
	return d.Month() == month && d.Weekday() == wd && d.Day()+7 > daysInMonth(d.Year(), month)
}

func isGoodFriday(d time.Time) bool {
	return d.Equal(easterSunday(d.Year()).AddDate(0, 0, -2))
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// easterSunday uses the anonymous Gregorian algorithm.
func easterSunday(y int) time.Time {
	a := y % 19
	b := y / 100
	c := y % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(y, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
