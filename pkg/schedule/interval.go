package schedule

import (
	"time"

	"report-scheduler/pkg/apis"
)

// NextReportTime returns the first occurrence of the schedule strictly after now.
func NextReportTime(s *apis.Schedule, now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)

	// Validate has already rejected bad clocks; fall back to midnight here.
	hour, minute, _ := apis.ParseClock(s.Time)
	today := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)

	switch s.Interval {
	case apis.IntervalWeekly, apis.IntervalFortnightly:
		offset := (s.Day - int(now.Weekday()) + 7) % 7
		next := today.AddDate(0, 0, offset)
		if !next.After(now) {
			next = next.AddDate(0, 0, 7)
		}
		return next

	case apis.IntervalMonthly:
		return nextMonthDay(now, s.Day, hour, minute, 1, loc)

	case apis.IntervalQuarterly:
		return nextMonthDay(now, s.Day, hour, minute, 3, loc)

	case apis.IntervalYearly:
		return nextMonthDay(now, s.Day, hour, minute, 12, loc)
	}

	if !today.After(now) {
		today = today.AddDate(0, 0, 1)
	}
	return today
}

// AdvanceReportTime is NextReportTime for a schedule that has just reported.
// Fortnightly schedules stay at least two weeks after their previous report time.
func AdvanceReportTime(s *apis.Schedule, now time.Time, loc *time.Location) time.Time {
	next := NextReportTime(s, now, loc)

	if s.Interval == apis.IntervalFortnightly && s.NextReportTime > 0 {
		earliest := time.Unix(s.NextReportTime, 0).In(next.Location()).AddDate(0, 0, 14)
		for next.Before(earliest) {
			next = next.AddDate(0, 0, 7)
		}
	}

	return next
}

func nextMonthDay(now time.Time, day, hour, minute, step int, loc *time.Location) time.Time {
	for months := 0; ; months += step {
		candidate := monthDay(now.Year(), now.Month()+time.Month(months), day, hour, minute, loc)
		if candidate.After(now) {
			return candidate
		}
	}
}

// monthDay builds the given day of a month, clamped to the month's last day.
func monthDay(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	lastDay := first.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	if day < 1 {
		day = 1
	}
	return time.Date(first.Year(), first.Month(), day, hour, minute, 0, 0, loc)
}
