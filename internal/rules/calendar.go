package rules

import (
	"fmt"
	"strconv"
	"time"
)

// All calendar arithmetic is done in UTC. Weeks are ISO 8601: they start
// on Monday and belong to the ISO week-year.

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfWeek(t time.Time) time.Time {
	day := truncateDay(t)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// bucketBounds returns the first and last millisecond of the calendar unit
// containing t.
func bucketBounds(t time.Time, unit string) (time.Time, time.Time) {
	var start, next time.Time
	switch unit {
	case "week":
		start = startOfWeek(t)
		next = start.AddDate(0, 0, 7)
	case "month":
		start = startOfMonth(t)
		next = start.AddDate(0, 1, 0)
	default:
		start = truncateDay(t)
		next = start.AddDate(0, 0, 1)
	}
	return start, next.Add(-time.Millisecond)
}

// DayKey renders the day of month as the aggregation key: "1".."31".
func DayKey(t time.Time) string {
	return strconv.Itoa(t.UTC().Day())
}

// DateKey renders a calendar date key: "2006-01-02".
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// WeekKey renders an ISO week key: "2024-01".
func WeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-%02d", year, week)
}

// MonthKey renders a month key: "2024-01".
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// walkDays visits every calendar date from date(from) to date(to)
// inclusive, one day at a time.
func walkDays(from, to time.Time, visit func(day time.Time)) {
	last := truncateDay(to)
	for day := truncateDay(from); !day.After(last); day = day.AddDate(0, 0, 1) {
		visit(day)
	}
}

// keySet collects keys produced by a walk, keeping first-seen order.
type keySet struct {
	order []string
	seen  map[string]bool
}

func newKeySet() *keySet {
	return &keySet{seen: make(map[string]bool)}
}

func (s *keySet) add(key string) {
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.order = append(s.order, key)
}

// keysBetween walks [from, to] and returns the distinct keys produced by render.
func keysBetween(from, to time.Time, render func(time.Time) string) *keySet {
	keys := newKeySet()
	walkDays(from, to, func(day time.Time) {
		keys.add(render(day))
	})
	return keys
}
