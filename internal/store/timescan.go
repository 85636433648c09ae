package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/achievements/internal/querysql"
)

var timeLayouts = []string{
	querysql.TimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
}

// timeScanner reads a timestamp column regardless of how the driver
// surfaces it. The SQLite driver returns time.Time for DATETIME columns
// it recognizes and text otherwise; pgx returns time.Time.
type timeScanner struct {
	dest  *time.Time
	valid *bool
}

func scanTime(dest *time.Time) sql.Scanner {
	return &timeScanner{dest: dest}
}

func scanNullTime(dest *time.Time, valid *bool) sql.Scanner {
	return &timeScanner{dest: dest, valid: valid}
}

func (ts *timeScanner) Scan(src any) error {
	if src == nil {
		if ts.valid == nil {
			return fmt.Errorf("scan time: unexpected NULL")
		}
		*ts.valid = false
		*ts.dest = time.Time{}
		return nil
	}
	t, err := parseTime(src)
	if err != nil {
		return err
	}
	*ts.dest = t
	if ts.valid != nil {
		*ts.valid = true
	}
	return nil
}

func parseTime(src any) (time.Time, error) {
	switch v := src.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		return parseTimeText(v)
	case []byte:
		return parseTimeText(string(v))
	}
	return time.Time{}, fmt.Errorf("scan time: unsupported type %T", src)
}

func parseTimeText(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("scan time: unrecognized format %q", s)
}
