package querysql

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect selects the SQL flavour. Values match database/sql driver names.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "pgx"
)

// TimeLayout is how timestamps are stored in SQLite. It is fixed width so
// text comparison orders the same way as time.
const TimeLayout = "2006-01-02 15:04:05.000"

// ParseDialect maps a driver name to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch Dialect(driver) {
	case SQLite, Postgres:
		return Dialect(driver), nil
	case "sqlite", "":
		return SQLite, nil
	case "postgres", "postgresql":
		return Postgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// Rebind rewrites ? placeholders to $1..$n for Postgres. Placeholders inside
// single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d != Postgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			quoted = !quoted
			b.WriteByte(ch)
		case ch == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// TimeParam converts t into the parameter form the dialect stores.
func (d Dialect) TimeParam(t time.Time) any {
	if d == Postgres {
		return t.UTC()
	}
	return t.UTC().Format(TimeLayout)
}

func (d Dialect) realType() string {
	if d == Postgres {
		return "DOUBLE PRECISION"
	}
	return "REAL"
}

func (d Dialect) intType() string {
	if d == Postgres {
		return "BIGINT"
	}
	return "INTEGER"
}

// utc renders a timestamp column as a UTC wall-clock value.
func (d Dialect) utc(column string) string {
	if d == Postgres {
		return fmt.Sprintf("(%s AT TIME ZONE 'UTC')", column)
	}
	return column
}

func (d Dialect) formatTime(column, sqlitePattern, pgPattern string) string {
	if d == Postgres {
		return fmt.Sprintf("to_char(%s, '%s')", d.utc(column), pgPattern)
	}
	return fmt.Sprintf("strftime('%s', %s)", sqlitePattern, column)
}
