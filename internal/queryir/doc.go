// Package queryir describes workout aggregations independently of any SQL
// dialect.
//
// The rules package builds an Aggregate for each achievement definition and
// querysql compiles it to parameterized SQL for SQLite or Postgres:
//
//	[rules.Compile] → [queryir.Aggregate] → [querysql: sqlite3 | pgx]
//
// An Aggregate is a single-table query over workouts:
//
//	SELECT <value>, <group key> FROM workouts WHERE <filters> GROUP BY <group key>
//
// SEALED INTERFACES:
//
// Predicate, Value and Key are sealed with marker methods so backends can
// switch over them exhaustively. Literal values use ir.IRValue (no floats);
// time bounds carry a time.Time and are bound as UTC parameters.
//
// Calendar keys (DayOfMonth, CalendarDate, YearWeek, YearMonth) are always
// computed in UTC and weeks follow ISO 8601. Backends must render the keys
// exactly as documented on each type, because rules compares them against
// keys generated in Go.
package queryir
