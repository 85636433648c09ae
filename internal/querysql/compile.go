package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/achievements/internal/ir"
	"github.com/roach88/achievements/internal/queryir"
)

// Result columns produced by every compiled aggregate.
const (
	ColumnAchievementID = "achievement_id"
	ColumnValue         = "value"
	ColumnGroupKey      = "group_key"
)

// SQLCompiler compiles aggregates to parameterized SQL.
//
// CRITICAL: every statement ends with ORDER BY so row order is deterministic.
// CRITICAL: literal values are always parameters, never interpolated.
type SQLCompiler struct {
	Dialect Dialect
}

// NewSQLCompiler creates a compiler for the given dialect.
func NewSQLCompiler(d Dialect) *SQLCompiler {
	return &SQLCompiler{Dialect: d}
}

// Tagged pairs an aggregate with the achievement id it is evaluated for.
type Tagged struct {
	Tag       int64
	Aggregate queryir.Aggregate
}

// Compile converts one aggregate to SQL returning (value, group_key) rows.
func (c *SQLCompiler) Compile(agg queryir.Aggregate) (string, []any, error) {
	sql, params, err := c.compileBranch(agg, nil)
	if err != nil {
		return "", nil, err
	}
	sql += " ORDER BY " + ColumnGroupKey
	return c.Dialect.Rebind(sql), params, nil
}

// CompileBatch unions several aggregates into one statement returning
// (achievement_id, value, group_key) rows. Each branch is tagged with its
// achievement id so the caller can partition the result.
func (c *SQLCompiler) CompileBatch(batch []Tagged) (string, []any, error) {
	if len(batch) == 0 {
		return "", nil, fmt.Errorf("cannot compile empty batch")
	}
	parts := make([]string, 0, len(batch))
	var params []any
	for _, item := range batch {
		tag := item.Tag
		sql, branchParams, err := c.compileBranch(item.Aggregate, &tag)
		if err != nil {
			return "", nil, fmt.Errorf("achievement %d: %w", item.Tag, err)
		}
		parts = append(parts, sql)
		params = append(params, branchParams...)
	}
	sql := strings.Join(parts, " UNION ALL ") +
		" ORDER BY " + ColumnAchievementID + ", " + ColumnGroupKey
	return c.Dialect.Rebind(sql), params, nil
}

// compileBranch builds one SELECT with ? placeholders. A non-nil tag adds
// the achievement_id column as the first parameter.
func (c *SQLCompiler) compileBranch(agg queryir.Aggregate, tag *int64) (string, []any, error) {
	if err := queryir.Validate(agg).Err(); err != nil {
		return "", nil, err
	}

	var params []any
	var columns []string
	if tag != nil {
		columns = append(columns, fmt.Sprintf("CAST(? AS %s) AS %s", c.Dialect.intType(), ColumnAchievementID))
		params = append(params, *tag)
	}

	valueSQL, err := c.compileValue(agg.Value)
	if err != nil {
		return "", nil, fmt.Errorf("compile value: %w", err)
	}
	columns = append(columns, valueSQL+" AS "+ColumnValue)

	keySQL := "CAST('' AS TEXT)"
	if agg.GroupBy != nil {
		keySQL, err = c.compileKey(agg.GroupBy)
		if err != nil {
			return "", nil, fmt.Errorf("compile group key: %w", err)
		}
	}
	columns = append(columns, keySQL+" AS "+ColumnGroupKey)

	whereSQL, whereParams, err := c.compilePredicate(queryir.And{Predicates: agg.Filters})
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	params = append(params, whereParams...)

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(columns, ", "),
		queryir.Table,
		whereSQL)
	if agg.GroupBy != nil {
		sql += " GROUP BY " + keySQL
	}
	return sql, params, nil
}

// compileValue renders the aggregated expression. Sums coalesce to 0 so an
// empty match compares as zero, never NULL.
func (c *SQLCompiler) compileValue(v queryir.Value) (string, error) {
	var expr string
	switch val := v.(type) {
	case queryir.Zero:
		expr = "0"
	case queryir.Count:
		expr = "COUNT(*)"
	case queryir.Sum:
		expr = fmt.Sprintf("COALESCE(SUM(%s), 0)", val.Field)
		if val.Multiplier > 1 {
			expr = fmt.Sprintf("%s * %d", expr, val.Multiplier)
		}
		if val.Divisor > 1 {
			expr = fmt.Sprintf("%s / %d.0", expr, val.Divisor)
		}
	default:
		return "", fmt.Errorf("unsupported value type: %T", v)
	}
	return fmt.Sprintf("CAST(%s AS %s)", expr, c.Dialect.realType()), nil
}

// compileKey renders a group key as text in the format documented on each
// queryir key type.
func (c *SQLCompiler) compileKey(k queryir.Key) (string, error) {
	d := c.Dialect
	switch key := k.(type) {
	case queryir.FieldKey:
		return fmt.Sprintf("CAST(%s AS TEXT)", key.Field), nil
	case queryir.DayOfMonth:
		if d == Postgres {
			return fmt.Sprintf("CAST(CAST(EXTRACT(DAY FROM %s) AS INTEGER) AS TEXT)", d.utc(string(key.Field))), nil
		}
		return fmt.Sprintf("CAST(CAST(strftime('%%d', %s) AS INTEGER) AS TEXT)", key.Field), nil
	case queryir.CalendarDate:
		return d.formatTime(string(key.Field), "%Y-%m-%d", "YYYY-MM-DD"), nil
	case queryir.YearWeek:
		return d.formatTime(string(key.Field), "%G-%V", "IYYY-IW"), nil
	case queryir.YearMonth:
		return d.formatTime(string(key.Field), "%Y-%m", "YYYY-MM"), nil
	default:
		return "", fmt.Errorf("unsupported key type: %T", k)
	}
}

// compilePredicate renders a predicate with ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		param, err := irValueToParam(pred.Value)
		if err != nil {
			return "", nil, fmt.Errorf("field %s: %w", pred.Field, err)
		}
		return fmt.Sprintf("%s = ?", pred.Field), []any{param}, nil
	case queryir.In:
		if len(pred.Values) == 0 {
			return "1 = 0", nil, nil
		}
		params := make([]any, len(pred.Values))
		marks := make([]string, len(pred.Values))
		for i, v := range pred.Values {
			param, err := irValueToParam(v)
			if err != nil {
				return "", nil, fmt.Errorf("field %s: %w", pred.Field, err)
			}
			params[i] = param
			marks[i] = "?"
		}
		return fmt.Sprintf("%s IN (%s)", pred.Field, strings.Join(marks, ", ")), params, nil
	case queryir.AtOrAfter:
		return fmt.Sprintf("%s >= ?", pred.Field), []any{c.Dialect.TimeParam(pred.Time)}, nil
	case queryir.AtOrBefore:
		return fmt.Sprintf("%s <= ?", pred.Field), []any{c.Dialect.TimeParam(pred.Time)}, nil
	case queryir.And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		parts := make([]string, 0, len(pred.Predicates))
		var params []any
		for _, sub := range pred.Predicates {
			sql, subParams, err := c.compilePredicate(sub)
			if err != nil {
				return "", nil, err
			}
			if _, nested := sub.(queryir.And); nested && len(pred.Predicates) > 1 {
				sql = "(" + sql + ")"
			}
			parts = append(parts, sql)
			params = append(params, subParams...)
		}
		return strings.Join(parts, " AND "), params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// irValueToParam converts a literal to a driver parameter.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("unsupported literal type for SQL parameter: %T", v)
	}
}
