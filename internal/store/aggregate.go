package store

import (
	"context"
	"database/sql"
	"fmt"
)

// AggregateRow is one row returned by a compiled aggregate query.
// AchievementID is only set for batched (tagged) queries.
type AggregateRow struct {
	AchievementID int64
	Value         float64
	GroupKey      string
}

// QueryAggregate runs SQL produced by querysql.SQLCompiler. tagged selects
// the batch shape (achievement_id, value, group_key) over (value, group_key).
// The query must already be bound for this store's dialect.
func (s *Store) QueryAggregate(ctx context.Context, query string, args []any, tagged bool) ([]AggregateRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query aggregate: %w", err)
	}
	defer rows.Close()

	result := []AggregateRow{}
	for rows.Next() {
		var (
			row   AggregateRow
			value sql.NullFloat64
			key   sql.NullString
		)
		if tagged {
			err = rows.Scan(&row.AchievementID, &value, &key)
		} else {
			err = rows.Scan(&value, &key)
		}
		if err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		row.Value = value.Float64
		row.GroupKey = key.String
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate: %w", err)
	}
	return result, nil
}
