package repository

import (
	"fmt"
	"strings"
	"time"

	"flexboard/internal/model"
)

// scopeFilter is the WHERE clause and positional arguments selecting the
// completed ledger rows of a scope. The clause is assembled from constant
// fragments only; every caller-supplied value travels as an argument.
type scopeFilter struct {
	where string
	args  []any
}

// arg appends a value and returns its placeholder.
func (f *scopeFilter) arg(v any) string {
	f.args = append(f.args, v)
	return fmt.Sprintf("$%d", len(f.args))
}

// newScopeFilter builds the filter of scope as of the given instant.
// Monthly and Weekly restrict to the calendar month / ISO week containing asOf.
// A region restricts to users of that region.
func newScopeFilter(scope model.Scope, asOf time.Time) (*scopeFilter, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	f := &scopeFilter{}
	conds := []string{"t.status = " + f.arg(string(model.StatusCompleted))}

	if period, ok := model.CurrentPeriod(scope.Type, asOf); ok {
		conds = append(conds,
			"t.created_at >= "+f.arg(period.Start),
			"t.created_at < "+f.arg(period.Next),
		)
	}

	if scope.Region != "" {
		conds = append(conds, "u.region = "+f.arg(scope.Region))
	}

	f.where = strings.Join(conds, " AND ")
	return f, nil
}

// rankedCTE defines user_totals and ranked over the filtered ledger.
// Ties on points are broken by arrival order: earliest qualifying transaction
// time, then transaction id, then user id.
func (f *scopeFilter) rankedCTE() string {
	return `
		WITH user_totals AS (
			SELECT
				t.user_id,
				SUM(t.flex_points)::BIGINT AS total_flex_points,
				SUM(t.amount) AS total_spent,
				MIN(t.created_at) AS first_at,
				MIN(t.id) AS first_id
			FROM transactions t
			JOIN users u ON u.id = t.user_id
			WHERE ` + f.where + `
			GROUP BY t.user_id
		),
		ranked AS (
			SELECT
				ut.user_id,
				u.username,
				ut.total_flex_points,
				ut.total_spent,
				ROW_NUMBER() OVER (
					ORDER BY ut.total_flex_points DESC, ut.first_at ASC, ut.first_id ASC, ut.user_id ASC
				) AS rank
			FROM user_totals ut
			JOIN users u ON u.id = ut.user_id
		)`
}
