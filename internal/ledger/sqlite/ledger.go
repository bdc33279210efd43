package sqlite

import (
	"context"
	"fmt"
	"time"

	gateway "github.com/aipipe/gateway/internal"
	"github.com/aipipe/gateway/internal/ledger"
)

const dateLayout = "2006-01-02"

func today() string { return time.Now().UTC().Format(dateLayout) }

// Add accrues delta to email's cost for today (UTC). The upsert is a
// single atomic statement, so concurrent Add calls for the same
// (email, date) compose correctly without an external transaction.
func (s *Store) Add(ctx context.Context, email string, delta float64) error {
	if delta < 0 {
		return fmt.Errorf("%w: add delta must be non-negative", gateway.ErrBadRequest)
	}
	_, err := s.write.ExecContext(ctx, `
		INSERT INTO cost (email, date, cost) VALUES (?, ?, ?)
		ON CONFLICT(email, date) DO UPDATE SET cost = cost + excluded.cost
	`, email, today(), delta)
	if err != nil {
		return fmt.Errorf("ledger add: %w", err)
	}
	return nil
}

// SetCost unconditionally overwrites the cost for (email, date).
func (s *Store) SetCost(ctx context.Context, email, date string, value float64) error {
	_, err := s.write.ExecContext(ctx, `
		INSERT INTO cost (email, date, cost) VALUES (?, ?, ?)
		ON CONFLICT(email, date) DO UPDATE SET cost = excluded.cost
	`, email, date, value)
	if err != nil {
		return fmt.Errorf("ledger set cost: %w", err)
	}
	return nil
}

// Sum returns the sum of cost over the trailing `days` UTC calendar
// days, inclusive of today.
func (s *Store) Sum(ctx context.Context, email string, days int) (float64, error) {
	since := windowStart(days)
	var sum float64
	err := s.read.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(cost), 0) FROM cost WHERE email = ? AND date >= ?
	`, email, since).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("ledger sum: %w", err)
	}
	return sum, nil
}

// UsageFor returns the per-day breakdown plus the total for email over
// the trailing `days` days, ordered by date ascending.
func (s *Store) UsageFor(ctx context.Context, email string, days int) (ledger.Usage, error) {
	since := windowStart(days)
	rows, err := s.read.QueryContext(ctx, `
		SELECT email, date, cost FROM cost WHERE email = ? AND date >= ? ORDER BY date ASC
	`, email, since)
	if err != nil {
		return ledger.Usage{}, fmt.Errorf("ledger usage: %w", err)
	}
	defer rows.Close()

	out := ledger.Usage{Email: email, Days: days}
	for rows.Next() {
		var row gateway.UsageRow
		if err := rows.Scan(&row.Email, &row.Date, &row.Cost); err != nil {
			return ledger.Usage{}, fmt.Errorf("ledger usage scan: %w", err)
		}
		out.Usage = append(out.Usage, row)
		out.Cost += row.Cost
	}
	if err := rows.Err(); err != nil {
		return ledger.Usage{}, fmt.Errorf("ledger usage rows: %w", err)
	}
	return out, nil
}

// AllUsage returns every row in the ledger.
func (s *Store) AllUsage(ctx context.Context) ([]gateway.UsageRow, error) {
	rows, err := s.read.QueryContext(ctx, `SELECT email, date, cost FROM cost ORDER BY email, date`)
	if err != nil {
		return nil, fmt.Errorf("ledger all usage: %w", err)
	}
	defer rows.Close()

	var out []gateway.UsageRow
	for rows.Next() {
		var row gateway.UsageRow
		if err := rows.Scan(&row.Email, &row.Date, &row.Cost); err != nil {
			return nil, fmt.Errorf("ledger all usage scan: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// windowStart returns the earliest UTC calendar date (inclusive) of a
// trailing `days`-day window ending today.
func windowStart(days int) string {
	if days < 1 {
		days = 1
	}
	return time.Now().UTC().AddDate(0, 0, -(days - 1)).Format(dateLayout)
}

var _ ledger.Ledger = (*Store)(nil)
