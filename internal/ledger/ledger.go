// Package ledger defines the Cost Ledger contract: a single-writer,
// per-(email,date) cumulative-cost accumulator.
package ledger

import (
	"context"

	gateway "github.com/aipipe/gateway/internal"
)

// Usage is the response to a self- or admin-usage query for one email
// over a window of days.
type Usage struct {
	Email string             `json:"email"`
	Days  int                `json:"days"`
	Cost  float64            `json:"cost"`
	Usage []gateway.UsageRow `json:"usage"`
}

// Ledger is the cost-ledger storage contract.
type Ledger interface {
	// Add accrues a non-negative delta to email's cost for today (UTC).
	// Created lazily on first Add for a given (email, date).
	Add(ctx context.Context, email string, delta float64) error

	// SetCost unconditionally overwrites the cost for (email, date).
	SetCost(ctx context.Context, email, date string, value float64) error

	// Sum returns the sum of cost over the trailing `days` UTC calendar
	// days (inclusive of today).
	Sum(ctx context.Context, email string, days int) (float64, error)

	// UsageFor returns the per-day breakdown plus the total sum for
	// email over the trailing `days` days, ordered by date ascending.
	UsageFor(ctx context.Context, email string, days int) (Usage, error)

	// AllUsage returns every row in the ledger (admin full scan).
	AllUsage(ctx context.Context) ([]gateway.UsageRow, error)
}
