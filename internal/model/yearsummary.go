package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// YearSummary is the aggregate total of contributions for a single year.
//
// A nil ClosedAt means the year is open: Total is a live computation over the
// ledger. A non-nil ClosedAt means the year is closed and Total is the frozen
// snapshot taken at closing time.
type YearSummary struct {
	ClosedAt *time.Time
	Note     string
	Total    decimal.Decimal
	Year     int
}

// Closed reports whether the year has been closed.
func (s *YearSummary) Closed() bool {
	return s.ClosedAt != nil
}
