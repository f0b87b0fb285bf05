package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentDateLayout is the ISO calendar-date format used for payment dates.
const PaymentDateLayout = "2006-01-02"

// Contribution represents a single recorded payment attributed to a member.
//
// RecordedYear is always derived from PaymentDate; it exists only so that
// year-scoped aggregation never has to parse dates at query time.
type Contribution struct {
	PaymentDate  string
	Period       string
	Amount       decimal.Decimal
	ID           int64
	MemberID     int64
	RecordedYear int
}

// ContributionInput carries the caller-supplied fields for recording a payment.
// Amount is an exact decimal string such as "15000.50".
type ContributionInput struct {
	PaymentDate string
	Period      string
	Amount      string
	MemberID    int64
}

// ContributionUpdate holds optional corrections to an existing contribution.
// Nil fields keep their current values.
type ContributionUpdate struct {
	PaymentDate *string
	Period      *string
	Amount      *string
}

// ContributionWithMember is a contribution joined with the member's full name.
type ContributionWithMember struct {
	Contribution
	MemberName string
}

// YearOfPaymentDate extracts the calendar year from an ISO payment date.
func YearOfPaymentDate(paymentDate string) (int, error) {
	d, err := time.Parse(PaymentDateLayout, paymentDate)
	if err != nil {
		return 0, err
	}
	return d.Year(), nil
}
