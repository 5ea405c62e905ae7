package financial

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("financial record not found")

const (
	KindRevenue = "revenue"
	KindExpense = "expense"

	StatusPending  = "pending"
	StatusPaid     = "paid"
	StatusCanceled = "canceled"
)

// Record maps to the financial_record table. AppointmentID links the
// revenue auto-created for an appointment.
type Record struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	Kind          string          `db:"kind" json:"kind"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Description   string          `db:"description" json:"description"`
	Category      *string         `db:"category" json:"category,omitempty"`
	Date          string          `db:"date" json:"date"`
	Status        string          `db:"status" json:"status"`
	AppointmentID *uuid.UUID      `db:"appointment_id" json:"appointment_id,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

func (r Record) RowID() string { return r.ID.String() }

func (r Record) RowUpdatedAt() time.Time { return r.UpdatedAt }

// ListFilter narrows List. Dates are inclusive YYYY-MM-DD bounds.
type ListFilter struct {
	Kind          string
	Status        string
	AppointmentID *uuid.UUID
	From          string
	To            string
}

func (f ListFilter) match(r *Record) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.AppointmentID != nil && (r.AppointmentID == nil || *r.AppointmentID != *f.AppointmentID) {
		return false
	}
	if f.From != "" && r.Date < f.From {
		return false
	}
	if f.To != "" && r.Date > f.To {
		return false
	}
	return true
}

// Summary totals the ledger over a date range.
type Summary struct {
	From           string          `json:"from,omitempty"`
	To             string          `json:"to,omitempty"`
	RevenuePaid    decimal.Decimal `json:"revenue_paid"`
	RevenuePending decimal.Decimal `json:"revenue_pending"`
	ExpensesPaid   decimal.Decimal `json:"expenses_paid"`
	ExpensesDue    decimal.Decimal `json:"expenses_pending"`
	Balance        decimal.Decimal `json:"balance"`
	Count          int             `json:"count"`
}

// Summarize folds records into a Summary. Canceled records do not count.
func Summarize(records []*Record) Summary {
	var s Summary
	for _, r := range records {
		if r.Status == StatusCanceled {
			continue
		}
		s.Count++
		switch {
		case r.Kind == KindRevenue && r.Status == StatusPaid:
			s.RevenuePaid = s.RevenuePaid.Add(r.Amount)
		case r.Kind == KindRevenue:
			s.RevenuePending = s.RevenuePending.Add(r.Amount)
		case r.Kind == KindExpense && r.Status == StatusPaid:
			s.ExpensesPaid = s.ExpensesPaid.Add(r.Amount)
		case r.Kind == KindExpense:
			s.ExpensesDue = s.ExpensesDue.Add(r.Amount)
		}
	}
	s.Balance = s.RevenuePaid.Sub(s.ExpensesPaid)
	return s
}
