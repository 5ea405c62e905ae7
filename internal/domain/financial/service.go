package financial

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/db"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/events"
)

type Service struct {
	records Repository
	events  events.Publisher
	now     func() time.Time
}

func NewService(records Repository, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{records: records, events: pub, now: time.Now}
}

var validKinds = map[string]bool{KindRevenue: true, KindExpense: true}

var validStatuses = map[string]bool{
	StatusPending: true, StatusPaid: true, StatusCanceled: true,
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func (s *Service) validate(r *Record) error {
	r.Description = strings.TrimSpace(r.Description)
	if !validKinds[r.Kind] {
		return fmt.Errorf("invalid kind: %s", r.Kind)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if r.Description == "" {
		return fmt.Errorf("description is required")
	}
	if r.Date == "" {
		r.Date = s.now().Format("2006-01-02")
	}
	if !validDate(r.Date) {
		return fmt.Errorf("date must be YYYY-MM-DD")
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	if !validStatuses[r.Status] {
		return fmt.Errorf("invalid status: %s", r.Status)
	}
	r.Amount = r.Amount.Round(2)
	return nil
}

func (s *Service) publish(ctx context.Context, action events.Action, r *Record) {
	ev, err := events.New(events.TableFinancialRecords, action, r.ID.String(), r, r.UpdatedAt)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("financial event")
		return
	}
	ev.Clinic = db.ClinicFromContext(ctx)
	events.Emit(ctx, s.events, ev)
}

func (s *Service) Create(ctx context.Context, r *Record) error {
	if err := s.validate(r); err != nil {
		return err
	}
	if err := s.records.Create(ctx, r); err != nil {
		return err
	}
	s.publish(ctx, events.Created, r)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.records.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, r *Record) error {
	if err := s.validate(r); err != nil {
		return err
	}
	if err := s.records.Update(ctx, r); err != nil {
		return err
	}
	s.publish(ctx, events.Updated, r)
	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	r, err := s.records.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.records.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.Deleted, r)
	return nil
}

// MarkPaid settles a pending record.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID) (*Record, error) {
	r, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusCanceled {
		return nil, fmt.Errorf("canceled records cannot be paid")
	}
	if r.Status == StatusPaid {
		return r, nil
	}
	r.Status = StatusPaid
	if err := s.records.Update(ctx, r); err != nil {
		return nil, err
	}
	s.publish(ctx, events.Updated, r)
	return r, nil
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Record, int, error) {
	if f.Kind != "" && !validKinds[f.Kind] {
		return nil, 0, fmt.Errorf("invalid kind: %s", f.Kind)
	}
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, fmt.Errorf("invalid status: %s", f.Status)
	}
	for _, d := range []string{f.From, f.To} {
		if d != "" && !validDate(d) {
			return nil, 0, fmt.Errorf("dates must be YYYY-MM-DD")
		}
	}
	return s.records.List(ctx, f, limit, offset)
}

// All loads every record for the cache mirror.
func (s *Service) All(ctx context.Context) ([]Record, error) {
	items, _, err := s.records.List(ctx, ListFilter{}, 0, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(items))
	for _, r := range items {
		out = append(out, *r)
	}
	return out, nil
}

// Summary totals the ledger between from and to, both optional.
func (s *Service) Summary(ctx context.Context, from, to string) (*Summary, error) {
	items, _, err := s.List(ctx, ListFilter{From: from, To: to}, 0, 0)
	if err != nil {
		return nil, err
	}
	sum := Summarize(items)
	sum.From, sum.To = from, to
	return &sum, nil
}

// -- Appointment ledger --

// CreateForAppointment books the pending revenue of a new appointment.
func (s *Service) CreateForAppointment(ctx context.Context, appointmentID uuid.UUID, amount decimal.Decimal, date, category, description string) error {
	r := &Record{
		Kind:          KindRevenue,
		Amount:        amount,
		Description:   description,
		Date:          date,
		Status:        StatusPending,
		AppointmentID: &appointmentID,
	}
	if category != "" {
		r.Category = &category
	}
	// Free appointments book a zero amount.
	if r.Amount.IsNegative() {
		return fmt.Errorf("amount must not be negative")
	}
	r.Amount = r.Amount.Round(2)
	if err := s.records.Create(ctx, r); err != nil {
		return err
	}
	s.publish(ctx, events.Created, r)
	return nil
}

// DeleteByAppointment removes the records linked to an appointment and
// returns how many were removed.
func (s *Service) DeleteByAppointment(ctx context.Context, appointmentID uuid.UUID) (int, error) {
	removed, err := s.records.DeleteByAppointment(ctx, appointmentID)
	if err != nil {
		return 0, err
	}
	for _, r := range removed {
		s.publish(ctx, events.Deleted, r)
	}
	return len(removed), nil
}
