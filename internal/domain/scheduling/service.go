package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/db"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/events"
)

// Ledger books and removes the revenue linked to an appointment.
type Ledger interface {
	CreateForAppointment(ctx context.Context, appointmentID uuid.UUID, amount decimal.Decimal, date, category, description string) error
	DeleteByAppointment(ctx context.Context, appointmentID uuid.UUID) (int, error)
}

// NameResolver turns an account id into a display name.
type NameResolver interface {
	DisplayName(ctx context.Context, id uuid.UUID) string
}

type Service struct {
	appointments Repository
	tx           db.Transactor
	ledger       Ledger
	names        NameResolver
	events       events.Publisher
}

func NewService(appts Repository, tx db.Transactor, ledger Ledger, names NameResolver, pub events.Publisher) *Service {
	if tx == nil {
		tx = db.NoTx{}
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{appointments: appts, tx: tx, ledger: ledger, names: names, events: pub}
}

func (s *Service) validate(a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if a.ClinicianID == uuid.Nil {
		return fmt.Errorf("clinician_id is required")
	}
	date, err := NormalizeDate(a.Date)
	if err != nil {
		return err
	}
	slotTime, err := NormalizeTime(a.Time)
	if err != nil {
		return err
	}
	a.Date, a.Time = date, slotTime
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if !validStatuses[a.Status] {
		return fmt.Errorf("invalid appointment status: %s", a.Status)
	}
	if a.Price.IsNegative() {
		return fmt.Errorf("price must not be negative")
	}
	a.Price = a.Price.Round(2)
	if a.Category != nil {
		c := strings.TrimSpace(*a.Category)
		a.Category = &c
	}
	return nil
}

func (s *Service) publish(ctx context.Context, action events.Action, a *Appointment) {
	ev, err := events.New(events.TableAppointments, action, a.ID.String(), a, a.UpdatedAt)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("appointment event")
		return
	}
	ev.Clinic = db.ClinicFromContext(ctx)
	events.Emit(ctx, s.events, ev)
}

func (s *Service) name(ctx context.Context, id uuid.UUID) string {
	if s.names == nil {
		return id.String()
	}
	return s.names.DisplayName(ctx, id)
}

// Describe resolves who holds a conflicting appointment.
func (s *Service) Describe(ctx context.Context, existing *Appointment) *SlotConflictError {
	return &SlotConflictError{
		Date:          existing.Date,
		Time:          existing.Time,
		Existing:      existing,
		PatientName:   s.name(ctx, existing.PatientID),
		ClinicianName: s.name(ctx, existing.ClinicianID),
	}
}

// findConflict is the one slot check every write path and the availability
// endpoint go through.
func (s *Service) findConflict(ctx context.Context, clinicianID uuid.UUID, date, slotTime string, excludeID uuid.UUID) (*Appointment, error) {
	day, err := s.appointments.ListDay(ctx, clinicianID, date)
	if err != nil {
		return nil, fmt.Errorf("load clinician day: %w", err)
	}
	return FindConflict(day, clinicianID, date, slotTime, excludeID), nil
}

func (s *Service) ensureFree(ctx context.Context, a *Appointment, excludeID uuid.UUID) error {
	if !a.Active() {
		return nil
	}
	existing, err := s.findConflict(ctx, a.ClinicianID, a.Date, a.Time, excludeID)
	if err != nil {
		return err
	}
	if existing != nil {
		return s.Describe(ctx, existing)
	}
	return nil
}

// explain upgrades a bare ErrSlotTaken from the store into a
// SlotConflictError naming the holder, when it can still be found.
func (s *Service) explain(ctx context.Context, a *Appointment, excludeID uuid.UUID, err error) error {
	var conflict *SlotConflictError
	if !errors.Is(err, ErrSlotTaken) || errors.As(err, &conflict) {
		return err
	}
	existing, lookupErr := s.findConflict(ctx, a.ClinicianID, a.Date, a.Time, excludeID)
	if lookupErr != nil || existing == nil {
		return &SlotConflictError{Date: a.Date, Time: a.Time}
	}
	return s.Describe(ctx, existing)
}

// run executes fn in a transaction and publishes the events it emitted only
// if the transaction committed.
func (s *Service) run(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, pending := events.Hold(ctx)
	err := s.tx.InTx(ctx, fn)
	pending.Release(ctx, err == nil)
	return err
}

// CheckAvailability reports whether clinicianID is free at date and time.
// When it is not, the conflicting appointment is returned.
func (s *Service) CheckAvailability(ctx context.Context, clinicianID uuid.UUID, date, slotTime string, excludeID uuid.UUID) (bool, *Appointment, error) {
	if clinicianID == uuid.Nil {
		return false, nil, fmt.Errorf("clinician_id is required")
	}
	d, err := NormalizeDate(date)
	if err != nil {
		return false, nil, err
	}
	t, err := NormalizeTime(slotTime)
	if err != nil {
		return false, nil, err
	}
	existing, err := s.findConflict(ctx, clinicianID, d, t, excludeID)
	if err != nil {
		return false, nil, err
	}
	return existing == nil, existing, nil
}

func (s *Service) revenueDescription(ctx context.Context, a *Appointment) string {
	return fmt.Sprintf("Appointment %s %s - %s", a.Date, a.Time, s.name(ctx, a.PatientID))
}

// Create books a, together with its pending revenue record.
func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if err := s.validate(a); err != nil {
		return err
	}
	err := s.run(ctx, func(ctx context.Context) error {
		if err := s.ensureFree(ctx, a, uuid.Nil); err != nil {
			return err
		}
		if err := s.appointments.Create(ctx, a); err != nil {
			return err
		}
		if s.ledger != nil {
			err := s.ledger.CreateForAppointment(ctx, a.ID, a.Price, a.Date, strVal(a.Category), s.revenueDescription(ctx, a))
			if err != nil {
				if !s.tx.Atomic() {
					if derr := s.appointments.Delete(ctx, a.ID); derr != nil {
						zerolog.Ctx(ctx).Error().Err(derr).Str("appointment_id", a.ID.String()).
							Msg("compensating delete failed")
					}
				}
				return fmt.Errorf("create revenue record: %w", err)
			}
		}
		s.publish(ctx, events.Created, a)
		return nil
	})
	if err != nil {
		return s.explain(ctx, a, uuid.Nil, err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// Update replaces a. The linked revenue record is left as it is.
func (s *Service) Update(ctx context.Context, a *Appointment) error {
	if err := s.validate(a); err != nil {
		return err
	}
	err := s.run(ctx, func(ctx context.Context) error {
		cur, err := s.appointments.GetByID(ctx, a.ID)
		if err != nil {
			return err
		}
		a.CreatedAt = cur.CreatedAt
		if err := s.ensureFree(ctx, a, a.ID); err != nil {
			return err
		}
		if err := s.appointments.Update(ctx, a); err != nil {
			return err
		}
		s.publish(ctx, events.Updated, a)
		return nil
	})
	if err != nil {
		return s.explain(ctx, a, a.ID, err)
	}
	return nil
}

// SetStatus changes only the status. Leaving canceled re-checks the slot.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error) {
	if !validStatuses[status] {
		return nil, fmt.Errorf("invalid appointment status: %s", status)
	}
	var a *Appointment
	err := s.run(ctx, func(ctx context.Context) error {
		cur, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		a = cur
		reopening := !cur.Active() && status != StatusCanceled
		cur.Status = status
		if reopening {
			if err := s.ensureFree(ctx, cur, cur.ID); err != nil {
				return err
			}
		}
		if err := s.appointments.Update(ctx, cur); err != nil {
			return err
		}
		s.publish(ctx, events.Updated, cur)
		return nil
	})
	if err != nil {
		if a != nil {
			return nil, s.explain(ctx, a, a.ID, err)
		}
		return nil, err
	}
	return a, nil
}

// Delete removes the appointment and its linked financial records and
// returns how many records went with it.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (int, error) {
	var removed int
	err := s.run(ctx, func(ctx context.Context) error {
		cur, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if s.ledger != nil {
			// Linked rows go first; the foreign key would otherwise unlink them.
			if removed, err = s.ledger.DeleteByAppointment(ctx, id); err != nil {
				return fmt.Errorf("delete linked records: %w", err)
			}
		}
		if err := s.appointments.Delete(ctx, id); err != nil {
			return err
		}
		s.publish(ctx, events.Deleted, cur)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	var err error
	if f.Date != "" {
		if f.Date, err = NormalizeDate(f.Date); err != nil {
			return nil, 0, err
		}
	}
	if f.From != "" {
		if f.From, err = NormalizeDate(f.From); err != nil {
			return nil, 0, err
		}
	}
	if f.To != "" {
		if f.To, err = NormalizeDate(f.To); err != nil {
			return nil, 0, err
		}
	}
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, fmt.Errorf("invalid appointment status: %s", f.Status)
	}
	return s.appointments.List(ctx, f, limit, offset)
}

// All loads every appointment for the cache mirror.
func (s *Service) All(ctx context.Context) ([]Appointment, error) {
	items, _, err := s.appointments.List(ctx, ListFilter{}, 0, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Appointment, 0, len(items))
	for _, a := range items {
		out = append(out, *a)
	}
	return out, nil
}

// ForDate returns the active appointments on date.
func (s *Service) ForDate(ctx context.Context, date string) ([]*Appointment, error) {
	items, _, err := s.List(ctx, ListFilter{Date: date}, 0, 0)
	if err != nil {
		return nil, err
	}
	active := items[:0]
	for _, a := range items {
		if a.Active() {
			active = append(active, a)
		}
	}
	return active, nil
}
