package medical

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

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

func (s *Service) validate(r *Record) error {
	r.Diagnosis = strings.TrimSpace(r.Diagnosis)
	r.Treatment = strings.TrimSpace(r.Treatment)
	if r.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if r.ClinicianID == uuid.Nil {
		return fmt.Errorf("clinician_id is required")
	}
	if r.Date == "" {
		r.Date = s.now().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD")
	}
	if r.Diagnosis == "" {
		return fmt.Errorf("diagnosis is required")
	}
	if r.Treatment == "" {
		return fmt.Errorf("treatment is required")
	}
	return nil
}

func (s *Service) publish(ctx context.Context, action events.Action, r *Record) {
	ev, err := events.New(events.TableMedicalRecords, action, r.ID.String(), r, r.UpdatedAt)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("medical record event")
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
		return fmt.Errorf("create medical record: %w", err)
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
	cur, err := s.records.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.records.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.Deleted, cur)
	return nil
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Record, int, error) {
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
