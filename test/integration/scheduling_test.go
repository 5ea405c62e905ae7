//go:build integration

package integration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/account"
	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/financial"
	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/scheduling"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/auth"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/db"
)

type clinicServices struct {
	appointments *scheduling.Service
	ledger       *financial.Service
}

func newClinicServices(ledger scheduling.Ledger) *clinicServices {
	pool := globalDB.Pool
	fin := financial.NewService(financial.NewRecordRepoPG(pool), nil)
	if ledger == nil {
		ledger = fin
	}
	names := account.NewService(account.NewAccountRepoPG(pool), nil, nil, nil, nil)
	return &clinicServices{
		appointments: scheduling.NewService(scheduling.NewAppointmentRepoPG(pool), db.NewPoolTx(pool), ledger, names, nil),
		ledger:       fin,
	}
}

// failingLedger books nothing and always fails.
type failingLedger struct{}

func (failingLedger) CreateForAppointment(context.Context, uuid.UUID, decimal.Decimal, string, string, string) error {
	return errors.New("ledger unavailable")
}

func (failingLedger) DeleteByAppointment(context.Context, uuid.UUID) (int, error) {
	return 0, errors.New("ledger unavailable")
}

func booking(patient, clinician uuid.UUID, date, hhmm string) *scheduling.Appointment {
	return &scheduling.Appointment{
		PatientID:   patient,
		ClinicianID: clinician,
		Date:        date,
		Time:        hhmm,
		Price:       decimal.NewFromInt(300),
	}
}

func TestAppointmentDoubleBooking(t *testing.T) {
	ctx := context.Background()
	clinicID := createClinic(t, ctx, "sched")
	doctor := createTestAccount(t, ctx, clinicID, "Dr D", auth.RoleClinician)
	p1 := createTestAccount(t, ctx, clinicID, "P1", auth.RolePatient)
	p2 := createTestAccount(t, ctx, clinicID, "P2", auth.RolePatient)
	svc := newClinicServices(nil)

	first := booking(p1.ID, doctor.ID, "2024-12-20", "09:00")

	t.Run("FirstBookingAndRevenue", func(t *testing.T) {
		inClinic(t, ctx, clinicID, func(ctx context.Context) error {
			if err := svc.appointments.Create(ctx, first); err != nil {
				return err
			}
			records, total, err := svc.ledger.List(ctx, financial.ListFilter{AppointmentID: &first.ID}, 10, 0)
			if err != nil {
				return err
			}
			if total != 1 || !records[0].Amount.Equal(decimal.NewFromInt(300)) || records[0].Status != financial.StatusPending {
				t.Errorf("expected one pending revenue of 300, got %d", total)
			}
			return nil
		})
	})

	t.Run("SecondBookingNamesHolder", func(t *testing.T) {
		inClinic(t, ctx, clinicID, func(ctx context.Context) error {
			err := svc.appointments.Create(ctx, booking(p2.ID, doctor.ID, "20/12/2024", "9h"))
			if !errors.Is(err, scheduling.ErrSlotTaken) {
				t.Fatalf("expected slot conflict, got %v", err)
			}
			if !strings.Contains(err.Error(), "P1") || !strings.Contains(err.Error(), "Dr D") {
				t.Errorf("expected holder and clinician in %q", err.Error())
			}
			return nil
		})
	})

	t.Run("IndexRejectsDirectInsert", func(t *testing.T) {
		inClinic(t, ctx, clinicID, func(ctx context.Context) error {
			dup := booking(p2.ID, doctor.ID, "2024-12-20", "09:00")
			dup.Status = scheduling.StatusScheduled
			err := scheduling.NewAppointmentRepoPG(globalDB.Pool).Create(ctx, dup)
			if !errors.Is(err, scheduling.ErrSlotTaken) {
				t.Errorf("expected the partial unique index to reject, got %v", err)
			}
			return nil
		})
	})

	t.Run("CancelFreesSlot", func(t *testing.T) {
		inClinic(t, ctx, clinicID, func(ctx context.Context) error {
			if _, err := svc.appointments.SetStatus(ctx, first.ID, scheduling.StatusCanceled); err != nil {
				return err
			}
			return svc.appointments.Create(ctx, booking(p2.ID, doctor.ID, "2024-12-20", "09:00"))
		})
	})

	t.Run("ReopenOntoTakenSlot", func(t *testing.T) {
		inClinic(t, ctx, clinicID, func(ctx context.Context) error {
			_, err := svc.appointments.SetStatus(ctx, first.ID, scheduling.StatusScheduled)
			if !errors.Is(err, scheduling.ErrSlotTaken) {
				t.Errorf("expected conflict when reopening, got %v", err)
			}
			return nil
		})
	})
}

func TestAppointmentLedgerFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	clinicID := createClinic(t, ctx, "rollback")
	doctor := createTestAccount(t, ctx, clinicID, "Dr R", auth.RoleClinician)
	patient := createTestAccount(t, ctx, clinicID, "Paciente", auth.RolePatient)
	svc := newClinicServices(failingLedger{})

	inClinic(t, ctx, clinicID, func(ctx context.Context) error {
		if err := svc.appointments.Create(ctx, booking(patient.ID, doctor.ID, "2024-12-20", "10:00")); err == nil {
			t.Fatal("expected ledger failure")
		}
		_, total, err := svc.appointments.List(ctx, scheduling.ListFilter{}, 10, 0)
		if err != nil {
			return err
		}
		if total != 0 {
			t.Errorf("expected the appointment to be rolled back, found %d", total)
		}
		return nil
	})
}

func TestAppointmentDeleteRemovesLedger(t *testing.T) {
	ctx := context.Background()
	clinicID := createClinic(t, ctx, "delete")
	doctor := createTestAccount(t, ctx, clinicID, "Dr X", auth.RoleClinician)
	patient := createTestAccount(t, ctx, clinicID, "Paciente", auth.RolePatient)
	svc := newClinicServices(nil)

	inClinic(t, ctx, clinicID, func(ctx context.Context) error {
		a := booking(patient.ID, doctor.ID, "2024-12-20", "11:00")
		if err := svc.appointments.Create(ctx, a); err != nil {
			return err
		}
		expense := &financial.Record{Kind: financial.KindExpense, Amount: decimal.NewFromInt(50), Description: "Luvas", Date: "2024-12-20"}
		if err := svc.ledger.Create(ctx, expense); err != nil {
			return err
		}

		removed, err := svc.appointments.Delete(ctx, a.ID)
		if err != nil {
			return err
		}
		if removed != 1 {
			t.Errorf("expected 1 linked record removed, got %d", removed)
		}
		_, total, err := svc.ledger.List(ctx, financial.ListFilter{}, 10, 0)
		if err != nil {
			return err
		}
		if total != 1 {
			t.Errorf("expected only the unrelated expense to remain, got %d", total)
		}
		return nil
	})
}
