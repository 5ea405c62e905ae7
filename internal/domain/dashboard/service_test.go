package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/account"
	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/financial"
	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/medical"
	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/scheduling"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/auth"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/cache"
)

type fixture struct {
	svc      *Service
	doctor   uuid.UUID
	other    uuid.UUID
	patient  uuid.UUID
	patient2 uuid.UUID
}

func loader[T cache.Row](rows ...T) cache.Loader[T] {
	return func(context.Context) ([]T, error) { return rows, nil }
}

func appt(patient, clinician uuid.UUID, date, hhmm, status string) scheduling.Appointment {
	return scheduling.Appointment{
		ID: uuid.New(), PatientID: patient, ClinicianID: clinician,
		Date: date, Time: hhmm, Status: status, Price: decimal.NewFromInt(300),
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{doctor: uuid.New(), other: uuid.New(), patient: uuid.New(), patient2: uuid.New()}

	accounts := cache.NewCollection("account", loader(
		account.Account{ID: f.doctor, Name: "Dr. D", Role: auth.RoleClinician, IsActive: true},
		account.Account{ID: f.other, Name: "Dr. O", Role: auth.RoleClinician, IsActive: true},
		account.Account{ID: f.patient, Name: "P1", Role: auth.RolePatient, IsActive: true},
		account.Account{ID: f.patient2, Name: "P2", Role: auth.RolePatient, IsActive: true},
		account.Account{ID: uuid.New(), Name: "Old", Role: auth.RolePatient, IsActive: false},
		account.Account{ID: uuid.New(), Name: "Root", Role: auth.RoleAdmin, IsActive: true},
	))
	appts := cache.NewCollection("appointment", loader(
		appt(f.patient, f.doctor, "2024-12-20", "14:00", scheduling.StatusScheduled),
		appt(f.patient2, f.doctor, "2024-12-20", "09:00", scheduling.StatusConfirmed),
		appt(f.patient2, f.other, "2024-12-20", "10:00", scheduling.StatusScheduled),
		appt(f.patient, f.doctor, "2024-12-20", "11:00", scheduling.StatusCanceled),
		appt(f.patient, f.doctor, "2024-12-27", "09:00", scheduling.StatusScheduled),
		appt(f.patient, f.doctor, "2024-12-02", "09:00", scheduling.StatusCompleted),
	))
	ledger := cache.NewCollection("financial_record", loader(
		financial.Record{ID: uuid.New(), Kind: financial.KindRevenue, Amount: decimal.NewFromInt(300), Date: "2024-12-02", Status: financial.StatusPaid},
		financial.Record{ID: uuid.New(), Kind: financial.KindRevenue, Amount: decimal.NewFromInt(300), Date: "2024-12-20", Status: financial.StatusPending},
		financial.Record{ID: uuid.New(), Kind: financial.KindExpense, Amount: decimal.NewFromInt(100), Date: "2024-12-10", Status: financial.StatusPaid},
		financial.Record{ID: uuid.New(), Kind: financial.KindRevenue, Amount: decimal.NewFromInt(500), Date: "2024-11-30", Status: financial.StatusPaid},
		financial.Record{ID: uuid.New(), Kind: financial.KindRevenue, Amount: decimal.NewFromInt(300), Date: "2024-12-27", Status: financial.StatusPending},
	))
	records := cache.NewCollection("medical_record", loader(
		medical.Record{ID: uuid.New(), PatientID: f.patient, ClinicianID: f.doctor, Date: "2024-12-02"},
		medical.Record{ID: uuid.New(), PatientID: f.patient2, ClinicianID: f.other, Date: "2024-12-03"},
	))

	ctx := context.Background()
	for _, c := range []interface{ Refresh(context.Context) error }{accounts, appts, ledger, records} {
		if err := c.Refresh(ctx); err != nil {
			t.Fatalf("refresh: %v", err)
		}
	}

	f.svc = NewService(Mirrored{Accounts: accounts, Appointments: appts, Financial: ledger, Medical: records})
	f.svc.now = func() time.Time { return time.Date(2024, 12, 20, 8, 0, 0, 0, time.UTC) }
	return f
}

func TestBuild_Admin(t *testing.T) {
	f := newFixture(t)
	s := f.svc.Build(auth.RoleAdmin, uuid.Nil)

	if s.Counts.Patients != 2 || s.Counts.Clinicians != 2 {
		t.Errorf("expected 2 active patients and 2 clinicians, got %+v", s.Counts)
	}
	if s.Counts.AppointmentsToday != 3 {
		t.Errorf("expected 3 active appointments today, got %d", s.Counts.AppointmentsToday)
	}
	if s.Counts.AppointmentsUpcoming != 1 {
		t.Errorf("expected 1 upcoming, got %d", s.Counts.AppointmentsUpcoming)
	}
	if s.Counts.ByStatus[scheduling.StatusCanceled] != 1 {
		t.Errorf("expected canceled to be counted by status, got %v", s.Counts.ByStatus)
	}
	if s.Today[0].Time != "09:00" || s.Today[2].Time != "14:00" {
		t.Errorf("expected today ordered by time, got %s..%s", s.Today[0].Time, s.Today[2].Time)
	}
	if s.Financial == nil {
		t.Fatal("expected a financial summary for admin")
	}
	if s.Financial.From != "2024-12-01" || s.Financial.To != "2024-12-20" {
		t.Errorf("unexpected period %s..%s", s.Financial.From, s.Financial.To)
	}
	if !s.Financial.RevenuePaid.Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected paid revenue 300, got %s", s.Financial.RevenuePaid)
	}
	if !s.Financial.RevenuePending.Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected pending revenue 300, got %s", s.Financial.RevenuePending)
	}
	if !s.Financial.Balance.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected balance 200, got %s", s.Financial.Balance)
	}
}

func TestBuild_FinancialHasNoAgenda(t *testing.T) {
	f := newFixture(t)
	s := f.svc.Build(auth.RoleFinancial, uuid.Nil)
	if s.Financial == nil {
		t.Fatal("expected a financial summary")
	}
	if len(s.Today) != 0 || s.Counts.ByStatus != nil {
		t.Errorf("expected no appointments for financial, got %d", len(s.Today))
	}
}

func TestBuild_ClinicianSeesOwnAppointments(t *testing.T) {
	f := newFixture(t)
	s := f.svc.Build(auth.RoleClinician, f.doctor)

	if s.Counts.AppointmentsToday != 2 {
		t.Errorf("expected 2 of the doctor's appointments today, got %d", s.Counts.AppointmentsToday)
	}
	for _, a := range append(s.Today, s.Upcoming...) {
		if a.ClinicianID != f.doctor {
			t.Errorf("leaked appointment of %s", a.ClinicianID)
		}
	}
	if s.Counts.MedicalRecords != 1 {
		t.Errorf("expected 1 authored record, got %d", s.Counts.MedicalRecords)
	}
	if s.Financial != nil {
		t.Error("clinician must not see the financial summary")
	}
}

func TestBuild_PatientSeesOwnAppointments(t *testing.T) {
	f := newFixture(t)
	s := f.svc.Build(auth.RolePatient, f.patient2)

	if s.Counts.AppointmentsToday != 2 || s.Counts.AppointmentsUpcoming != 0 {
		t.Errorf("unexpected counts %+v", s.Counts)
	}
	for _, a := range s.Today {
		if a.PatientID != f.patient2 {
			t.Errorf("leaked appointment of %s", a.PatientID)
		}
	}
	if s.Counts.Patients != 0 || s.Counts.Clinicians != 0 {
		t.Errorf("patient must not see account counts, got %+v", s.Counts)
	}
	if s.Financial != nil {
		t.Error("patient must not see the financial summary")
	}
}

func TestBuild_UpcomingIsCapped(t *testing.T) {
	patient, doctor := uuid.New(), uuid.New()
	var rows []scheduling.Appointment
	for d := 21; d <= 28; d++ {
		rows = append(rows, appt(patient, doctor, time.Date(2024, 12, d, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), "09:00", scheduling.StatusScheduled))
	}
	appts := cache.NewCollection("appointment", loader(rows...))
	if err := appts.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	svc := NewService(Mirrored{
		Accounts:     cache.NewCollection("account", loader[account.Account]()),
		Appointments: appts,
		Financial:    cache.NewCollection("financial_record", loader[financial.Record]()),
		Medical:      cache.NewCollection("medical_record", loader[medical.Record]()),
	})
	svc.now = func() time.Time { return time.Date(2024, 12, 20, 8, 0, 0, 0, time.UTC) }

	s := svc.Build(auth.RoleScheduling, uuid.Nil)
	if s.Counts.AppointmentsUpcoming != 8 {
		t.Errorf("expected 8 upcoming counted, got %d", s.Counts.AppointmentsUpcoming)
	}
	if len(s.Upcoming) != upcomingLimit || s.Upcoming[0].Date != "2024-12-21" {
		t.Errorf("expected the next %d in date order, got %d", upcomingLimit, len(s.Upcoming))
	}
}
