package dashboard

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/account"
	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/financial"
	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/medical"
	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/scheduling"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/auth"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/cache"
)

// upcomingLimit caps the upcoming list on a dashboard.
const upcomingLimit = 5

// Mirrored holds the cache collections dashboards are computed from.
type Mirrored struct {
	Accounts     *cache.Collection[account.Account]
	Appointments *cache.Collection[scheduling.Appointment]
	Financial    *cache.Collection[financial.Record]
	Medical      *cache.Collection[medical.Record]
	RefreshedAt  func() time.Time
}

type Counts struct {
	Patients             int            `json:"patients,omitempty"`
	Clinicians           int            `json:"clinicians,omitempty"`
	AppointmentsToday    int            `json:"appointments_today"`
	AppointmentsUpcoming int            `json:"appointments_upcoming"`
	ByStatus             map[string]int `json:"appointments_by_status,omitempty"`
	MedicalRecords       int            `json:"medical_records,omitempty"`
}

// Summary is one role's dashboard.
type Summary struct {
	Role        string                   `json:"role"`
	Date        string                   `json:"date"`
	Counts      Counts                   `json:"counts"`
	Financial   *financial.Summary       `json:"financial,omitempty"`
	Today       []scheduling.Appointment `json:"today"`
	Upcoming    []scheduling.Appointment `json:"upcoming"`
	RefreshedAt time.Time                `json:"refreshed_at"`
}

type Service struct {
	data Mirrored
	now  func() time.Time
}

func NewService(data Mirrored) *Service {
	return &Service{data: data, now: time.Now}
}

func bySlot(appts []scheduling.Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if appts[i].Date != appts[j].Date {
			return appts[i].Date < appts[j].Date
		}
		return appts[i].Time < appts[j].Time
	})
}

// Build computes the dashboard of a caller. Clinicians and patients see only
// their own appointments and records; self is ignored for other roles.
func (s *Service) Build(role string, self uuid.UUID) *Summary {
	now := s.now()
	today := now.Format("2006-01-02")
	sum := &Summary{Role: role, Date: today, Today: []scheduling.Appointment{}, Upcoming: []scheduling.Appointment{}}
	if s.data.RefreshedAt != nil {
		sum.RefreshedAt = s.data.RefreshedAt()
	}

	own := func(a scheduling.Appointment) bool {
		switch role {
		case auth.RoleClinician:
			return a.ClinicianID == self
		case auth.RolePatient:
			return a.PatientID == self
		}
		return true
	}

	if role != auth.RoleFinancial {
		sum.Counts.ByStatus = make(map[string]int)
		for _, a := range s.data.Appointments.Filter(own) {
			sum.Counts.ByStatus[a.Status]++
			if !a.Active() {
				continue
			}
			switch {
			case a.Date == today:
				sum.Counts.AppointmentsToday++
				sum.Today = append(sum.Today, a)
			case a.Date > today:
				sum.Counts.AppointmentsUpcoming++
				sum.Upcoming = append(sum.Upcoming, a)
			}
		}
		bySlot(sum.Today)
		bySlot(sum.Upcoming)
		if len(sum.Upcoming) > upcomingLimit {
			sum.Upcoming = sum.Upcoming[:upcomingLimit]
		}
	}

	if role != auth.RolePatient {
		for _, a := range s.data.Accounts.All() {
			if !a.IsActive {
				continue
			}
			switch a.Role {
			case auth.RolePatient:
				sum.Counts.Patients++
			case auth.RoleClinician:
				sum.Counts.Clinicians++
			}
		}
	}

	switch role {
	case auth.RoleClinician:
		sum.Counts.MedicalRecords = len(s.data.Medical.Filter(func(r medical.Record) bool { return r.ClinicianID == self }))
	case auth.RolePatient:
		sum.Counts.MedicalRecords = len(s.data.Medical.Filter(func(r medical.Record) bool { return r.PatientID == self }))
	case auth.RoleAdmin, auth.RoleFinancial:
		sum.Financial = s.monthToDate(now)
	}
	return sum
}

// monthToDate summarizes the financial records dated this month up to today.
func (s *Service) monthToDate(now time.Time) *financial.Summary {
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format("2006-01-02")
	to := now.Format("2006-01-02")
	var records []*financial.Record
	for _, r := range s.data.Financial.All() {
		if r.Date >= from && r.Date <= to {
			r := r
			records = append(records, &r)
		}
	}
	sum := financial.Summarize(records)
	sum.From, sum.To = from, to
	return &sum
}
