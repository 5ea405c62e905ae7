package dashboard

import "github.com/luskaa234/integrarneurpp-sub000/internal/platform/auth"

// Screen names one view of the clinic panel.
type Screen string

const (
	ScreenDashboard      Screen = "dashboard"
	ScreenSchedule       Screen = "schedule"
	ScreenPatients       Screen = "patients"
	ScreenDoctors        Screen = "doctors"
	ScreenFinancial      Screen = "financial"
	ScreenMedicalRecords Screen = "medical_records"
	ScreenMessages       Screen = "messages"
	ScreenSettings       Screen = "settings"
	ScreenProfile        Screen = "profile"
	ScreenAccounts       Screen = "accounts"
)

type MenuItem struct {
	Screen Screen `json:"screen"`
	Label  string `json:"label"`
}

// menuOrder is the order screens appear in every menu.
var menuOrder = []MenuItem{
	{ScreenDashboard, "Dashboard"},
	{ScreenSchedule, "Agenda"},
	{ScreenPatients, "Pacientes"},
	{ScreenDoctors, "Médicos"},
	{ScreenFinancial, "Financeiro"},
	{ScreenMedicalRecords, "Prontuários"},
	{ScreenMessages, "Mensagens"},
	{ScreenAccounts, "Usuários"},
	{ScreenSettings, "Configurações"},
	{ScreenProfile, "Perfil"},
}

var screensByRole = map[string]map[Screen]bool{
	auth.RoleFinancial: {
		ScreenDashboard: true, ScreenFinancial: true, ScreenPatients: true, ScreenProfile: true,
	},
	auth.RoleScheduling: {
		ScreenDashboard: true, ScreenSchedule: true, ScreenPatients: true, ScreenDoctors: true,
		ScreenMessages: true, ScreenProfile: true,
	},
	auth.RoleClinician: {
		ScreenDashboard: true, ScreenSchedule: true, ScreenPatients: true, ScreenMedicalRecords: true,
		ScreenProfile: true,
	},
	auth.RolePatient: {
		ScreenDashboard: true, ScreenSchedule: true, ScreenMedicalRecords: true, ScreenProfile: true,
	},
}

// Allowed reports whether role may open screen. Admin opens everything.
func Allowed(role string, screen Screen) bool {
	if role == auth.RoleAdmin {
		for _, it := range menuOrder {
			if it.Screen == screen {
				return true
			}
		}
		return false
	}
	return screensByRole[role][screen]
}

// ScreensFor returns the menu of role. Unknown roles get an empty menu.
func ScreensFor(role string) []MenuItem {
	items := []MenuItem{}
	for _, it := range menuOrder {
		if Allowed(role, it.Screen) {
			items = append(items, it)
		}
	}
	return items
}

// Resolve returns screen when role may open it and the dashboard otherwise.
// Unknown roles resolve to no screen, matching their empty menu.
func Resolve(role string, screen Screen) Screen {
	if !auth.ValidRole(role) {
		return ""
	}
	if Allowed(role, screen) {
		return screen
	}
	return ScreenDashboard
}
