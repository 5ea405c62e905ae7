package auth

// Account roles. Admin passes every role gate.
const (
	RoleAdmin      = "admin"
	RoleFinancial  = "financial"
	RoleScheduling = "scheduling"
	RoleClinician  = "clinician"
	RolePatient    = "patient"
)

// AllRoles lists the roles in menu order.
func AllRoles() []string {
	return []string{RoleAdmin, RoleFinancial, RoleScheduling, RoleClinician, RolePatient}
}

func ValidRole(role string) bool {
	for _, r := range AllRoles() {
		if r == role {
			return true
		}
	}
	return false
}
