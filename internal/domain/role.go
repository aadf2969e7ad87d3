package domain

import "strings"

// Role is the closed set of dashboard roles.
type Role string

// Role constants define the canonical role strings.
const (
	RoleDoctor           Role = "Doctor"
	RoleSheha            Role = "Sheha"
	RoleHealthSupervisor Role = "HealthSupervisor"
	RoleAdmin            Role = "Admin"
)

// Routes the dashboard navigates to.
const (
	RouteEntry               = "/"
	RouteDashboard           = "/dashboard"
	RouteDoctorDashboard     = "/doctor-dashboard"
	RouteShehaDashboard      = "/sheha-dashboard"
	RouteSupervisorDashboard = "/supervisor-dashboard"
)

// ValidRoles returns the set of valid user roles.
func ValidRoles() []Role {
	return []Role{RoleDoctor, RoleSheha, RoleHealthSupervisor, RoleAdmin}
}

// ParseRole normalizes a role string from the API or a stored user record.
// "Health Supervisor" and case variants map to the canonical value; anything
// else yields the empty role.
func ParseRole(s string) Role {
	key := strings.ToLower(strings.Join(strings.Fields(s), ""))
	key = strings.NewReplacer("_", "", "-", "").Replace(key)
	switch key {
	case "doctor":
		return RoleDoctor
	case "sheha":
		return RoleSheha
	case "healthsupervisor", "supervisor":
		return RoleHealthSupervisor
	case "admin":
		return RoleAdmin
	default:
		return ""
	}
}

// IsValid reports whether r is one of the canonical roles.
func (r Role) IsValid() bool {
	for _, v := range ValidRoles() {
		if v == r {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

// LandingRoute is where a user of this role goes after login. Admin and
// unknown roles land on the generic dashboard.
func (r Role) LandingRoute() string {
	switch r {
	case RoleDoctor:
		return RouteDoctorDashboard
	case RoleSheha:
		return RouteShehaDashboard
	case RoleHealthSupervisor:
		return RouteSupervisorDashboard
	default:
		return RouteDashboard
	}
}

// PatientPrefix is the API path prefix for this role's patient endpoints.
func (r Role) PatientPrefix() string {
	switch r {
	case RoleDoctor:
		return "doctor/"
	case RoleSheha:
		return "sheha/"
	case RoleHealthSupervisor:
		return "supervisor/"
	default:
		return ""
	}
}
