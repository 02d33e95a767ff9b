package models

// Role is the per-user designation stored on the user record
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCustomer
}

// Permission is a resource/action pair checked by the permission middleware
type Permission struct {
	Resource string `json:"resource"` // e.g., "services", "registrations"
	Action   string `json:"action"`   // e.g., "create", "read", "update", "delete"
}

// Roles are fixed for the lifetime of an account, so the grants are static
var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		{Resource: "services", Action: "read"},
		{Resource: "services", Action: "create"},
		{Resource: "services", Action: "update"},
		{Resource: "services", Action: "delete"},
		{Resource: "registrations", Action: "read_all"},
		{Resource: "registrations", Action: "update_status"},
		{Resource: "profile", Action: "read"},
		{Resource: "profile", Action: "update"},
		{Resource: "todos", Action: "manage"},
	},
	RoleCustomer: {
		{Resource: "services", Action: "read"},
		{Resource: "registrations", Action: "create"},
		{Resource: "registrations", Action: "read_own"},
		{Resource: "registrations", Action: "cancel_own"},
		{Resource: "profile", Action: "read"},
		{Resource: "profile", Action: "update"},
		{Resource: "todos", Action: "manage"},
	},
}

// Permissions returns the grants of a role. Unknown roles get none.
func (r Role) Permissions() []Permission {
	return rolePermissions[r]
}

// Can reports whether the role grants action on resource
func (r Role) Can(resource, action string) bool {
	for _, p := range rolePermissions[r] {
		if p.Resource == resource && p.Action == action {
			return true
		}
	}
	return false
}
