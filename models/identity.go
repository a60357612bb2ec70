package models

// Identity identifies the acting account. The zero value means no account is
// bound.
type Identity string

// NoIdentity is the unset identity.
const NoIdentity Identity = ""

func (id Identity) IsSet() bool {
	return id != NoIdentity
}

func (id Identity) String() string {
	if !id.IsSet() {
		return "<unset>"
	}
	return string(id)
}

// Role is derived per identity from the ledger ownership check.
type Role int

const (
	RoleUnknown Role = iota
	RoleVoter
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleVoter:
		return "voter"
	default:
		return "unknown"
	}
}

// IsAdmin reports whether admin-only regions may be shown. Unknown roles are
// treated as non-admin.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	switch string(text) {
	case "admin":
		*r = RoleAdmin
	case "voter":
		*r = RoleVoter
	default:
		*r = RoleUnknown
	}
	return nil
}
