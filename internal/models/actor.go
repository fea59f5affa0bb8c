package models

type Role string

const (
	RoleHomeowner  Role = "homeowner"
	RoleContractor Role = "contractor"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleHomeowner, RoleContractor:
		return true
	default:
		return false
	}
}

// Actor is the authenticated caller of an operation. Identity is resolved
// upstream and trusted here.
type Actor struct {
	Id   string
	Role Role
}

func (a Actor) IsHomeowner() bool  { return a.Role == RoleHomeowner }
func (a Actor) IsContractor() bool { return a.Role == RoleContractor }
