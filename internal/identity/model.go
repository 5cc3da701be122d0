package identity

import "time"

// Role classifies what an identity may do. Closed set, checked at every
// boundary.
type Role string

const (
	RolePatient   Role = "patient"
	RoleClinician Role = "clinician"
	RolePharmacy  Role = "pharmacy"
	RoleAdmin     Role = "admin"
)

// Valid reports whether the role is one of the known variants.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleClinician, RolePharmacy, RoleAdmin:
		return true
	}
	return false
}

// Identity represents a phone-verified actor. Created on first successful
// verification, never deleted; Invalidated soft-retires it.
type Identity struct {
	ID          string
	Phone       string
	Role        Role
	VerifiedAt  time.Time
	Invalidated bool
	CreatedAt   time.Time
}
