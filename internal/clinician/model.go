package clinician

import "time"

// Kind distinguishes clinician specializations for assignment.
type Kind string

const (
	KindGeneralist Kind = "generalist"
	KindSpecialist Kind = "specialist"
)

// Valid reports whether the kind is a known variant.
func (k Kind) Valid() bool {
	return k == KindGeneralist || k == KindSpecialist
}

// Clinician is an assignable care provider. ActiveLoad counts encounters in
// non-terminal assignment states and never exceeds Capacity at the moment a
// slot is acquired.
type Clinician struct {
	ID         string
	IdentityID string
	Name       string
	Kind       Kind
	Capacity   int
	ActiveLoad int
	Active     bool
	CreatedAt  time.Time
}
