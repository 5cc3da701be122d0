package encounter

import "time"

// Status tracks the encounter lifecycle. Transitions are monotonic along
// requested → matched → active → extended → completed; cancellation is only
// reachable before the encounter starts.
type Status string

const (
	StatusRequested Status = "requested"
	StatusMatched   Status = "matched"
	StatusActive    Status = "active"
	StatusExtended  Status = "extended"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

const (
	// BaseTimeBoxMinutes is the duration budget allotted to a new encounter.
	BaseTimeBoxMinutes = 20
	// ExtensionMinutes is the fixed increment a single extension adds.
	ExtensionMinutes = 10
)

// Encounter is a single clinical interaction between a patient and an
// assigned clinician. Terminal encounters are retained for audit.
type Encounter struct {
	ID               string
	PatientID        string
	ClinicianID      string
	Status           Status
	Summary          string
	RedFlags         []string
	TimeBoxMinutes   int
	ExtensionApplied bool
	StartedAt        time.Time
	EndedAt          time.Time
	DurationMinutes  int
	Notes            string
	CreatedAt        time.Time
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}
