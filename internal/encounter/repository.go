package encounter

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no encounter exists for the id.
	ErrNotFound = errors.New("encounter not found")
	// ErrConflict indicates the caller is not the assigned clinician or the
	// encounter is not in the state the operation requires.
	ErrConflict = errors.New("encounter conflict")
	// ErrInvalidTransition indicates a forbidden state machine move.
	ErrInvalidTransition = errors.New("invalid encounter transition")
)

// Repository persists encounters. Each Mark* method is a single conditional
// update: the state check and the write are one atomic statement, so
// concurrent drivers cannot interleave a read-decide-write on the same row.
type Repository interface {
	Create(ctx context.Context, e Encounter) error
	Get(ctx context.Context, id string) (Encounter, error)
	MarkMatched(ctx context.Context, id, clinicianID string) (Encounter, error)
	MarkActive(ctx context.Context, id, clinicianID string, at time.Time) (Encounter, error)
	ApplyExtension(ctx context.Context, id string, minutes int) (Encounter, bool, error)
	MarkCompleted(ctx context.Context, id, clinicianID string, endedAt time.Time, notes string) (Encounter, error)
	MarkCancelled(ctx context.Context, id string) (Encounter, error)
}

// PostgresRepository stores encounters in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const encounterColumns = `id, patient_id, clinician_id, status, summary, red_flags,
    time_box_minutes, extension_applied, started_at, ended_at, duration_minutes, notes, created_at`

// Create inserts an encounter in the requested state.
func (r *PostgresRepository) Create(ctx context.Context, e Encounter) error {
	encounterID, err := uuid.Parse(e.ID)
	if err != nil {
		return err
	}
	patientID, err := uuid.Parse(e.PatientID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO encounters (id, patient_id, status, summary, red_flags, time_box_minutes, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		encounterID, patientID, string(e.Status), e.Summary, e.RedFlags, e.TimeBoxMinutes, e.CreatedAt.UTC())
	return err
}

// Get fetches an encounter by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Encounter, error) {
	encounterID, err := uuid.Parse(id)
	if err != nil {
		return Encounter{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+encounterColumns+` FROM encounters WHERE id = $1`, encounterID)
	return scanEncounter(row)
}

// MarkMatched transitions requested → matched and records the clinician.
func (r *PostgresRepository) MarkMatched(ctx context.Context, id, clinicianID string) (Encounter, error) {
	encounterID, err := uuid.Parse(id)
	if err != nil {
		return Encounter{}, ErrNotFound
	}
	cID, err := uuid.Parse(clinicianID)
	if err != nil {
		return Encounter{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `UPDATE encounters SET status = 'matched', clinician_id = $2
        WHERE id = $1 AND status = 'requested'
        RETURNING `+encounterColumns, encounterID, cID)
	e, err := scanEncounter(row)
	if errors.Is(err, ErrNotFound) {
		return r.transitionFailure(ctx, encounterID, ErrInvalidTransition)
	}
	return e, err
}

// MarkActive transitions matched → active for the assigned clinician only.
func (r *PostgresRepository) MarkActive(ctx context.Context, id, clinicianID string, at time.Time) (Encounter, error) {
	encounterID, err := uuid.Parse(id)
	if err != nil {
		return Encounter{}, ErrNotFound
	}
	cID, err := uuid.Parse(clinicianID)
	if err != nil {
		return Encounter{}, ErrConflict
	}
	row := r.db.QueryRow(ctx, `UPDATE encounters SET status = 'active', started_at = $3
        WHERE id = $1 AND status = 'matched' AND clinician_id = $2
        RETURNING `+encounterColumns, encounterID, cID, at.UTC())
	e, err := scanEncounter(row)
	if errors.Is(err, ErrNotFound) {
		return r.transitionFailure(ctx, encounterID, ErrConflict)
	}
	return e, err
}

// ApplyExtension adds minutes to the time box once. The repeat call is a
// no-op success (applied=false).
func (r *PostgresRepository) ApplyExtension(ctx context.Context, id string, minutes int) (Encounter, bool, error) {
	encounterID, err := uuid.Parse(id)
	if err != nil {
		return Encounter{}, false, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `UPDATE encounters SET status = 'extended',
            time_box_minutes = time_box_minutes + $2, extension_applied = TRUE
        WHERE id = $1 AND status IN ('active', 'extended') AND NOT extension_applied
        RETURNING `+encounterColumns, encounterID, minutes)
	e, err := scanEncounter(row)
	if err == nil {
		return e, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Encounter{}, false, err
	}

	// Zero rows: either already extended (idempotent no-op) or a state error.
	current, err := r.Get(ctx, id)
	if err != nil {
		return Encounter{}, false, err
	}
	if current.ExtensionApplied && (current.Status == StatusActive || current.Status == StatusExtended) {
		return current, false, nil
	}
	return Encounter{}, false, ErrInvalidTransition
}

// MarkCompleted transitions active/extended → completed, computing duration
// from the start instant.
func (r *PostgresRepository) MarkCompleted(ctx context.Context, id, clinicianID string, endedAt time.Time, notes string) (Encounter, error) {
	encounterID, err := uuid.Parse(id)
	if err != nil {
		return Encounter{}, ErrNotFound
	}
	cID, err := uuid.Parse(clinicianID)
	if err != nil {
		return Encounter{}, ErrConflict
	}
	row := r.db.QueryRow(ctx, `UPDATE encounters SET status = 'completed', ended_at = $3, notes = $4,
            duration_minutes = CEIL(EXTRACT(EPOCH FROM ($3 - started_at)) / 60)
        WHERE id = $1 AND status IN ('active', 'extended') AND clinician_id = $2
        RETURNING `+encounterColumns, encounterID, cID, endedAt.UTC(), notes)
	e, err := scanEncounter(row)
	if errors.Is(err, ErrNotFound) {
		return r.transitionFailure(ctx, encounterID, ErrConflict)
	}
	return e, err
}

// MarkCancelled transitions requested/matched → cancelled. Once clinical work
// has started, cancellation is forbidden.
func (r *PostgresRepository) MarkCancelled(ctx context.Context, id string) (Encounter, error) {
	encounterID, err := uuid.Parse(id)
	if err != nil {
		return Encounter{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `UPDATE encounters SET status = 'cancelled'
        WHERE id = $1 AND status IN ('requested', 'matched')
        RETURNING `+encounterColumns, encounterID)
	e, err := scanEncounter(row)
	if errors.Is(err, ErrNotFound) {
		return r.transitionFailure(ctx, encounterID, ErrInvalidTransition)
	}
	return e, err
}

// transitionFailure distinguishes a missing row from a state-machine
// violation after a conditional update matched nothing.
func (r *PostgresRepository) transitionFailure(ctx context.Context, id uuid.UUID, stateErr error) (Encounter, error) {
	row := r.db.QueryRow(ctx, `SELECT `+encounterColumns+` FROM encounters WHERE id = $1`, id)
	if _, err := scanEncounter(row); err != nil {
		return Encounter{}, err
	}
	return Encounter{}, stateErr
}

func scanEncounter(row pgx.Row) (Encounter, error) {
	var (
		id          uuid.UUID
		patientID   uuid.UUID
		clinicianID *uuid.UUID
		status      string
		startedAt   *time.Time
		endedAt     *time.Time
		duration    *int
		createdAt   time.Time
		e           Encounter
	)
	if err := row.Scan(&id, &patientID, &clinicianID, &status, &e.Summary, &e.RedFlags,
		&e.TimeBoxMinutes, &e.ExtensionApplied, &startedAt, &endedAt, &duration, &e.Notes, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Encounter{}, ErrNotFound
		}
		return Encounter{}, err
	}
	e.ID = id.String()
	e.PatientID = patientID.String()
	if clinicianID != nil {
		e.ClinicianID = clinicianID.String()
	}
	e.Status = Status(status)
	if startedAt != nil {
		e.StartedAt = startedAt.UTC()
	}
	if endedAt != nil {
		e.EndedAt = endedAt.UTC()
	}
	if duration != nil {
		e.DurationMinutes = *duration
	}
	e.CreatedAt = createdAt.UTC()
	return e, nil
}
