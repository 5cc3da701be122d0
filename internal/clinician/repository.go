package clinician

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no clinician exists for the given key.
	ErrNotFound = errors.New("clinician not found")
	// ErrNoCapacity indicates no eligible clinician has a free slot.
	ErrNoCapacity = errors.New("no clinician capacity")
)

// Repository persists clinicians and arbitrates assignment slots.
// AcquireSlot is one atomic decision: pick the least-loaded eligible
// clinician (stable tie-break by arrival then id) and increment its load,
// or fail with ErrNoCapacity.
type Repository interface {
	Create(ctx context.Context, c Clinician) error
	Get(ctx context.Context, id string) (Clinician, error)
	FindByIdentity(ctx context.Context, identityID string) (Clinician, error)
	AcquireSlot(ctx context.Context, kind Kind) (Clinician, error)
	ReleaseSlot(ctx context.Context, id string) error
}

// PostgresRepository stores clinicians in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a clinician record.
func (r *PostgresRepository) Create(ctx context.Context, c Clinician) error {
	clinicianID, err := uuid.Parse(c.ID)
	if err != nil {
		return err
	}
	identityID, err := uuid.Parse(c.IdentityID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO clinicians (id, identity_id, name, kind, capacity, active_load, active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		clinicianID, identityID, c.Name, string(c.Kind), c.Capacity, c.ActiveLoad, c.Active, c.CreatedAt.UTC())
	return err
}

// Get fetches a clinician by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Clinician, error) {
	clinicianID, err := uuid.Parse(id)
	if err != nil {
		return Clinician{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, identity_id, name, kind, capacity, active_load, active, created_at
        FROM clinicians WHERE id = $1`, clinicianID)
	return scanClinician(row)
}

// FindByIdentity fetches the clinician bound to an identity.
func (r *PostgresRepository) FindByIdentity(ctx context.Context, identityID string) (Clinician, error) {
	id, err := uuid.Parse(identityID)
	if err != nil {
		return Clinician{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, identity_id, name, kind, capacity, active_load, active, created_at
        FROM clinicians WHERE identity_id = $1`, id)
	return scanClinician(row)
}

// AcquireSlot selects the least-loaded eligible clinician of the kind and
// conditionally increments its load, all under one row lock.
func (r *PostgresRepository) AcquireSlot(ctx context.Context, kind Kind) (Clinician, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Clinician{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// SKIP LOCKED keeps contending acquisitions from observing a spurious
	// zero-row result when the locked candidate fails the re-check.
	row := tx.QueryRow(ctx, `SELECT id, identity_id, name, kind, capacity, active_load, active, created_at
        FROM clinicians
        WHERE kind = $1 AND active AND active_load < capacity
        ORDER BY active_load ASC, created_at ASC, id ASC
        LIMIT 1
        FOR UPDATE SKIP LOCKED`, string(kind))
	chosen, err := scanClinician(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Clinician{}, ErrNoCapacity
		}
		return Clinician{}, err
	}

	clinicianID, err := uuid.Parse(chosen.ID)
	if err != nil {
		return Clinician{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE clinicians SET active_load = active_load + 1 WHERE id = $1`, clinicianID); err != nil {
		return Clinician{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Clinician{}, err
	}
	chosen.ActiveLoad++
	return chosen, nil
}

// ReleaseSlot decrements the clinician's load when an encounter reaches a
// terminal state. Floors at zero.
func (r *PostgresRepository) ReleaseSlot(ctx context.Context, id string) error {
	clinicianID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE clinicians SET active_load = GREATEST(active_load - 1, 0) WHERE id = $1`, clinicianID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanClinician(row pgx.Row) (Clinician, error) {
	var (
		id         uuid.UUID
		identityID uuid.UUID
		kind       string
		createdAt  time.Time
		c          Clinician
	)
	if err := row.Scan(&id, &identityID, &c.Name, &kind, &c.Capacity, &c.ActiveLoad, &c.Active, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Clinician{}, ErrNotFound
		}
		return Clinician{}, err
	}
	c.ID = id.String()
	c.IdentityID = identityID.String()
	c.Kind = Kind(kind)
	c.CreatedAt = createdAt.UTC()
	return c, nil
}
