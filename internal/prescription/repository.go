package prescription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no prescription (or claim) exists for the key.
	ErrNotFound = errors.New("prescription not found")
	// ErrAlreadyUsed indicates the prescription has already been claimed or
	// fulfilled; the exactly-once gate rejected the call.
	ErrAlreadyUsed = errors.New("prescription already used")
)

// Repository persists prescriptions and redemption claims. CreateClaim and
// Fulfill are the invariant-bearing paths: each is one atomic unit of work
// whose state check cannot interleave with a concurrent equivalent.
type Repository interface {
	Create(ctx context.Context, p Prescription) error
	Get(ctx context.Context, id string) (Prescription, error)
	FindByToken(ctx context.Context, token string) (Prescription, error)
	MarkExpired(ctx context.Context, id string) error
	CreateClaim(ctx context.Context, c Claim) error
	Fulfill(ctx context.Context, prescriptionID, pharmacyID string, items []Item) (Claim, error)
	DisableRedemption(ctx context.Context, id string) (Prescription, error)
}

// PostgresRepository stores prescriptions in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the prescription header and its line items in one
// transaction. Partial line-item writes are never observable.
func (r *PostgresRepository) Create(ctx context.Context, p Prescription) error {
	prescriptionID, err := uuid.Parse(p.ID)
	if err != nil {
		return err
	}
	encounterID, err := uuid.Parse(p.EncounterID)
	if err != nil {
		return err
	}
	clinicianID, err := uuid.Parse(p.ClinicianID)
	if err != nil {
		return err
	}
	patientID, err := uuid.Parse(p.PatientID)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `INSERT INTO prescriptions
        (id, encounter_id, clinician_id, patient_id, token, redeem_enabled, expires_at, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		prescriptionID, encounterID, clinicianID, patientID, p.Token, p.RedeemEnabled,
		p.ExpiresAt.UTC(), string(p.Status), p.CreatedAt.UTC()); err != nil {
		return err
	}

	for i, item := range p.Items {
		if _, err := tx.Exec(ctx, `INSERT INTO prescription_items
            (id, prescription_id, position, drug, strength, form, quantity, instructions, substitution_allowed)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			uuid.New(), prescriptionID, i, item.Drug, item.Strength, item.Form,
			item.Quantity, item.Instructions, item.SubstitutionAllowed); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Get fetches a prescription with its line items.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Prescription, error) {
	prescriptionID, err := uuid.Parse(id)
	if err != nil {
		return Prescription{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+prescriptionColumns+` FROM prescriptions WHERE id = $1`, prescriptionID)
	return r.scanWithItems(ctx, row)
}

// FindByToken fetches a prescription by its redemption token.
func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (Prescription, error) {
	row := r.db.QueryRow(ctx, `SELECT `+prescriptionColumns+` FROM prescriptions WHERE token = $1`, token)
	return r.scanWithItems(ctx, row)
}

// MarkExpired records lazy expiry observed on read.
func (r *PostgresRepository) MarkExpired(ctx context.Context, id string) error {
	prescriptionID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	_, err = r.db.Exec(ctx, `UPDATE prescriptions SET status = 'expired'
        WHERE id = $1 AND status IN ('active', 'claimed')`, prescriptionID)
	return err
}

// CreateClaim opens a redemption claim, moving the prescription from active
// to claimed. A second redemption loses the conditional update and gets
// ErrAlreadyUsed.
func (r *PostgresRepository) CreateClaim(ctx context.Context, c Claim) error {
	prescriptionID, err := uuid.Parse(c.PrescriptionID)
	if err != nil {
		return ErrNotFound
	}
	claimID, err := uuid.Parse(c.ID)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	cmd, err := tx.Exec(ctx, `UPDATE prescriptions SET status = 'claimed'
        WHERE id = $1 AND status = 'active'`, prescriptionID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyUsed
	}

	if _, err := tx.Exec(ctx, `INSERT INTO redemption_claims (id, prescription_id, pharmacy_id, status, created_at)
        VALUES ($1, $2, $3, $4, $5)`, claimID, prescriptionID, c.PharmacyID, string(c.Status), c.CreatedAt.UTC()); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Fulfill transitions the claim to dispensed and the prescription to
// fulfilled in a single unit of work. Exactly one concurrent caller
// succeeds; the rest observe ErrAlreadyUsed.
func (r *PostgresRepository) Fulfill(ctx context.Context, prescriptionID, pharmacyID string, items []Item) (Claim, error) {
	pID, err := uuid.Parse(prescriptionID)
	if err != nil {
		return Claim{}, ErrNotFound
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Claim{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var status string
	if err := tx.QueryRow(ctx, `SELECT status FROM prescriptions WHERE id = $1 FOR UPDATE`, pID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Claim{}, ErrNotFound
		}
		return Claim{}, err
	}
	switch Status(status) {
	case StatusFulfilled:
		return Claim{}, ErrAlreadyUsed
	case StatusClaimed:
	default:
		return Claim{}, ErrNotFound
	}

	var (
		claimID   uuid.UUID
		createdAt time.Time
	)
	if err := tx.QueryRow(ctx, `SELECT id, created_at FROM redemption_claims
        WHERE prescription_id = $1 AND pharmacy_id = $2 AND status = 'ready' FOR UPDATE`,
		pID, pharmacyID).Scan(&claimID, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Claim{}, ErrNotFound
		}
		return Claim{}, err
	}

	if _, err := tx.Exec(ctx, `UPDATE redemption_claims SET status = 'dispensed' WHERE id = $1`, claimID); err != nil {
		return Claim{}, err
	}
	for i, item := range items {
		if _, err := tx.Exec(ctx, `INSERT INTO dispensed_items
            (id, claim_id, position, drug, strength, form, quantity, instructions, substitution_allowed)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			uuid.New(), claimID, i, item.Drug, item.Strength, item.Form,
			item.Quantity, item.Instructions, item.SubstitutionAllowed); err != nil {
			return Claim{}, err
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE prescriptions SET status = 'fulfilled', redeem_enabled = FALSE WHERE id = $1`, pID); err != nil {
		return Claim{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Claim{}, err
	}

	return Claim{
		ID:             claimID.String(),
		PrescriptionID: prescriptionID,
		PharmacyID:     pharmacyID,
		Status:         ClaimDispensed,
		DispensedItems: items,
		CreatedAt:      createdAt.UTC(),
	}, nil
}

// DisableRedemption permanently clears the redemption-enabled flag. There is
// no path that sets it back.
func (r *PostgresRepository) DisableRedemption(ctx context.Context, id string) (Prescription, error) {
	prescriptionID, err := uuid.Parse(id)
	if err != nil {
		return Prescription{}, ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE prescriptions SET redeem_enabled = FALSE WHERE id = $1`, prescriptionID)
	if err != nil {
		return Prescription{}, err
	}
	if cmd.RowsAffected() == 0 {
		return Prescription{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

const prescriptionColumns = `id, encounter_id, clinician_id, patient_id, token, redeem_enabled, expires_at, status, created_at`

func (r *PostgresRepository) scanWithItems(ctx context.Context, row pgx.Row) (Prescription, error) {
	var (
		id        uuid.UUID
		status    string
		expiresAt time.Time
		createdAt time.Time
		p         Prescription
	)
	if err := row.Scan(&id, &p.EncounterID, &p.ClinicianID, &p.PatientID, &p.Token,
		&p.RedeemEnabled, &expiresAt, &status, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Prescription{}, ErrNotFound
		}
		return Prescription{}, err
	}
	p.ID = id.String()
	p.Status = Status(status)
	p.ExpiresAt = expiresAt.UTC()
	p.CreatedAt = createdAt.UTC()

	rows, err := r.db.Query(ctx, `SELECT drug, strength, form, quantity, instructions, substitution_allowed
        FROM prescription_items WHERE prescription_id = $1 ORDER BY position`, id)
	if err != nil {
		return Prescription{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.Drug, &item.Strength, &item.Form, &item.Quantity,
			&item.Instructions, &item.SubstitutionAllowed); err != nil {
			return Prescription{}, err
		}
		p.Items = append(p.Items, item)
	}
	return p, rows.Err()
}
