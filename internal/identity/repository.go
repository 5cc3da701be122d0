package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no identity exists for the given key.
var ErrNotFound = errors.New("identity not found")

// Repository persists identities.
type Repository interface {
	Create(ctx context.Context, id Identity) error
	FindByPhone(ctx context.Context, phone string) (Identity, error)
	FindByID(ctx context.Context, id string) (Identity, error)
	UpdateRole(ctx context.Context, id string, role Role) error
	Invalidate(ctx context.Context, id string) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new identity.
func (r *PostgresRepository) Create(ctx context.Context, id Identity) error {
	identityID, err := uuid.Parse(id.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO identities (id, phone, role, verified_at, invalidated, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`, identityID, id.Phone, string(id.Role), id.VerifiedAt.UTC(), id.Invalidated, id.CreatedAt.UTC())
	return err
}

// FindByPhone fetches an identity by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (Identity, error) {
	row := r.db.QueryRow(ctx, `SELECT id, phone, role, verified_at, invalidated, created_at
        FROM identities WHERE phone = $1`, phone)
	return scanIdentity(row)
}

// FindByID fetches an identity by its identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Identity, error) {
	identityID, err := uuid.Parse(id)
	if err != nil {
		return Identity{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, phone, role, verified_at, invalidated, created_at
        FROM identities WHERE id = $1`, identityID)
	return scanIdentity(row)
}

// UpdateRole changes the role of an identity.
func (r *PostgresRepository) UpdateRole(ctx context.Context, id string, role Role) error {
	identityID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE identities SET role = $1 WHERE id = $2`, string(role), identityID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Invalidate soft-retires an identity. The row is retained for audit.
func (r *PostgresRepository) Invalidate(ctx context.Context, id string) error {
	identityID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE identities SET invalidated = TRUE WHERE id = $1`, identityID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanIdentity(row pgx.Row) (Identity, error) {
	var (
		id         uuid.UUID
		role       string
		verifiedAt time.Time
		createdAt  time.Time
		ident      Identity
	)
	if err := row.Scan(&id, &ident.Phone, &role, &verifiedAt, &ident.Invalidated, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, err
	}
	ident.ID = id.String()
	ident.Role = Role(role)
	ident.VerifiedAt = verifiedAt.UTC()
	ident.CreatedAt = createdAt.UTC()
	return ident, nil
}
