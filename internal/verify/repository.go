package verify

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no live challenge exists for the phone number.
	ErrNotFound = errors.New("challenge not found")
	// ErrExpired indicates the challenge is past its expiry instant.
	ErrExpired = errors.New("challenge expired")
	// ErrInvalidCode indicates the submitted code did not match.
	ErrInvalidCode = errors.New("invalid code")
	// ErrTooManyAttempts indicates the attempt cap has been reached.
	ErrTooManyAttempts = errors.New("too many attempts")
)

// Repository persists one-time challenges, keyed by phone number. Consume is
// the serialized read-decide-write path: concurrent calls for the same phone
// must never double-count attempts.
type Repository interface {
	Find(ctx context.Context, phone string) (Challenge, error)
	Upsert(ctx context.Context, ch Challenge) error
	Consume(ctx context.Context, phone, code string, now time.Time) (Challenge, error)
}

// PostgresRepository implements Repository using PostgreSQL. Per-phone
// serialization comes from the row lock taken inside Consume.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed challenge repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Find fetches the challenge for a phone number.
func (r *PostgresRepository) Find(ctx context.Context, phone string) (Challenge, error) {
	row := r.db.QueryRow(ctx, `SELECT phone, code_hash, expires_at, attempts, status, created_at
        FROM challenges WHERE phone = $1`, phone)
	return scanChallenge(row)
}

// Upsert replaces the live challenge for a phone number. There is never more
// than one row per phone.
func (r *PostgresRepository) Upsert(ctx context.Context, ch Challenge) error {
	_, err := r.db.Exec(ctx, `INSERT INTO challenges (phone, code_hash, expires_at, attempts, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (phone) DO UPDATE SET
            code_hash = EXCLUDED.code_hash,
            expires_at = EXCLUDED.expires_at,
            attempts = EXCLUDED.attempts,
            status = EXCLUDED.status,
            created_at = EXCLUDED.created_at`,
		ch.Phone, ch.CodeHash, ch.ExpiresAt.UTC(), ch.Attempts, string(ch.Status), ch.CreatedAt.UTC())
	return err
}

// Consume verifies a code against the pending challenge in one transaction,
// recording attempt increments and lazy expiry as side effects.
func (r *PostgresRepository) Consume(ctx context.Context, phone, code string, now time.Time) (Challenge, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Challenge{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	row := tx.QueryRow(ctx, `SELECT phone, code_hash, expires_at, attempts, status, created_at
        FROM challenges WHERE phone = $1 FOR UPDATE`, phone)
	ch, err := scanChallenge(row)
	if err != nil {
		return Challenge{}, err
	}

	outcome, err := applyVerification(&ch, code, now)
	if err != nil {
		return Challenge{}, err
	}

	if _, err := tx.Exec(ctx, `UPDATE challenges SET attempts = $2, status = $3 WHERE phone = $1`,
		ch.Phone, ch.Attempts, string(ch.Status)); err != nil {
		return Challenge{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Challenge{}, err
	}
	return ch, outcome
}

// applyVerification mutates the challenge per the verification rules and
// returns the outcome error (nil on success). Shared by both backends so the
// transition rules live in one place.
func applyVerification(ch *Challenge, code string, now time.Time) (outcome error, fatal error) {
	switch ch.Status {
	case StatusVerified, StatusExpired:
		return ErrNotFound, nil
	case StatusLocked:
		if ch.Expired(now) {
			ch.Status = StatusExpired
			return ErrNotFound, nil
		}
		return ErrTooManyAttempts, nil
	}

	if ch.Expired(now) {
		ch.Status = StatusExpired
		return ErrExpired, nil
	}

	if ch.Attempts >= MaxAttempts {
		ch.Status = StatusLocked
		return ErrTooManyAttempts, nil
	}

	if !MatchCode(ch.CodeHash, code) {
		ch.Attempts++
		if ch.Attempts >= MaxAttempts {
			ch.Status = StatusLocked
			return ErrTooManyAttempts, nil
		}
		return ErrInvalidCode, nil
	}

	ch.Status = StatusVerified
	return nil, nil
}

func scanChallenge(row pgx.Row) (Challenge, error) {
	var (
		status    string
		expiresAt time.Time
		createdAt time.Time
		ch        Challenge
	)
	if err := row.Scan(&ch.Phone, &ch.CodeHash, &expiresAt, &ch.Attempts, &status, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Challenge{}, ErrNotFound
		}
		return Challenge{}, err
	}
	ch.Status = Status(status)
	ch.ExpiresAt = expiresAt.UTC()
	ch.CreatedAt = createdAt.UTC()
	return ch, nil
}
