package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRecorder appends audit records to PostgreSQL.
type PostgresRecorder struct {
	db *pgxpool.Pool
}

// NewPostgresRecorder builds a Postgres-backed audit recorder.
func NewPostgresRecorder(db *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

func (r *PostgresRecorder) Record(ctx context.Context, rec Record) error {
	recID, err := uuid.Parse(rec.ID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}
	var actor any
	if rec.ActorID != "" {
		actor = rec.ActorID
	}
	_, err = r.db.Exec(ctx, `INSERT INTO audit_records (id, actor_id, event, resource_type, resource_id, payload, at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`, recID, actor, rec.Event, rec.ResourceType, rec.ResourceID, payload, rec.At.UTC())
	return err
}
