package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/onap/policy-clamp-acm/internal/infrastructure/database"
	"github.com/onap/policy-clamp-acm/internal/model"
)

// SQLiteRollbackRepository implements RollbackStore using SQLite.
type SQLiteRollbackRepository struct {
	db *database.DB
}

// NewSQLiteRollbackRepository creates a new SQLite-backed repository.
func NewSQLiteRollbackRepository(db *database.DB) *SQLiteRollbackRepository {
	return &SQLiteRollbackRepository{db: db}
}

// Get retrieves the snapshot for an instance.
func (r *SQLiteRollbackRepository) Get(ctx context.Context, instanceID string) (*model.Rollback, error) {
	query := `SELECT instance_id, composition_id, elements, created_at FROM composition_rollbacks WHERE instance_id = ?`

	var rb model.Rollback
	var elements, createdAt string
	err := r.db.QueryRowContext(ctx, query, instanceID).Scan(&rb.InstanceID, &rb.CompositionID, &elements, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: rollback for %s", model.ErrNotFound, instanceID)
		}
		return nil, fmt.Errorf("querying rollback: %w", err)
	}
	if err := unmarshalJSON(elements, &rb.Elements); err != nil {
		return nil, fmt.Errorf("unmarshalling rollback elements: %w", err)
	}
	rb.CreatedAt = parseTime(createdAt)
	return &rb, nil
}

// Save stores a snapshot, replacing any previous one for the instance.
func (r *SQLiteRollbackRepository) Save(ctx context.Context, rb *model.Rollback) error {
	elements, err := marshalJSON(rb.Elements)
	if err != nil {
		return fmt.Errorf("marshalling rollback elements: %w", err)
	}

	query := `
		INSERT INTO composition_rollbacks (instance_id, composition_id, elements, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(instance_id) DO UPDATE SET
			composition_id = excluded.composition_id,
			elements = excluded.elements,
			created_at = excluded.created_at`

	if _, err := r.db.ExecContext(ctx, query, rb.InstanceID, rb.CompositionID, elements, formatTime(rb.CreatedAt)); err != nil {
		return fmt.Errorf("saving rollback: %w", err)
	}
	return nil
}

// Delete removes the snapshot for an instance.
func (r *SQLiteRollbackRepository) Delete(ctx context.Context, instanceID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM composition_rollbacks WHERE instance_id = ?", instanceID)
	if err != nil {
		return fmt.Errorf("deleting rollback: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: rollback for %s", model.ErrNotFound, instanceID))
}
