package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/onap/policy-clamp-acm/internal/infrastructure/database"
	"github.com/onap/policy-clamp-acm/internal/model"
)

const definitionColumns = `composition_id, name, version, template, state, state_change_result,
			element_states, last_msg, created_at, updated_at`

// SQLiteDefinitionRepository implements DefinitionStore using SQLite.
// The service template and element prime states are stored as JSON.
type SQLiteDefinitionRepository struct {
	db *database.DB
}

// NewSQLiteDefinitionRepository creates a new SQLite-backed repository.
func NewSQLiteDefinitionRepository(db *database.DB) *SQLiteDefinitionRepository {
	return &SQLiteDefinitionRepository{db: db}
}

// Get retrieves a definition by composition id.
func (r *SQLiteDefinitionRepository) Get(ctx context.Context, compositionID string) (*model.CompositionDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM composition_definitions WHERE composition_id = ?`

	def, err := scanDefinition(r.db.QueryRowContext(ctx, query, compositionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: composition definition %s", model.ErrNotFound, compositionID)
		}
		return nil, fmt.Errorf("querying composition definition: %w", err)
	}
	return def, nil
}

// List retrieves definitions matching filter ordered by name then version.
func (r *SQLiteDefinitionRepository) List(ctx context.Context, filter DefinitionFilter) ([]model.CompositionDefinition, error) {
	var (
		where []string
		args  []any
	)
	if filter.Name != "" {
		where = append(where, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.Version != "" {
		where = append(where, "version = ?")
		args = append(args, filter.Version)
	}

	query := `SELECT ` + definitionColumns + ` FROM composition_definitions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name, version"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying composition definitions: %w", err)
	}
	defer rows.Close()

	var defs []model.CompositionDefinition
	for rows.Next() {
		def, scanErr := scanDefinition(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning composition definition: %w", scanErr)
		}
		defs = append(defs, *def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating composition definitions: %w", err)
	}
	return defs, nil
}

// Create inserts a new definition.
func (r *SQLiteDefinitionRepository) Create(ctx context.Context, def *model.CompositionDefinition) error {
	tmpl, states, err := marshalDefinition(def)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now
	if def.LastMsg.IsZero() {
		def.LastMsg = now
	}

	query := `
		INSERT INTO composition_definitions (
			composition_id, name, version, template, state, state_change_result,
			element_states, last_msg, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		def.CompositionID,
		def.Name,
		def.Version,
		tmpl,
		string(def.State),
		string(def.StateChangeResult),
		states,
		formatTime(def.LastMsg),
		formatTime(def.CreatedAt),
		formatTime(def.UpdatedAt),
	)
	if err != nil {
		if database.IsUniqueConstraintError(err) {
			return fmt.Errorf("%w: composition definition %s %s", model.ErrAlreadyDefined, def.Name, def.Version)
		}
		return fmt.Errorf("inserting composition definition: %w", err)
	}
	return nil
}

// Update modifies an existing definition.
func (r *SQLiteDefinitionRepository) Update(ctx context.Context, def *model.CompositionDefinition) error {
	tmpl, states, err := marshalDefinition(def)
	if err != nil {
		return err
	}
	def.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE composition_definitions SET
			name = ?, version = ?, template = ?, state = ?, state_change_result = ?,
			element_states = ?, last_msg = ?, updated_at = ?
		WHERE composition_id = ?`

	result, err := r.db.ExecContext(ctx, query,
		def.Name,
		def.Version,
		tmpl,
		string(def.State),
		string(def.StateChangeResult),
		states,
		formatTime(def.LastMsg),
		formatTime(def.UpdatedAt),
		def.CompositionID,
	)
	if err != nil {
		if database.IsUniqueConstraintError(err) {
			return fmt.Errorf("%w: composition definition %s %s", model.ErrAlreadyDefined, def.Name, def.Version)
		}
		return fmt.Errorf("updating composition definition: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: composition definition %s", model.ErrNotFound, def.CompositionID))
}

// Delete removes a definition. It fails while compositions reference it.
func (r *SQLiteDefinitionRepository) Delete(ctx context.Context, compositionID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM composition_definitions WHERE composition_id = ?", compositionID)
	if err != nil {
		return fmt.Errorf("deleting composition definition: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: composition definition %s", model.ErrNotFound, compositionID))
}

func marshalDefinition(def *model.CompositionDefinition) (tmpl, states string, err error) {
	tmpl, err = marshalJSON(def.Template)
	if err != nil {
		return "", "", fmt.Errorf("marshalling template: %w", err)
	}
	elementStates := def.ElementStates
	if elementStates == nil {
		elementStates = map[string]model.ElementDefinitionState{}
	}
	states, err = marshalJSON(elementStates)
	if err != nil {
		return "", "", fmt.Errorf("marshalling element states: %w", err)
	}
	return tmpl, states, nil
}

func scanDefinition(scanner rowScanner) (*model.CompositionDefinition, error) {
	var def model.CompositionDefinition
	var tmpl, states, state, result string
	var lastMsg, createdAt, updatedAt string

	err := scanner.Scan(
		&def.CompositionID,
		&def.Name,
		&def.Version,
		&tmpl,
		&state,
		&result,
		&states,
		&lastMsg,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	def.State = model.DefinitionState(state)
	def.StateChangeResult = model.StateChangeResult(result)
	def.LastMsg = parseTime(lastMsg)
	def.CreatedAt = parseTime(createdAt)
	def.UpdatedAt = parseTime(updatedAt)

	if err := unmarshalJSON(tmpl, &def.Template); err != nil {
		return nil, fmt.Errorf("unmarshalling template: %w", err)
	}
	if err := unmarshalJSON(states, &def.ElementStates); err != nil {
		return nil, fmt.Errorf("unmarshalling element states: %w", err)
	}
	return &def, nil
}
