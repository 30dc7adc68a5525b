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

// compositionColumns is the SELECT column list for composition queries.
const compositionColumns = `instance_id, name, version, composition_id, composition_target_id,
			deploy_state, lock_state, sub_state, state_change_result, phase,
			last_msg, description, created_at, updated_at`

// elementColumns is the SELECT column list for element queries.
const elementColumns = `instance_id, element_id, definition_name, definition_version, participant_id,
			deploy_state, lock_state, sub_state, stage, properties, out_properties,
			operational_state, use_state, message, description`

// SQLiteCompositionRepository implements CompositionStore using SQLite.
type SQLiteCompositionRepository struct {
	db *database.DB
}

// NewSQLiteCompositionRepository creates a new SQLite-backed repository.
func NewSQLiteCompositionRepository(db *database.DB) *SQLiteCompositionRepository {
	return &SQLiteCompositionRepository{db: db}
}

// Get retrieves a composition and its elements by instance id.
func (r *SQLiteCompositionRepository) Get(ctx context.Context, instanceID string) (*model.AutomationComposition, error) {
	query := `SELECT ` + compositionColumns + ` FROM automation_compositions WHERE instance_id = ?`

	ac, err := scanComposition(r.db.QueryRowContext(ctx, query, instanceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: composition %s", model.ErrNotFound, instanceID)
		}
		return nil, fmt.Errorf("querying composition: %w", err)
	}

	elements, err := r.loadElements(ctx, []string{instanceID})
	if err != nil {
		return nil, err
	}
	ac.Elements = elements[instanceID]
	return ac, nil
}

// List retrieves compositions matching filter ordered by name then version.
func (r *SQLiteCompositionRepository) List(ctx context.Context, filter CompositionFilter) ([]model.AutomationComposition, error) {
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
	if filter.CompositionID != "" {
		where = append(where, "composition_id = ?")
		args = append(args, filter.CompositionID)
	}

	query := `SELECT ` + compositionColumns + ` FROM automation_compositions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name, version"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying compositions: %w", err)
	}
	defer rows.Close()

	var (
		compositions []model.AutomationComposition
		ids          []string
	)
	for rows.Next() {
		ac, scanErr := scanComposition(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning composition: %w", scanErr)
		}
		compositions = append(compositions, *ac)
		ids = append(ids, ac.InstanceID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating compositions: %w", err)
	}
	if len(ids) == 0 {
		return compositions, nil
	}

	elements, err := r.loadElements(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range compositions {
		compositions[i].Elements = elements[compositions[i].InstanceID]
	}
	return compositions, nil
}

// Create inserts a composition and its elements in one transaction.
// A duplicate instance id or name/version returns model.ErrAlreadyDefined.
func (r *SQLiteCompositionRepository) Create(ctx context.Context, ac *model.AutomationComposition) error {
	now := time.Now().UTC()
	if ac.CreatedAt.IsZero() {
		ac.CreatedAt = now
	}
	ac.UpdatedAt = now
	if ac.LastMsg.IsZero() {
		ac.LastMsg = now
	}

	query := `
		INSERT INTO automation_compositions (
			instance_id, name, version, composition_id, composition_target_id,
			deploy_state, lock_state, sub_state, state_change_result, phase,
			last_msg, description, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, query,
			ac.InstanceID,
			ac.Name,
			ac.Version,
			ac.CompositionID,
			nullableString(ac.CompositionTargetID),
			string(ac.DeployState),
			string(ac.LockState),
			string(ac.SubState),
			string(ac.StateChangeResult),
			nullableInt(ac.Phase),
			formatTime(ac.LastMsg),
			nullableString(ac.Description),
			formatTime(ac.CreatedAt),
			formatTime(ac.UpdatedAt),
		); err != nil {
			return err
		}
		return insertElements(ctx, tx, ac)
	})
	if err != nil {
		if database.IsUniqueConstraintError(err) {
			return fmt.Errorf("%w: composition %s (%s %s)", model.ErrAlreadyDefined, ac.InstanceID, ac.Name, ac.Version)
		}
		return fmt.Errorf("inserting composition: %w", err)
	}
	return nil
}

// Update rewrites a composition row and replaces its elements.
func (r *SQLiteCompositionRepository) Update(ctx context.Context, ac *model.AutomationComposition) error {
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		return updateComposition(ctx, tx, ac)
	})
	return updateError(err, ac)
}

// UpdateAll rewrites every composition in one transaction. Either all of
// them are saved or none is.
func (r *SQLiteCompositionRepository) UpdateAll(ctx context.Context, acs []*model.AutomationComposition) error {
	var failed *model.AutomationComposition
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, ac := range acs {
			if err := updateComposition(ctx, tx, ac); err != nil {
				failed = ac
				return err
			}
		}
		return nil
	})
	if err != nil && failed != nil {
		return updateError(err, failed)
	}
	if err != nil {
		return fmt.Errorf("updating compositions: %w", err)
	}
	return nil
}

func updateComposition(ctx context.Context, tx *sql.Tx, ac *model.AutomationComposition) error {
	ac.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE automation_compositions SET
			name = ?, version = ?, composition_id = ?, composition_target_id = ?,
			deploy_state = ?, lock_state = ?, sub_state = ?, state_change_result = ?,
			phase = ?, last_msg = ?, description = ?, updated_at = ?
		WHERE instance_id = ?`

	result, err := tx.ExecContext(ctx, query,
		ac.Name,
		ac.Version,
		ac.CompositionID,
		nullableString(ac.CompositionTargetID),
		string(ac.DeployState),
		string(ac.LockState),
		string(ac.SubState),
		string(ac.StateChangeResult),
		nullableInt(ac.Phase),
		formatTime(ac.LastMsg),
		nullableString(ac.Description),
		formatTime(ac.UpdatedAt),
		ac.InstanceID,
	)
	if err != nil {
		return err
	}
	if err := checkAffected(result, fmt.Errorf("%w: composition %s", model.ErrNotFound, ac.InstanceID)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM composition_elements WHERE instance_id = ?", ac.InstanceID); err != nil {
		return err
	}
	return insertElements(ctx, tx, ac)
}

func updateError(err error, ac *model.AutomationComposition) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrNotFound):
		return err
	case database.IsUniqueConstraintError(err):
		return fmt.Errorf("%w: composition %s (%s %s)", model.ErrAlreadyDefined, ac.InstanceID, ac.Name, ac.Version)
	default:
		return fmt.Errorf("updating composition: %w", err)
	}
}

// Delete removes a composition. Elements and rollback snapshots cascade.
func (r *SQLiteCompositionRepository) Delete(ctx context.Context, instanceID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM automation_compositions WHERE instance_id = ?", instanceID)
	if err != nil {
		return fmt.Errorf("deleting composition: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: composition %s", model.ErrNotFound, instanceID))
}

func insertElements(ctx context.Context, tx execer, ac *model.AutomationComposition) error {
	query := `
		INSERT INTO composition_elements (
			instance_id, element_id, position, definition_name, definition_version, participant_id,
			deploy_state, lock_state, sub_state, stage, properties, out_properties,
			operational_state, use_state, message, description
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for i, e := range ac.Elements {
		props, err := marshalJSON(emptyIfNil(e.Properties))
		if err != nil {
			return fmt.Errorf("marshalling properties of %s: %w", e.ID, err)
		}
		outProps, err := marshalJSON(emptyIfNil(e.OutProperties))
		if err != nil {
			return fmt.Errorf("marshalling out properties of %s: %w", e.ID, err)
		}
		if _, err := tx.ExecContext(ctx, query,
			ac.InstanceID,
			e.ID,
			i,
			e.Definition.Name,
			e.Definition.Version,
			e.ParticipantID,
			string(e.DeployState),
			string(e.LockState),
			string(e.SubState),
			nullableInt(e.Stage),
			props,
			outProps,
			nullableString(e.OperationalState),
			nullableString(e.UseState),
			nullableString(e.Message),
			nullableString(e.Description),
		); err != nil {
			return err
		}
	}
	return nil
}

// loadElements returns elements grouped by instance id in position order.
func (r *SQLiteCompositionRepository) loadElements(ctx context.Context, instanceIDs []string) (map[string][]model.Element, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(instanceIDs)), ",")
	args := make([]any, len(instanceIDs))
	for i, id := range instanceIDs {
		args[i] = id
	}

	query := `SELECT ` + elementColumns + ` FROM composition_elements
		WHERE instance_id IN (` + placeholders + `) ORDER BY instance_id, position`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying elements: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]model.Element, len(instanceIDs))
	for rows.Next() {
		instanceID, e, scanErr := scanElement(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning element: %w", scanErr)
		}
		result[instanceID] = append(result[instanceID], e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating elements: %w", err)
	}
	return result, nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

func scanComposition(scanner rowScanner) (*model.AutomationComposition, error) {
	var ac model.AutomationComposition
	var targetID, description sql.NullString
	var deployState, lockState, subState, result string
	var phase sql.NullInt64
	var lastMsg, createdAt, updatedAt string

	err := scanner.Scan(
		&ac.InstanceID,
		&ac.Name,
		&ac.Version,
		&ac.CompositionID,
		&targetID,
		&deployState,
		&lockState,
		&subState,
		&result,
		&phase,
		&lastMsg,
		&description,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	ac.CompositionTargetID = targetID.String
	ac.Description = description.String
	ac.DeployState = model.DeployState(deployState)
	ac.LockState = model.LockState(lockState)
	ac.SubState = model.SubState(subState)
	ac.StateChangeResult = model.StateChangeResult(result)
	ac.Phase = intPtr(phase)
	ac.LastMsg = parseTime(lastMsg)
	ac.CreatedAt = parseTime(createdAt)
	ac.UpdatedAt = parseTime(updatedAt)
	ac.Elements = []model.Element{}
	return &ac, nil
}

func scanElement(scanner rowScanner) (string, model.Element, error) {
	var instanceID string
	var e model.Element
	var deployState, lockState, subState string
	var stage sql.NullInt64
	var props, outProps string
	var opState, useState, message, description sql.NullString

	err := scanner.Scan(
		&instanceID,
		&e.ID,
		&e.Definition.Name,
		&e.Definition.Version,
		&e.ParticipantID,
		&deployState,
		&lockState,
		&subState,
		&stage,
		&props,
		&outProps,
		&opState,
		&useState,
		&message,
		&description,
	)
	if err != nil {
		return "", e, err
	}

	e.DeployState = model.DeployState(deployState)
	e.LockState = model.LockState(lockState)
	e.SubState = model.SubState(subState)
	e.Stage = intPtr(stage)
	e.OperationalState = opState.String
	e.UseState = useState.String
	e.Message = message.String
	e.Description = description.String

	if err := unmarshalJSON(props, &e.Properties); err != nil {
		return "", e, fmt.Errorf("unmarshalling properties: %w", err)
	}
	if err := unmarshalJSON(outProps, &e.OutProperties); err != nil {
		return "", e, fmt.Errorf("unmarshalling out properties: %w", err)
	}
	if len(e.Properties) == 0 {
		e.Properties = nil
	}
	if len(e.OutProperties) == 0 {
		e.OutProperties = nil
	}
	return instanceID, e, nil
}

func emptyIfNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
