package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/onap/policy-clamp-acm/internal/infrastructure/database"
	"github.com/onap/policy-clamp-acm/internal/model"
)

const participantColumns = `participant_id, state, health, supported_element_types, last_seen, created_at`

// SQLiteParticipantRepository implements ParticipantStore using SQLite.
type SQLiteParticipantRepository struct {
	db *database.DB
}

// NewSQLiteParticipantRepository creates a new SQLite-backed repository.
func NewSQLiteParticipantRepository(db *database.DB) *SQLiteParticipantRepository {
	return &SQLiteParticipantRepository{db: db}
}

// Get retrieves a participant by id.
func (r *SQLiteParticipantRepository) Get(ctx context.Context, participantID string) (*model.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE participant_id = ?`

	p, err := scanParticipant(r.db.QueryRowContext(ctx, query, participantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: participant %s", model.ErrNotFound, participantID)
		}
		return nil, fmt.Errorf("querying participant: %w", err)
	}
	return p, nil
}

// List retrieves all participants ordered by id.
func (r *SQLiteParticipantRepository) List(ctx context.Context) ([]model.Participant, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+participantColumns+` FROM participants ORDER BY participant_id`)
	if err != nil {
		return nil, fmt.Errorf("querying participants: %w", err)
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		p, scanErr := scanParticipant(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning participant: %w", scanErr)
		}
		participants = append(participants, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating participants: %w", err)
	}
	return participants, nil
}

// Save inserts or replaces a participant registration.
func (r *SQLiteParticipantRepository) Save(ctx context.Context, p *model.Participant) error {
	types := p.SupportedElementTypes
	if types == nil {
		types = []model.ElementType{}
	}
	typesJSON, err := marshalJSON(types)
	if err != nil {
		return fmt.Errorf("marshalling supported element types: %w", err)
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO participants (participant_id, state, health, supported_element_types, last_seen, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(participant_id) DO UPDATE SET
			state = excluded.state,
			health = excluded.health,
			supported_element_types = excluded.supported_element_types,
			last_seen = excluded.last_seen`

	if _, err := r.db.ExecContext(ctx, query,
		p.ParticipantID,
		string(p.State),
		string(p.Health),
		typesJSON,
		formatTime(p.LastSeen),
		formatTime(p.CreatedAt),
	); err != nil {
		return fmt.Errorf("saving participant: %w", err)
	}
	return nil
}

// Delete removes a participant registration.
func (r *SQLiteParticipantRepository) Delete(ctx context.Context, participantID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM participants WHERE participant_id = ?", participantID)
	if err != nil {
		return fmt.Errorf("deleting participant: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: participant %s", model.ErrNotFound, participantID))
}

func scanParticipant(scanner rowScanner) (*model.Participant, error) {
	var p model.Participant
	var state, health, types, lastSeen, createdAt string

	if err := scanner.Scan(&p.ParticipantID, &state, &health, &types, &lastSeen, &createdAt); err != nil {
		return nil, err
	}

	p.State = model.ParticipantState(state)
	p.Health = model.ParticipantHealth(health)
	p.LastSeen = parseTime(lastSeen)
	p.CreatedAt = parseTime(createdAt)
	if err := unmarshalJSON(types, &p.SupportedElementTypes); err != nil {
		return nil, fmt.Errorf("unmarshalling supported element types: %w", err)
	}
	return &p, nil
}
