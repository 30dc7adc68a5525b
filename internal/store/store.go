package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/onap/policy-clamp-acm/internal/model"
)

// CompositionFilter narrows composition listings. Empty fields match all.
type CompositionFilter struct {
	Name          string
	Version       string
	CompositionID string
}

// Matches reports whether ac passes the filter.
func (f CompositionFilter) Matches(ac *model.AutomationComposition) bool {
	return (f.Name == "" || f.Name == ac.Name) &&
		(f.Version == "" || f.Version == ac.Version) &&
		(f.CompositionID == "" || f.CompositionID == ac.CompositionID)
}

// DefinitionFilter narrows definition listings. Empty fields match all.
type DefinitionFilter struct {
	Name    string
	Version string
}

// Matches reports whether def passes the filter.
func (f DefinitionFilter) Matches(def *model.CompositionDefinition) bool {
	return (f.Name == "" || f.Name == def.Name) &&
		(f.Version == "" || f.Version == def.Version)
}

// CompositionStore persists automation compositions with their elements.
// Implementations return deep copies; callers may mutate results freely.
type CompositionStore interface {
	Get(ctx context.Context, instanceID string) (*model.AutomationComposition, error)
	List(ctx context.Context, filter CompositionFilter) ([]model.AutomationComposition, error)
	Create(ctx context.Context, ac *model.AutomationComposition) error
	Update(ctx context.Context, ac *model.AutomationComposition) error
	// UpdateAll saves every composition atomically.
	UpdateAll(ctx context.Context, acs []*model.AutomationComposition) error
	Delete(ctx context.Context, instanceID string) error
}

// DefinitionStore persists commissioned composition definitions.
type DefinitionStore interface {
	Get(ctx context.Context, compositionID string) (*model.CompositionDefinition, error)
	List(ctx context.Context, filter DefinitionFilter) ([]model.CompositionDefinition, error)
	Create(ctx context.Context, def *model.CompositionDefinition) error
	Update(ctx context.Context, def *model.CompositionDefinition) error
	Delete(ctx context.Context, compositionID string) error
}

// ParticipantStore persists participant registrations.
type ParticipantStore interface {
	Get(ctx context.Context, participantID string) (*model.Participant, error)
	List(ctx context.Context) ([]model.Participant, error)
	Save(ctx context.Context, p *model.Participant) error
	Delete(ctx context.Context, participantID string) error
}

// RollbackStore keeps one pre-migration snapshot per instance.
type RollbackStore interface {
	Get(ctx context.Context, instanceID string) (*model.Rollback, error)
	Save(ctx context.Context, rb *model.Rollback) error
	Delete(ctx context.Context, instanceID string) error
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalJSON(s string, v any) error {
	if s == "" || s == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func checkAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
