package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mtlprog/casetask/internal/domain"
)

// EventLog is the append-only SQLite store of task event streams.
type EventLog struct {
	db  *DB
	now func() time.Time
}

// NewEventLog creates an EventLog on an open store.
func NewEventLog(db *DB) *EventLog {
	return &EventLog{db: db, now: time.Now}
}

// Load returns the stream of a task ordered by version.
func (l *EventLog) Load(ctx context.Context, taskID string) ([]domain.Envelope, error) {
	query, args, err := qb.
		Select("id", "task_id", "version", "event_type", "payload", "recorded_at").
		From("task_events").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("version ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Load query: %w", err)
	}

	rows, err := l.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query task events: %w", err)
	}
	defer rows.Close()

	var envelopes []domain.Envelope
	for rows.Next() {
		var (
			env        domain.Envelope
			eventType  string
			payload    string
			recordedAt string
		)
		if err := rows.Scan(&env.EventID, &env.TaskID, &env.Version, &eventType, &payload, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan task event: %w", err)
		}

		env.Event, err = domain.DecodeEvent(domain.EventType(eventType), []byte(payload))
		if err != nil {
			return nil, fmt.Errorf("decode event %s: %w", env.EventID, err)
		}
		recorded, err := parseTime(recordedAt)
		if err != nil {
			return nil, err
		}
		env.RecordedAt = &recorded
		envelopes = append(envelopes, env)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return envelopes, nil
}

// Append stores events after expectedVersion in one transaction. It returns
// ErrVersionConflict when the stream has moved past expectedVersion.
func (l *EventLog) Append(
	ctx context.Context,
	taskID string,
	expectedVersion int64,
	events []domain.Event,
) ([]domain.Envelope, error) {
	if len(events) == 0 {
		return nil, nil
	}

	tx, err := l.db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := currentVersion(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	if current != expectedVersion {
		return nil, fmt.Errorf("%w: task %s is at version %d, expected %d",
			domain.ErrVersionConflict, taskID, current, expectedVersion)
	}

	recordedAt := l.now().UTC()
	envelopes := make([]domain.Envelope, 0, len(events))
	for i, event := range events {
		payload, err := domain.EncodeEvent(event)
		if err != nil {
			return nil, err
		}

		env := domain.Envelope{
			EventID:    uuid.NewString(),
			TaskID:     taskID,
			Version:    expectedVersion + int64(i) + 1,
			RecordedAt: &recordedAt,
			Event:      event,
		}

		query, args, err := qb.
			Insert("task_events").
			Columns("id", "task_id", "version", "event_type", "payload", "recorded_at").
			Values(env.EventID, env.TaskID, env.Version, string(event.EventType()), string(payload), formatTime(recordedAt)).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build Append query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: task %s version %d already written",
					domain.ErrVersionConflict, taskID, env.Version)
			}
			return nil, fmt.Errorf("insert task event: %w", err)
		}
		envelopes = append(envelopes, env)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return envelopes, nil
}

// TaskIDs lists every task that has at least one stored event.
func (l *EventLog) TaskIDs(ctx context.Context) ([]string, error) {
	query, args, err := qb.
		Select("DISTINCT task_id").
		From("task_events").
		OrderBy("task_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build TaskIDs query: %w", err)
	}

	rows, err := l.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query task ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan task id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return ids, nil
}

func currentVersion(ctx context.Context, tx *sql.Tx, taskID string) (int64, error) {
	query, args, err := qb.
		Select("COALESCE(MAX(version), 0)").
		From("task_events").
		Where(sq.Eq{"task_id": taskID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build currentVersion query: %w", err)
	}

	var version int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&version); err != nil {
		return 0, fmt.Errorf("query stream version: %w", err)
	}
	return version, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
