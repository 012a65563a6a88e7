package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/casetask/internal/domain"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// EventLog is the append-only PostgreSQL store of task event streams.
type EventLog struct {
	pool *pgxpool.Pool
}

// NewEventLog creates a new EventLog.
func NewEventLog(pool *pgxpool.Pool) *EventLog {
	return &EventLog{pool: pool}
}

// Load returns the stream of a task ordered by version. An unknown task has
// an empty stream.
func (r *EventLog) Load(ctx context.Context, taskID string) ([]domain.Envelope, error) {
	query, args, err := psql.
		Select("id", "task_id", "version", "event_type", "payload", "recorded_at").
		From("task_events").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("version ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Load query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query task events: %w", err)
	}
	defer rows.Close()

	var envelopes []domain.Envelope
	for rows.Next() {
		var (
			env        domain.Envelope
			eventType  string
			payload    []byte
			recordedAt time.Time
		)
		if err := rows.Scan(&env.EventID, &env.TaskID, &env.Version, &eventType, &payload, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan task event: %w", err)
		}

		env.Event, err = domain.DecodeEvent(domain.EventType(eventType), payload)
		if err != nil {
			return nil, fmt.Errorf("decode event %s: %w", env.EventID, err)
		}
		recordedAt = recordedAt.UTC()
		env.RecordedAt = &recordedAt
		envelopes = append(envelopes, env)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return envelopes, nil
}

// Append stores events after expectedVersion in one transaction. It returns
// ErrVersionConflict when the stream has moved past expectedVersion.
func (r *EventLog) Append(
	ctx context.Context,
	taskID string,
	expectedVersion int64,
	events []domain.Event,
) ([]domain.Envelope, error) {
	if len(events) == 0 {
		return nil, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := r.currentVersion(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	if current != expectedVersion {
		return nil, fmt.Errorf("%w: task %s is at version %d, expected %d",
			domain.ErrVersionConflict, taskID, current, expectedVersion)
	}

	envelopes := make([]domain.Envelope, 0, len(events))
	for i, event := range events {
		payload, err := domain.EncodeEvent(event)
		if err != nil {
			return nil, err
		}

		env := domain.Envelope{
			EventID: uuid.NewString(),
			TaskID:  taskID,
			Version: expectedVersion + int64(i) + 1,
			Event:   event,
		}

		query, args, err := psql.
			Insert("task_events").
			Columns("id", "task_id", "version", "event_type", "payload").
			Values(env.EventID, env.TaskID, env.Version, string(event.EventType()), string(payload)).
			Suffix("RETURNING recorded_at").
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build Append query: %w", err)
		}

		var recordedAt time.Time
		if err := tx.QueryRow(ctx, query, args...).Scan(&recordedAt); err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: task %s version %d already written",
					domain.ErrVersionConflict, taskID, env.Version)
			}
			return nil, fmt.Errorf("insert task event: %w", err)
		}
		recordedAt = recordedAt.UTC()
		env.RecordedAt = &recordedAt
		envelopes = append(envelopes, env)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: task %s", domain.ErrVersionConflict, taskID)
		}
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return envelopes, nil
}

// TaskIDs lists every task that has at least one stored event.
func (r *EventLog) TaskIDs(ctx context.Context) ([]string, error) {
	query, args, err := psql.
		Select("DISTINCT task_id").
		From("task_events").
		OrderBy("task_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build TaskIDs query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
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

func (r *EventLog) currentVersion(ctx context.Context, tx pgx.Tx, taskID string) (int64, error) {
	query, args, err := psql.
		Select("COALESCE(MAX(version), 0)").
		From("task_events").
		Where(sq.Eq{"task_id": taskID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build currentVersion query: %w", err)
	}

	var version int64
	if err := tx.QueryRow(ctx, query, args...).Scan(&version); err != nil {
		return 0, fmt.Errorf("query stream version: %w", err)
	}
	return version, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
