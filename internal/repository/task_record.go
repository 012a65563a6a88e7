package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/casetask/internal/domain"
)

// recordColumns is the shared list of columns for task record queries.
var recordColumns = []string{
	"task_id", "reference", "type", "task_type_id", "created_date", "due_date",
	"completed_date", "status", "work_queue_id", "court_id", "jurisdiction",
	"hearing_date", "assignee_id", "assignee_name", "version",
}

// TaskRecordRepository is the PostgreSQL read model of tasks and their history.
type TaskRecordRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRecordRepository creates a new TaskRecordRepository.
func NewTaskRecordRepository(pool *pgxpool.Pool) *TaskRecordRepository {
	return &TaskRecordRepository{pool: pool}
}

// scanRecord scans a single row into a TaskRecord without its history.
func scanRecord(row pgx.Row) (*domain.TaskRecord, error) {
	var rec domain.TaskRecord
	err := row.Scan(
		&rec.TaskID,
		&rec.Reference,
		&rec.Type,
		&rec.TaskTypeID,
		&rec.CreatedDate,
		&rec.DueDate,
		&rec.CompletedDate,
		&rec.Status,
		&rec.WorkQueueID,
		&rec.CourtID,
		&rec.Jurisdiction,
		&rec.HearingDate,
		&rec.AssigneeID,
		&rec.AssigneeName,
		&rec.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task record: %w", err)
	}
	return &rec, nil
}

// FindByTaskID returns the record of a task with its full history.
func (r *TaskRecordRepository) FindByTaskID(ctx context.Context, taskID string) (*domain.TaskRecord, error) {
	query, args, err := psql.
		Select(recordColumns...).
		From("task_records").
		Where(sq.Eq{"task_id": taskID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build FindByTaskID query: %w", err)
	}

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}

	rec.History, err = r.history(ctx, taskID)
	if err != nil {
		return nil, err
	}

	return rec, nil
}

func (r *TaskRecordRepository) history(ctx context.Context, taskID string) ([]domain.HistoryEntry, error) {
	query, args, err := psql.
		Select("id", "event_date", "event_type", "change_author", "details").
		From("task_history").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("position ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query task history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(&entry.ID, &entry.EventDate, &entry.EventType, &entry.ChangeAuthor, &entry.Details); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entry.EventDate = entry.EventDate.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return entries, nil
}

// Save upserts the record and inserts history entries not yet stored.
func (r *TaskRecordRepository) Save(ctx context.Context, rec *domain.TaskRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query, args, err := psql.
		Insert("task_records").
		Columns(recordColumns...).
		Values(
			rec.TaskID,
			rec.Reference,
			rec.Type,
			rec.TaskTypeID,
			rec.CreatedDate,
			rec.DueDate,
			rec.CompletedDate,
			string(rec.Status),
			rec.WorkQueueID,
			rec.CourtID,
			rec.Jurisdiction,
			rec.HearingDate,
			rec.AssigneeID,
			rec.AssigneeName,
			rec.Version,
		).
		Suffix(upsertSuffix()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Save query for task %s: %w", rec.TaskID, err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert task record: %w", err)
	}

	for i, entry := range rec.History {
		query, args, err := psql.
			Insert("task_history").
			Columns("id", "task_id", "position", "event_date", "event_type", "change_author", "details").
			Values(entry.ID, rec.TaskID, i, entry.EventDate, entry.EventType, entry.ChangeAuthor, entry.Details).
			Suffix("ON CONFLICT (id) DO NOTHING").
			ToSql()
		if err != nil {
			return fmt.Errorf("build history insert for task %s: %w", rec.TaskID, err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert history entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Delete removes a record and its history. Deleting an absent record is not
// an error.
func (r *TaskRecordRepository) Delete(ctx context.Context, taskID string) error {
	query, args, err := psql.
		Delete("task_records").
		Where(sq.Eq{"task_id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Delete query for task %s: %w", taskID, err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete task record: %w", err)
	}

	return nil
}

// upsertSuffix updates every non-key column on conflict.
func upsertSuffix() string {
	sets := make([]string, 0, len(recordColumns)-1)
	for _, col := range recordColumns[1:] {
		sets = append(sets, col+" = EXCLUDED."+col)
	}
	return "ON CONFLICT (task_id) DO UPDATE SET " + strings.Join(sets, ", ")
}
