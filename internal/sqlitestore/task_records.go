package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/mtlprog/casetask/internal/domain"
)

var recordColumns = []string{
	"task_id", "reference", "type", "task_type_id", "created_date", "due_date",
	"completed_date", "status", "work_queue_id", "court_id", "jurisdiction",
	"hearing_date", "assignee_id", "assignee_name", "version",
}

// TaskRecords is the SQLite read model of tasks and their history.
type TaskRecords struct {
	db *DB
}

// NewTaskRecords creates a TaskRecords store on an open database.
func NewTaskRecords(db *DB) *TaskRecords {
	return &TaskRecords{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.TaskRecord, error) {
	var (
		rec                        domain.TaskRecord
		created                    string
		status                     string
		due, completed, hearing    sql.NullString
		queue, court, jurisdiction sql.NullString
		assigneeID, assigneeName   sql.NullString
	)
	err := row.Scan(
		&rec.TaskID,
		&rec.Reference,
		&rec.Type,
		&rec.TaskTypeID,
		&created,
		&due,
		&completed,
		&status,
		&queue,
		&court,
		&jurisdiction,
		&hearing,
		&assigneeID,
		&assigneeName,
		&rec.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task record: %w", err)
	}

	if rec.CreatedDate, err = parseTime(created); err != nil {
		return nil, err
	}
	if rec.DueDate, err = parseTimePtr(due); err != nil {
		return nil, err
	}
	if rec.CompletedDate, err = parseTimePtr(completed); err != nil {
		return nil, err
	}
	if rec.HearingDate, err = parseTimePtr(hearing); err != nil {
		return nil, err
	}

	rec.Status = domain.TaskStatus(status)
	rec.WorkQueueID = stringPtr(queue)
	rec.CourtID = stringPtr(court)
	rec.AssigneeID = stringPtr(assigneeID)
	rec.AssigneeName = stringPtr(assigneeName)
	if jurisdiction.Valid {
		j := domain.Jurisdiction(jurisdiction.String)
		rec.Jurisdiction = &j
	}

	return &rec, nil
}

// FindByTaskID returns the record of a task with its full history.
func (s *TaskRecords) FindByTaskID(ctx context.Context, taskID string) (*domain.TaskRecord, error) {
	query, args, err := qb.
		Select(recordColumns...).
		From("task_records").
		Where(sq.Eq{"task_id": taskID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build FindByTaskID query: %w", err)
	}

	rec, err := scanRecord(s.db.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}

	rec.History, err = s.history(ctx, taskID)
	if err != nil {
		return nil, err
	}

	return rec, nil
}

func (s *TaskRecords) history(ctx context.Context, taskID string) ([]domain.HistoryEntry, error) {
	query, args, err := qb.
		Select("id", "event_date", "event_type", "change_author", "details").
		From("task_history").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("position ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query task history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var (
			entry     domain.HistoryEntry
			eventDate string
			details   sql.NullString
		)
		if err := rows.Scan(&entry.ID, &eventDate, &entry.EventType, &entry.ChangeAuthor, &details); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if entry.EventDate, err = parseTime(eventDate); err != nil {
			return nil, err
		}
		entry.Details = stringPtr(details)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return entries, nil
}

// Save upserts the record and inserts history entries not yet stored.
func (s *TaskRecords) Save(ctx context.Context, rec *domain.TaskRecord) error {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := qb.
		Insert("task_records").
		Columns(recordColumns...).
		Values(
			rec.TaskID,
			rec.Reference,
			rec.Type,
			rec.TaskTypeID,
			formatTime(rec.CreatedDate),
			formatTimePtr(rec.DueDate),
			formatTimePtr(rec.CompletedDate),
			string(rec.Status),
			nullable(rec.WorkQueueID),
			nullable(rec.CourtID),
			nullable(rec.Jurisdiction),
			formatTimePtr(rec.HearingDate),
			nullable(rec.AssigneeID),
			nullable(rec.AssigneeName),
			rec.Version,
		).
		Suffix(upsertSuffix()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Save query for task %s: %w", rec.TaskID, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert task record: %w", err)
	}

	for i, entry := range rec.History {
		query, args, err := qb.
			Insert("task_history").
			Options("OR IGNORE").
			Columns("id", "task_id", "position", "event_date", "event_type", "change_author", "details").
			Values(entry.ID, rec.TaskID, i, formatTime(entry.EventDate), entry.EventType, entry.ChangeAuthor, nullable(entry.Details)).
			ToSql()
		if err != nil {
			return fmt.Errorf("build history insert for task %s: %w", rec.TaskID, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert history entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Delete removes a record and, through the foreign key, its history.
func (s *TaskRecords) Delete(ctx context.Context, taskID string) error {
	query, args, err := qb.
		Delete("task_records").
		Where(sq.Eq{"task_id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Delete query for task %s: %w", taskID, err)
	}

	if _, err := s.db.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete task record: %w", err)
	}

	return nil
}

// List retrieves task records, without history, with filters and pagination.
func (s *TaskRecords) List(ctx context.Context, filter domain.TaskFilter) ([]*domain.TaskRecord, int, error) {
	query, args, err := applyFilters(qb.Select(recordColumns...).From("task_records"), filter).
		OrderBy("created_date ASC", "task_id ASC").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build List query: %w", err)
	}

	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query task records: %w", err)
	}
	defer rows.Close()

	records := []*domain.TaskRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate rows: %w", err)
	}
	rows.Close()

	countQuery, countArgs, err := applyFilters(qb.Select("COUNT(*)").From("task_records"), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	var total int
	if err := s.db.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count task records: %w", err)
	}

	return records, total, nil
}

func applyFilters(b sq.SelectBuilder, filter domain.TaskFilter) sq.SelectBuilder {
	if len(filter.Statuses) > 0 {
		b = b.Where(sq.Eq{"status": filter.StatusStrings()})
	}
	if filter.WorkQueueID != nil {
		b = b.Where(sq.Eq{"work_queue_id": *filter.WorkQueueID})
	}
	if filter.Unassigned {
		b = b.Where(sq.Eq{"assignee_id": nil})
	} else if filter.AssigneeID != nil {
		b = b.Where(sq.Eq{"assignee_id": *filter.AssigneeID})
	}
	return b
}

func upsertSuffix() string {
	sets := make([]string, 0, len(recordColumns)-1)
	for _, col := range recordColumns[1:] {
		sets = append(sets, col+" = excluded."+col)
	}
	return "ON CONFLICT (task_id) DO UPDATE SET " + strings.Join(sets, ", ")
}
