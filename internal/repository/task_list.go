package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/mtlprog/casetask/internal/domain"
)

// applyFilters adds the WHERE clauses shared by the page and count queries.
func applyFilters(qb sq.SelectBuilder, filter domain.TaskFilter) sq.SelectBuilder {
	if len(filter.Statuses) > 0 {
		qb = qb.Where(sq.Eq{"status": filter.StatusStrings()})
	}

	if filter.WorkQueueID != nil {
		qb = qb.Where(sq.Eq{"work_queue_id": *filter.WorkQueueID})
	}

	if filter.Unassigned {
		qb = qb.Where(sq.Eq{"assignee_id": nil})
	} else if filter.AssigneeID != nil {
		qb = qb.Where(sq.Eq{"assignee_id": *filter.AssigneeID})
	}

	return qb
}

// List retrieves task records, without history, with filters and pagination.
// The second result is the total number of matching records.
func (r *TaskRecordRepository) List(ctx context.Context, filter domain.TaskFilter) ([]*domain.TaskRecord, int, error) {
	qb := applyFilters(psql.Select(recordColumns...).From("task_records"), filter).
		OrderBy("created_date ASC", "task_id ASC").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset))

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build List query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
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

	countQuery, countArgs, err := applyFilters(psql.Select("COUNT(*)").From("task_records"), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count task records: %w", err)
	}

	return records, total, nil
}
