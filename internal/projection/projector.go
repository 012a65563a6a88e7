// Package projection maintains the task read model. Every stored event is
// applied once, in stream order, updating the task record and appending one
// history entry. Re-running the projector over a stream from empty state
// reproduces the same record.
package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mtlprog/casetask/internal/domain"
)

// History labels.
const (
	LabelTaskCreated          = "Task Created"
	LabelTaskCompleted        = "Task Completed"
	LabelTaskCanceled         = "Task Canceled"
	LabelTaskDueDateUpdated   = "Task Due Date Updated"
	LabelTaskWorkQueueUpdated = "Task Work Queue Updated"
)

// historyNamespace seeds history entry ids so replays produce the same ids.
var historyNamespace = uuid.MustParse("4c7d8a3e-2f61-5b9a-9e0d-6a1b3c5d7e9f")

// Store persists task records and their history.
type Store interface {
	FindByTaskID(ctx context.Context, taskID string) (*domain.TaskRecord, error)
	Save(ctx context.Context, record *domain.TaskRecord) error
}

// Projector applies task events to the read model.
type Projector struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// NewProjector creates a Projector. A nil clock defaults to time.Now and a
// nil logger to slog.Default().
func NewProjector(store Store, now func() time.Time, logger *slog.Logger) *Projector {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Projector{store: store, now: now, logger: logger}
}

// Project applies one stored event. Events for tasks without a record, and
// events at or below the record's projected version, are skipped. An event
// past the next expected version is not applied and ErrProjectionGap is
// returned.
func (p *Projector) Project(ctx context.Context, env domain.Envelope) error {
	if created, ok := env.Event.(domain.TaskCreated); ok {
		return p.projectCreated(ctx, env, created)
	}

	record, err := p.store.FindByTaskID(ctx, env.TaskID)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			p.logger.Warn("task record not found, skipping event",
				"task_id", env.TaskID,
				"event_id", env.EventID,
				"event_type", env.Event.EventType(),
			)
			return nil
		}
		return fmt.Errorf("find task record: %w", err)
	}

	if env.Version > 0 && env.Version <= record.Version {
		p.logger.Debug("event already projected",
			"task_id", env.TaskID,
			"event_id", env.EventID,
			"version", env.Version,
			"projected_version", record.Version,
		)
		return nil
	}

	if env.Version > 0 && record.Version > 0 && env.Version > record.Version+1 {
		return fmt.Errorf("%w: task %s is projected to version %d, got version %d",
			domain.ErrProjectionGap, env.TaskID, record.Version, env.Version)
	}

	entry := domain.HistoryEntry{
		ID:           historyID(env),
		EventDate:    p.eventDate(env),
		ChangeAuthor: env.Event.ChangedBy().ChangeAuthor,
	}

	switch e := env.Event.(type) {
	case domain.TaskAssigned:
		entry.EventType = "Task " + titleCase(string(e.AssignmentType))
		entry.Details = details(e.Details)
		record.AssigneeID = e.AssigneeID
		record.AssigneeName = e.AssigneeName
		if e.AssignmentType == domain.AssignmentTypeUnassigned {
			record.Status = domain.TaskStatusCreated
		} else {
			record.Status = domain.TaskStatusAssigned
		}
	case domain.TaskCompleted:
		entry.EventType = LabelTaskCompleted
		completed := e.CompletedDate
		record.CompletedDate = &completed
		record.Status = domain.TaskStatusCompleted
	case domain.TaskDeleted:
		entry.EventType = LabelTaskCanceled
		record.Status = domain.TaskStatusDeleted
	case domain.TaskDueDateUpdated:
		entry.EventType = LabelTaskDueDateUpdated
		entry.Details = details(e.Details)
		record.DueDate = e.DueDate
	case domain.TaskWorkqueueUpdated:
		entry.EventType = LabelTaskWorkQueueUpdated
		entry.Details = details(e.Details)
		record.WorkQueueID = e.WorkQueueID
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownEventType, env.Event)
	}

	record.History = append(record.History, entry)
	if env.Version > 0 {
		record.Version = env.Version
	}

	if err := p.store.Save(ctx, record); err != nil {
		return fmt.Errorf("save task record: %w", err)
	}

	p.logger.Debug("event projected",
		"task_id", env.TaskID,
		"event_id", env.EventID,
		"event_type", env.Event.EventType(),
		"status", record.Status,
	)

	return nil
}

func (p *Projector) projectCreated(ctx context.Context, env domain.Envelope, e domain.TaskCreated) error {
	_, err := p.store.FindByTaskID(ctx, env.TaskID)
	switch {
	case err == nil:
		p.logger.Debug("task record already exists, skipping create",
			"task_id", env.TaskID,
			"event_id", env.EventID,
		)
		return nil
	case !errors.Is(err, domain.ErrTaskNotFound):
		return fmt.Errorf("find task record: %w", err)
	}

	record := &domain.TaskRecord{
		TaskID:       e.TaskID,
		Reference:    e.Reference,
		Type:         e.Type,
		TaskTypeID:   e.TaskTypeID,
		CreatedDate:  e.CreatedDate,
		DueDate:      e.DueDate,
		Status:       domain.TaskStatusCreated,
		WorkQueueID:  e.WorkQueueID,
		CourtID:      e.CourtID,
		Jurisdiction: e.Jurisdiction,
		HearingDate:  e.HearingDate,
		Version:      env.Version,
		History: []domain.HistoryEntry{{
			ID:           historyID(env),
			EventDate:    e.CreatedDate,
			EventType:    LabelTaskCreated,
			ChangeAuthor: e.ChangeAuthor,
		}},
	}

	if err := p.store.Save(ctx, record); err != nil {
		return fmt.Errorf("save task record: %w", err)
	}

	p.logger.Debug("task record created", "task_id", env.TaskID, "event_id", env.EventID)
	return nil
}

// eventDate is the envelope's commit time, or now when it carries none.
func (p *Projector) eventDate(env domain.Envelope) time.Time {
	if env.RecordedAt != nil {
		return *env.RecordedAt
	}
	return p.now()
}

// historyID derives the entry id from the event id, or from the stream
// position when the envelope carries no event id.
func historyID(env domain.Envelope) string {
	name := env.EventID
	if name == "" {
		name = fmt.Sprintf("%s/%d", env.TaskID, env.Version)
	}
	return uuid.NewSHA1(historyNamespace, []byte(name)).String()
}

// titleCase turns "UNASSIGNED" into "Unassigned".
func titleCase(s string) string {
	return cases.Title(language.English).String(strings.ToLower(s))
}

func details(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
