package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mtlprog/casetask/internal/aggregate"
	"github.com/mtlprog/casetask/internal/domain"
	"github.com/mtlprog/casetask/internal/projection"
)

// DefaultAppendAttempts is how many times a command is decided against a
// freshly loaded stream before a version conflict is returned.
const DefaultAppendAttempts = 3

// List page bounds.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// EventLog stores task event streams.
type EventLog interface {
	Load(ctx context.Context, taskID string) ([]domain.Envelope, error)
	Append(ctx context.Context, taskID string, expectedVersion int64, events []domain.Event) ([]domain.Envelope, error)
	TaskIDs(ctx context.Context) ([]string, error)
}

// ReadModel stores projected task records.
type ReadModel interface {
	projection.Store
	Delete(ctx context.Context, taskID string) error
	List(ctx context.Context, filter domain.TaskFilter) ([]*domain.TaskRecord, int, error)
}

// WorkQueueResolver looks up work-queue display names.
type WorkQueueResolver interface {
	ResolveWorkQueueName(ctx context.Context, workQueueID string) (string, bool)
}

// Options tunes a TaskService. Zero values select defaults.
type Options struct {
	AppendAttempts int
	Now            func() time.Time
	Logger         *slog.Logger
}

// TaskService runs task commands against the event log and keeps the read
// model in step.
type TaskService struct {
	events    EventLog
	records   ReadModel
	resolver  WorkQueueResolver
	projector *projection.Projector
	attempts  int
	now       func() time.Time
	logger    *slog.Logger
}

// NewTaskService creates a new TaskService.
func NewTaskService(events EventLog, records ReadModel, resolver WorkQueueResolver, opts Options) *TaskService {
	if opts.AppendAttempts <= 0 {
		opts.AppendAttempts = DefaultAppendAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &TaskService{
		events:    events,
		records:   records,
		resolver:  resolver,
		projector: projection.NewProjector(records, opts.Now, opts.Logger),
		attempts:  opts.AppendAttempts,
		now:       opts.Now,
		logger:    opts.Logger,
	}
}

// CommandResult describes the events a command stored.
type CommandResult struct {
	TaskID  string
	Version int64             // stream version after the command
	Events  []domain.Envelope // empty when the command changed nothing
}

// CreateTaskParams holds the parameters for creating a task.
type CreateTaskParams struct {
	TaskID       string // generated when empty
	TaskTypeID   string
	Type         string
	Reference    string
	Note         string
	CreatedDate  time.Time // defaults to now
	DueDate      *time.Time
	HearingDate  *time.Time
	WorkQueueID  *string
	CourtID      *string
	Jurisdiction *string
	Author       domain.Author
}

// AssignTaskParams holds the parameters for assigning a task. A nil
// AssigneeID un-assigns it.
type AssignTaskParams struct {
	TaskID       string
	AssigneeID   *string
	AssigneeName *string
	Author       domain.Author
}

// CompleteTaskParams holds the parameters for completing a task.
type CompleteTaskParams struct {
	TaskID        string
	CompletedDate time.Time // defaults to now
	Author        domain.Author
}

// DeleteTaskParams holds the parameters for deleting a task.
type DeleteTaskParams struct {
	TaskID         string
	DeletionReason string
	DeletedDate    time.Time // defaults to now
	Author         domain.Author
}

// UpdateTaskParams holds the desired due date and work queue. Nil values
// remove the current value.
type UpdateTaskParams struct {
	TaskID      string
	DueDate     *time.Time
	WorkQueueID *string
	Author      domain.Author
}

type streamExpectation int

const (
	streamMustBeEmpty streamExpectation = iota
	streamMustExist
)

// CreateTask starts a new task stream.
func (s *TaskService) CreateTask(ctx context.Context, params CreateTaskParams) (*CommandResult, error) {
	if params.TaskID == "" {
		params.TaskID = uuid.NewString()
	}
	if params.CreatedDate.IsZero() {
		params.CreatedDate = s.now().UTC()
	}

	cmd := aggregate.CreateTask{
		TaskTypeID:    params.TaskTypeID,
		Type:          params.Type,
		Reference:     params.Reference,
		Note:          params.Note,
		CreatedDate:   params.CreatedDate,
		DueDate:       params.DueDate,
		HearingDate:   params.HearingDate,
		WorkQueueID:   params.WorkQueueID,
		WorkQueueName: s.workQueueName(ctx, params.WorkQueueID),
		CourtID:       params.CourtID,
		Jurisdiction:  params.Jurisdiction,
		Author:        params.Author,
	}

	result, err := s.execute(ctx, params.TaskID, streamMustBeEmpty, func(task *aggregate.Task) ([]domain.Event, error) {
		return task.Create(cmd)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task created",
		"task_id", result.TaskID,
		"reference", params.Reference,
		"author_id", params.Author.ChangeAuthorID,
	)

	return result, nil
}

// AssignTask assigns, re-assigns or un-assigns a task.
func (s *TaskService) AssignTask(ctx context.Context, params AssignTaskParams) (*CommandResult, error) {
	cmd := aggregate.AssignTask{
		AssigneeID:   params.AssigneeID,
		AssigneeName: params.AssigneeName,
		Author:       params.Author,
	}

	result, err := s.execute(ctx, params.TaskID, streamMustExist, func(task *aggregate.Task) ([]domain.Event, error) {
		return task.Assign(cmd)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task assignment changed",
		"task_id", result.TaskID,
		"assignee_id", deref(params.AssigneeID),
		"version", result.Version,
	)

	return result, nil
}

// CompleteTask records that a task was finished.
func (s *TaskService) CompleteTask(ctx context.Context, params CompleteTaskParams) (*CommandResult, error) {
	if params.CompletedDate.IsZero() {
		params.CompletedDate = s.now().UTC()
	}

	cmd := aggregate.CompleteTask{
		CompletedDate: params.CompletedDate,
		Author:        params.Author,
	}

	result, err := s.execute(ctx, params.TaskID, streamMustExist, func(task *aggregate.Task) ([]domain.Event, error) {
		return task.Complete(cmd)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task completed", "task_id", result.TaskID, "version", result.Version)

	return result, nil
}

// DeleteTask records that a task was withdrawn.
func (s *TaskService) DeleteTask(ctx context.Context, params DeleteTaskParams) (*CommandResult, error) {
	if params.DeletedDate.IsZero() {
		params.DeletedDate = s.now().UTC()
	}

	cmd := aggregate.DeleteTask{
		DeletionReason: params.DeletionReason,
		DeletedDate:    params.DeletedDate,
		Author:         params.Author,
	}

	result, err := s.execute(ctx, params.TaskID, streamMustExist, func(task *aggregate.Task) ([]domain.Event, error) {
		return task.Delete(cmd)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task deleted",
		"task_id", result.TaskID,
		"reason", params.DeletionReason,
		"version", result.Version,
	)

	return result, nil
}

// UpdateTask changes the due date and work queue. Unchanged values produce
// no events.
func (s *TaskService) UpdateTask(ctx context.Context, params UpdateTaskParams) (*CommandResult, error) {
	cmd := aggregate.UpdateTask{
		DueDate:       params.DueDate,
		WorkQueueID:   params.WorkQueueID,
		WorkQueueName: s.workQueueName(ctx, params.WorkQueueID),
		Author:        params.Author,
	}

	result, err := s.execute(ctx, params.TaskID, streamMustExist, func(task *aggregate.Task) ([]domain.Event, error) {
		return task.Update(cmd)
	})
	if err != nil {
		return nil, err
	}

	if len(result.Events) == 0 {
		s.logger.Debug("task update changed nothing", "task_id", result.TaskID)
	} else {
		s.logger.Info("task updated",
			"task_id", result.TaskID,
			"events", len(result.Events),
			"version", result.Version,
		)
	}

	return result, nil
}

// GetTask returns the read-model record of a task with its history.
func (s *TaskService) GetTask(ctx context.Context, taskID string) (*domain.TaskRecord, error) {
	if err := aggregate.ValidateID("task id", taskID); err != nil {
		return nil, err
	}
	return s.records.FindByTaskID(ctx, taskID)
}

// ListTasks returns a page of task records and the total number of matches.
func (s *TaskService) ListTasks(ctx context.Context, filter domain.TaskFilter) ([]*domain.TaskRecord, int, error) {
	for _, st := range filter.Statuses {
		if !st.IsValid() {
			return nil, 0, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidArgument, st)
		}
	}
	if filter.WorkQueueID != nil {
		if err := aggregate.ValidateID("work queue id", *filter.WorkQueueID); err != nil {
			return nil, 0, err
		}
	}
	if filter.AssigneeID != nil {
		if err := aggregate.ValidateID("assignee id", *filter.AssigneeID); err != nil {
			return nil, 0, err
		}
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultListLimit
	case filter.Limit > MaxListLimit:
		filter.Limit = MaxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	return s.records.List(ctx, filter)
}

// GetEvents returns the stored event stream of a task.
func (s *TaskService) GetEvents(ctx context.Context, taskID string) ([]domain.Envelope, error) {
	if err := aggregate.ValidateID("task id", taskID); err != nil {
		return nil, err
	}

	envelopes, err := s.events.Load(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task events: %w", err)
	}
	if len(envelopes) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}

	return envelopes, nil
}

// RebuildTask drops the read-model record of a task and re-projects its
// full stream.
func (s *TaskService) RebuildTask(ctx context.Context, taskID string) (*domain.TaskRecord, error) {
	if _, err := s.GetEvents(ctx, taskID); err != nil {
		return nil, err
	}

	if err := s.records.Delete(ctx, taskID); err != nil {
		return nil, fmt.Errorf("delete task record: %w", err)
	}

	// The stream is read after the delete so that events appended while the
	// record was missing are included. The second pass picks up events
	// appended during the first.
	if _, err := s.catchUp(ctx, taskID); err != nil {
		return nil, err
	}
	count, err := s.catchUp(ctx, taskID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("task record rebuilt", "task_id", taskID, "events", count)

	return s.records.FindByTaskID(ctx, taskID)
}

// catchUp loads the stream and projects it in order. Events the record
// already holds are skipped by the projector. Returns the stream length.
func (s *TaskService) catchUp(ctx context.Context, taskID string) (int, error) {
	envelopes, err := s.events.Load(ctx, taskID)
	if err != nil {
		return 0, fmt.Errorf("load task events: %w", err)
	}

	for _, env := range envelopes {
		if err := s.projector.Project(ctx, env); err != nil {
			return 0, fmt.Errorf("project event %s: %w", env.EventID, err)
		}
	}
	return len(envelopes), nil
}

// RebuildAll rebuilds every task that has events. Returns the number of
// tasks rebuilt, and an error if any task failed.
func (s *TaskService) RebuildAll(ctx context.Context) (int, error) {
	taskIDs, err := s.events.TaskIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list task ids: %w", err)
	}

	if len(taskIDs) == 0 {
		s.logger.Info("no task streams to rebuild")
		return 0, nil
	}

	count := 0
	var errs []error
	for _, taskID := range taskIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.RebuildTask(ctx, taskID); err != nil {
			s.logger.Error("failed to rebuild task",
				"task_id", taskID,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("task %s: %w", taskID, err))
			continue
		}
		count++
	}

	s.logger.Info("rebuilt task records",
		"total", len(taskIDs),
		"successful", count,
		"failed", len(taskIDs)-count,
	)

	if len(errs) > 0 {
		return count, fmt.Errorf("rebuilt %d/%d tasks: %w", count, len(taskIDs), errors.Join(errs...))
	}

	return count, nil
}

// execute loads the stream, lets decide produce events against the
// rehydrated aggregate, appends them at the loaded version and projects the
// result. A version conflict reloads and decides again.
func (s *TaskService) execute(
	ctx context.Context,
	taskID string,
	expect streamExpectation,
	decide func(*aggregate.Task) ([]domain.Event, error),
) (*CommandResult, error) {
	if err := aggregate.ValidateID("task id", taskID); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		history, err := s.events.Load(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("load task events: %w", err)
		}

		switch {
		case expect == streamMustBeEmpty && len(history) > 0:
			return nil, fmt.Errorf("%w: %s", domain.ErrTaskAlreadyExists, taskID)
		case expect == streamMustExist && len(history) == 0:
			return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
		}

		task, err := aggregate.Load(taskID, history)
		if err != nil {
			return nil, err
		}

		events, err := decide(task)
		if err != nil {
			return nil, err
		}

		if len(events) == 0 {
			return &CommandResult{TaskID: taskID, Version: task.Version()}, nil
		}

		envelopes, err := s.events.Append(ctx, taskID, task.Version(), events)
		if err != nil {
			if errors.Is(err, domain.ErrVersionConflict) && attempt < s.attempts {
				s.logger.Warn("version conflict, retrying command",
					"task_id", taskID,
					"expected_version", task.Version(),
					"attempt", attempt,
				)
				continue
			}
			return nil, fmt.Errorf("append events: %w", err)
		}

		s.project(ctx, envelopes)

		return &CommandResult{
			TaskID:  taskID,
			Version: envelopes[len(envelopes)-1].Version,
			Events:  envelopes,
		}, nil
	}
}

// project applies stored events to the read model. The events are already
// committed, so a failure is logged and the record is left for a rebuild.
// A record that missed earlier events is caught up from the log.
func (s *TaskService) project(ctx context.Context, envelopes []domain.Envelope) {
	for _, env := range envelopes {
		err := s.projector.Project(ctx, env)
		if errors.Is(err, domain.ErrProjectionGap) {
			s.logger.Warn("task record is behind the event log, catching up",
				"task_id", env.TaskID,
				"version", env.Version,
			)
			_, err = s.catchUp(ctx, env.TaskID)
			if err == nil {
				return
			}
		}
		if err != nil {
			s.logger.Error("failed to project event",
				"task_id", env.TaskID,
				"event_id", env.EventID,
				"version", env.Version,
				"error", err,
			)
			return
		}
	}
}

func (s *TaskService) workQueueName(ctx context.Context, workQueueID *string) *string {
	if workQueueID == nil || s.resolver == nil {
		return nil
	}
	name, ok := s.resolver.ResolveWorkQueueName(ctx, *workQueueID)
	if !ok {
		s.logger.Debug("work queue name not resolved", "work_queue_id", *workQueueID)
		return nil
	}
	return &name
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
