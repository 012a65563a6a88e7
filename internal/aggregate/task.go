// Package aggregate holds the write model of a task. A Task is rebuilt from
// its event stream for every command, decides which events the command
// produces, and applies those events to itself so that later events emitted
// by the same command observe earlier ones.
package aggregate

import (
	"fmt"
	"time"

	"github.com/mtlprog/casetask/internal/domain"
)

// Task is the event-sourced write model of one task.
type Task struct {
	id      string
	state   State
	version int64
}

// Load rebuilds a task from its stored stream, in log order.
func Load(taskID string, history []domain.Envelope) (*Task, error) {
	if err := ValidateID("task id", taskID); err != nil {
		return nil, err
	}

	t := &Task{id: taskID}
	for _, env := range history {
		if env.TaskID != taskID {
			return nil, fmt.Errorf("%w: event %s belongs to task %s", domain.ErrInvalidArgument, env.EventID, env.TaskID)
		}
		t.state = Fold(t.state, env.Event)
		t.version = env.Version
	}
	return t, nil
}

// ID returns the task identifier.
func (t *Task) ID() string { return t.id }

// State returns the current write-model state.
func (t *Task) State() State { return t.state }

// Version returns the stream version the task was loaded at. New events must
// be appended with this as the expected version.
func (t *Task) Version() int64 { return t.version }

func (t *Task) emit(event domain.Event) domain.Event {
	t.state = Fold(t.state, event)
	return event
}

// CreateTask holds the inputs of a Create command.
type CreateTask struct {
	TaskTypeID    string
	Type          string
	Reference     string
	Note          string
	CreatedDate   time.Time
	DueDate       *time.Time
	HearingDate   *time.Time
	WorkQueueID   *string
	WorkQueueName *string
	CourtID       *string
	Jurisdiction  *string
	domain.Author
}

// Create always emits exactly one TaskCreated.
func (t *Task) Create(cmd CreateTask) ([]domain.Event, error) {
	if err := validateAuthor(cmd.Author); err != nil {
		return nil, err
	}
	if err := ValidateID("task type id", cmd.TaskTypeID); err != nil {
		return nil, err
	}
	if err := validateOptionalID("work queue id", cmd.WorkQueueID); err != nil {
		return nil, err
	}
	if err := validateOptionalID("court id", cmd.CourtID); err != nil {
		return nil, err
	}

	var jurisdiction *domain.Jurisdiction
	if cmd.Jurisdiction != nil {
		j, err := domain.ParseJurisdiction(*cmd.Jurisdiction)
		if err != nil {
			return nil, err
		}
		jurisdiction = &j
	}

	workQueueName := cmd.WorkQueueName
	if cmd.WorkQueueID == nil {
		workQueueName = nil
	}

	return []domain.Event{t.emit(domain.TaskCreated{
		TaskID:        t.id,
		TaskTypeID:    cmd.TaskTypeID,
		Type:          cmd.Type,
		Reference:     cmd.Reference,
		Note:          cmd.Note,
		CreatedDate:   cmd.CreatedDate,
		DueDate:       cmd.DueDate,
		HearingDate:   cmd.HearingDate,
		WorkQueueID:   cmd.WorkQueueID,
		WorkQueueName: workQueueName,
		CourtID:       cmd.CourtID,
		Jurisdiction:  jurisdiction,
		Author:        cmd.Author,
	})}, nil
}

// AssignTask holds the inputs of an Assign command. A nil AssigneeID
// un-assigns the task.
type AssignTask struct {
	AssigneeID   *string
	AssigneeName *string
	domain.Author
}

// Assign always emits exactly one TaskAssigned. The assignment type is
// decided against the assignee held before this command.
func (t *Task) Assign(cmd AssignTask) ([]domain.Event, error) {
	if err := validateAuthor(cmd.Author); err != nil {
		return nil, err
	}
	if err := validateOptionalID("assignee id", cmd.AssigneeID); err != nil {
		return nil, err
	}

	current := t.state
	assigneeName := cmd.AssigneeName
	if cmd.AssigneeID == nil {
		assigneeName = nil
	}

	var assignmentType domain.AssignmentType
	switch {
	case cmd.AssigneeID == nil:
		assignmentType = domain.AssignmentTypeUnassigned
	case current.AssigneeID == nil:
		assignmentType = domain.AssignmentTypeAssigned
	default:
		assignmentType = domain.AssignmentTypeReassigned
	}

	details := assignmentDetails(
		displayName(current.AssigneeName, current.AssigneeID),
		displayName(assigneeName, cmd.AssigneeID),
		current.AssigneeID,
		cmd.AssigneeID,
	)

	return []domain.Event{t.emit(domain.TaskAssigned{
		TaskID:         t.id,
		AssigneeID:     cmd.AssigneeID,
		AssigneeName:   assigneeName,
		AssignmentType: assignmentType,
		Details:        details,
		Author:         cmd.Author,
	})}, nil
}

// CompleteTask holds the inputs of a Complete command.
type CompleteTask struct {
	CompletedDate time.Time
	domain.Author
}

// Complete always emits exactly one TaskCompleted.
func (t *Task) Complete(cmd CompleteTask) ([]domain.Event, error) {
	if err := validateAuthor(cmd.Author); err != nil {
		return nil, err
	}

	return []domain.Event{t.emit(domain.TaskCompleted{
		TaskID:        t.id,
		CompletedDate: cmd.CompletedDate,
		Author:        cmd.Author,
	})}, nil
}

// DeleteTask holds the inputs of a Delete command.
type DeleteTask struct {
	DeletionReason string
	DeletedDate    time.Time
	domain.Author
}

// Delete always emits exactly one TaskDeleted.
func (t *Task) Delete(cmd DeleteTask) ([]domain.Event, error) {
	if err := validateAuthor(cmd.Author); err != nil {
		return nil, err
	}

	return []domain.Event{t.emit(domain.TaskDeleted{
		TaskID:         t.id,
		DeletionReason: cmd.DeletionReason,
		DeletedDate:    cmd.DeletedDate,
		Author:         cmd.Author,
	})}, nil
}

// UpdateTask holds the desired due date and work queue. Nil values remove
// the current value.
type UpdateTask struct {
	DueDate       *time.Time
	WorkQueueID   *string
	WorkQueueName *string
	domain.Author
}

// Update emits a TaskDueDateUpdated when the due date changed and a
// TaskWorkqueueUpdated when the work queue changed, in that order. An update
// that changes nothing emits no events.
func (t *Task) Update(cmd UpdateTask) ([]domain.Event, error) {
	if err := validateAuthor(cmd.Author); err != nil {
		return nil, err
	}
	if err := validateOptionalID("work queue id", cmd.WorkQueueID); err != nil {
		return nil, err
	}

	var events []domain.Event

	current := t.state
	if dueDateChanged(current.DueDate, cmd.DueDate) {
		events = append(events, t.emit(domain.TaskDueDateUpdated{
			TaskID:  t.id,
			DueDate: cmd.DueDate,
			Details: dueDateDetails(current.DueDate, cmd.DueDate),
			Author:  cmd.Author,
		}))
	}

	current = t.state
	if workQueueChanged(current.WorkQueueID, cmd.WorkQueueID) {
		workQueueName := cmd.WorkQueueName
		if cmd.WorkQueueID == nil {
			workQueueName = nil
		}
		events = append(events, t.emit(domain.TaskWorkqueueUpdated{
			TaskID:        t.id,
			WorkQueueID:   cmd.WorkQueueID,
			WorkQueueName: workQueueName,
			Details: workQueueDetails(
				displayName(current.WorkQueueName, current.WorkQueueID),
				displayName(workQueueName, cmd.WorkQueueID),
				current.WorkQueueID,
				cmd.WorkQueueID,
			),
			Author: cmd.Author,
		}))
	}

	return events, nil
}

func dueDateChanged(current, next *time.Time) bool {
	if current == nil || next == nil {
		return current != next
	}
	return !current.Equal(*next)
}

// workQueueChanged compares identifiers only; the name is cosmetic.
func workQueueChanged(current, next *string) bool {
	if current == nil || next == nil {
		return current != next
	}
	return *current != *next
}
