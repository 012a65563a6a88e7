package domain

import "time"

// TaskStatus represents the projected status of a task.
type TaskStatus string

const (
	TaskStatusCreated   TaskStatus = "CREATED"
	TaskStatusAssigned  TaskStatus = "ASSIGNED"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusDeleted   TaskStatus = "DELETED"
)

// IsValid checks if the status is one of the allowed values.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusCreated, TaskStatusAssigned, TaskStatusCompleted, TaskStatusDeleted:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once the task has left the workflow.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusDeleted
}

// TaskRecord is the read-model view of a task, owned by the projection.
type TaskRecord struct {
	TaskID        string
	Reference     string
	Type          string
	TaskTypeID    string
	CreatedDate   time.Time
	DueDate       *time.Time
	CompletedDate *time.Time
	Status        TaskStatus
	WorkQueueID   *string
	CourtID       *string
	Jurisdiction  *Jurisdiction
	HearingDate   *time.Time
	AssigneeID    *string
	AssigneeName  *string
	Version       int64 // last projected stream version
	History       []HistoryEntry
}

// HistoryEntry is one line of a task's audit trail. Entries are only appended.
type HistoryEntry struct {
	ID           string
	EventDate    time.Time
	EventType    string
	ChangeAuthor string
	Details      *string
}

// TaskFilter narrows a task listing. Zero values disable a filter.
type TaskFilter struct {
	Statuses    []TaskStatus
	WorkQueueID *string
	AssigneeID  *string
	Unassigned  bool
	Limit       int
	Offset      int
}

// StatusStrings returns the status filter as plain strings for query builders.
func (f TaskFilter) StatusStrings() []string {
	out := make([]string, len(f.Statuses))
	for i, s := range f.Statuses {
		out[i] = string(s)
	}
	return out
}
