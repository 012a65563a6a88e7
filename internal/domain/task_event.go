package domain

import "time"

// EventType is the stable name of a task event kind.
type EventType string

const (
	EventTypeTaskCreated          EventType = "TaskCreated"
	EventTypeTaskAssigned         EventType = "TaskAssigned"
	EventTypeTaskCompleted        EventType = "TaskCompleted"
	EventTypeTaskDeleted          EventType = "TaskDeleted"
	EventTypeTaskDueDateUpdated   EventType = "TaskDueDateUpdated"
	EventTypeTaskWorkqueueUpdated EventType = "TaskWorkqueueUpdated"
)

// AssignmentType describes how the assignee changed.
type AssignmentType string

const (
	AssignmentTypeAssigned   AssignmentType = "ASSIGNED"
	AssignmentTypeReassigned AssignmentType = "REASSIGNED"
	AssignmentTypeUnassigned AssignmentType = "UNASSIGNED"
)

// Author identifies the user responsible for a change.
type Author struct {
	ChangeAuthor   string `json:"changeAuthor"`
	ChangeAuthorID string `json:"changeAuthorId"`
}

// ChangedBy returns the author. It is promoted to every event embedding Author.
func (a Author) ChangedBy() Author {
	return a
}

// Event is an immutable task event. The implementations in this file are the
// complete set; isTaskEvent keeps it closed to this package.
type Event interface {
	EventType() EventType
	AggregateID() string
	ChangedBy() Author
	isTaskEvent()
}

// TaskCreated is recorded once, when a task enters the workflow.
type TaskCreated struct {
	TaskID        string        `json:"taskId"`
	TaskTypeID    string        `json:"taskTypeId"`
	Type          string        `json:"type"`
	Reference     string        `json:"reference"`
	Note          string        `json:"note,omitempty"`
	CreatedDate   time.Time     `json:"createdDate"`
	DueDate       *time.Time    `json:"dueDate,omitempty"`
	HearingDate   *time.Time    `json:"hearingDate,omitempty"`
	WorkQueueID   *string       `json:"workQueueId,omitempty"`
	WorkQueueName *string       `json:"workQueueName,omitempty"`
	CourtID       *string       `json:"courtId,omitempty"`
	Jurisdiction  *Jurisdiction `json:"jurisdiction,omitempty"`
	Author
}

// TaskAssigned records an assignment, re-assignment or un-assignment.
type TaskAssigned struct {
	TaskID         string         `json:"taskId"`
	AssigneeID     *string        `json:"assigneeId,omitempty"`
	AssigneeName   *string        `json:"assigneeName,omitempty"`
	AssignmentType AssignmentType `json:"assignmentType"`
	Details        string         `json:"details"`
	Author
}

// TaskCompleted records that the work item was finished.
type TaskCompleted struct {
	TaskID        string    `json:"taskId"`
	CompletedDate time.Time `json:"completedDate"`
	Author
}

// TaskDeleted records that the work item was withdrawn.
type TaskDeleted struct {
	TaskID         string    `json:"taskId"`
	DeletionReason string    `json:"deletionReason,omitempty"`
	DeletedDate    time.Time `json:"deletedDate"`
	Author
}

// TaskDueDateUpdated records a change of due date; a nil DueDate removes it.
type TaskDueDateUpdated struct {
	TaskID  string     `json:"taskId"`
	DueDate *time.Time `json:"dueDate,omitempty"`
	Details string     `json:"details"`
	Author
}

// TaskWorkqueueUpdated records a move between work queues; a nil WorkQueueID
// removes the task from its queue. WorkQueueName is nil when the queue could
// not be resolved.
type TaskWorkqueueUpdated struct {
	TaskID        string  `json:"taskId"`
	WorkQueueID   *string `json:"workQueueId,omitempty"`
	WorkQueueName *string `json:"workQueueName,omitempty"`
	Details       string  `json:"details"`
	Author
}

func (TaskCreated) EventType() EventType          { return EventTypeTaskCreated }
func (TaskAssigned) EventType() EventType         { return EventTypeTaskAssigned }
func (TaskCompleted) EventType() EventType        { return EventTypeTaskCompleted }
func (TaskDeleted) EventType() EventType          { return EventTypeTaskDeleted }
func (TaskDueDateUpdated) EventType() EventType   { return EventTypeTaskDueDateUpdated }
func (TaskWorkqueueUpdated) EventType() EventType { return EventTypeTaskWorkqueueUpdated }

func (e TaskCreated) AggregateID() string          { return e.TaskID }
func (e TaskAssigned) AggregateID() string         { return e.TaskID }
func (e TaskCompleted) AggregateID() string        { return e.TaskID }
func (e TaskDeleted) AggregateID() string          { return e.TaskID }
func (e TaskDueDateUpdated) AggregateID() string   { return e.TaskID }
func (e TaskWorkqueueUpdated) AggregateID() string { return e.TaskID }

func (TaskCreated) isTaskEvent()          {}
func (TaskAssigned) isTaskEvent()         {}
func (TaskCompleted) isTaskEvent()        {}
func (TaskDeleted) isTaskEvent()          {}
func (TaskDueDateUpdated) isTaskEvent()   {}
func (TaskWorkqueueUpdated) isTaskEvent() {}

// Envelope is an event as stored in a task's stream.
type Envelope struct {
	EventID    string
	TaskID     string
	Version    int64      // 1-based position in the task's stream
	RecordedAt *time.Time // nil when delivered without metadata
	Event      Event
}
