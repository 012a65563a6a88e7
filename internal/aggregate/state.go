package aggregate

import (
	"time"

	"github.com/mtlprog/casetask/internal/domain"
)

// State captures the task facts the write model derives from events.
type State struct {
	AssigneeID    *string
	AssigneeName  *string
	DueDate       *time.Time
	WorkQueueID   *string
	WorkQueueName *string
}

// Fold applies one event to a state and returns the result. It has no side
// effects; rebuilding a task is a left fold of Fold over its stream.
func Fold(s State, event domain.Event) State {
	switch e := event.(type) {
	case domain.TaskCreated:
		s.DueDate = e.DueDate
		s.WorkQueueID = e.WorkQueueID
		s.WorkQueueName = e.WorkQueueName
	case domain.TaskAssigned:
		s.AssigneeID = e.AssigneeID
		s.AssigneeName = e.AssigneeName
	case domain.TaskWorkqueueUpdated:
		s.WorkQueueID = e.WorkQueueID
		s.WorkQueueName = e.WorkQueueName
	case domain.TaskDueDateUpdated:
		s.DueDate = e.DueDate
	case domain.TaskCompleted, domain.TaskDeleted:
		// terminal; the read model tracks status
	}
	return s
}
