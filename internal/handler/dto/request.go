package dto

import "time"

// CreateTaskRequest represents the request body for POST /tasks.
type CreateTaskRequest struct {
	TaskID       string     `json:"task_id,omitempty"` // generated when empty
	TaskTypeID   string     `json:"task_type_id"`
	Type         string     `json:"type"`
	Reference    string     `json:"reference"`
	Note         string     `json:"note,omitempty"`
	CreatedDate  *time.Time `json:"created_date,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	HearingDate  *time.Time `json:"hearing_date,omitempty"`
	WorkQueueID  *string    `json:"work_queue_id,omitempty"`
	CourtID      *string    `json:"court_id,omitempty"`
	Jurisdiction *string    `json:"jurisdiction,omitempty"`
}

// AssignTaskRequest represents the request body for POST /tasks/:id/assign.
// A missing assignee_id un-assigns the task.
type AssignTaskRequest struct {
	AssigneeID   *string `json:"assignee_id"`
	AssigneeName *string `json:"assignee_name,omitempty"`
}

// CompleteTaskRequest represents the optional request body for POST /tasks/:id/complete.
type CompleteTaskRequest struct {
	CompletedDate *time.Time `json:"completed_date,omitempty"`
}

// DeleteTaskRequest represents the optional request body for DELETE /tasks/:id.
type DeleteTaskRequest struct {
	DeletionReason string     `json:"deletion_reason,omitempty"`
	DeletedDate    *time.Time `json:"deleted_date,omitempty"`
}

// ScheduleTaskRequest represents the request body for PUT /tasks/:id/schedule.
// It carries the desired state: null or missing fields clear the value.
type ScheduleTaskRequest struct {
	DueDate     *time.Time `json:"due_date"`
	WorkQueueID *string    `json:"work_queue_id"`
}
