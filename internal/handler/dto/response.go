package dto

import (
	"encoding/json"
	"time"

	"github.com/mtlprog/casetask/internal/domain"
)

// TaskResponse represents a task record without its history.
type TaskResponse struct {
	TaskID        string     `json:"task_id"`
	Reference     string     `json:"reference"`
	Type          string     `json:"type"`
	TaskTypeID    string     `json:"task_type_id"`
	Status        string     `json:"status"`
	CreatedDate   time.Time  `json:"created_date"`
	DueDate       *time.Time `json:"due_date"`
	CompletedDate *time.Time `json:"completed_date"`
	HearingDate   *time.Time `json:"hearing_date"`
	WorkQueueID   *string    `json:"work_queue_id"`
	CourtID       *string    `json:"court_id"`
	Jurisdiction  *string    `json:"jurisdiction"`
	AssigneeID    *string    `json:"assignee_id"`
	AssigneeName  *string    `json:"assignee_name"`
	Version       int64      `json:"version"`
}

// TasksListResponse represents the response for GET /tasks.
type TasksListResponse struct {
	Tasks  []TaskResponse `json:"tasks"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// TaskDetailResponse represents a task record with its history.
type TaskDetailResponse struct {
	Task    TaskResponse           `json:"task"`
	History []HistoryEntryResponse `json:"history"`
}

// HistoryEntryResponse represents one line of a task's audit trail.
type HistoryEntryResponse struct {
	ID           string    `json:"id"`
	EventDate    time.Time `json:"event_date"`
	EventType    string    `json:"event_type"`
	ChangeAuthor string    `json:"change_author"`
	Details      *string   `json:"details"`
}

// EventResponse represents a stored event with its payload as recorded.
type EventResponse struct {
	EventID        string          `json:"event_id"`
	TaskID         string          `json:"task_id"`
	Version        int64           `json:"version"`
	EventType      string          `json:"event_type"`
	RecordedAt     *time.Time      `json:"recorded_at"`
	ChangeAuthor   string          `json:"change_author"`
	ChangeAuthorID string          `json:"change_author_id"`
	Payload        json.RawMessage `json:"payload"`
}

// EventsResponse represents the response for GET /tasks/:id/events.
type EventsResponse struct {
	Events []EventResponse `json:"events"`
}

// CommandResponse represents the outcome of a task command.
type CommandResponse struct {
	TaskID  string          `json:"task_id"`
	Version int64           `json:"version"`
	Events  []EventResponse `json:"events"`
}

// ToTaskResponse converts a domain.TaskRecord to TaskResponse.
func ToTaskResponse(rec *domain.TaskRecord) TaskResponse {
	var jurisdiction *string
	if rec.Jurisdiction != nil {
		j := string(*rec.Jurisdiction)
		jurisdiction = &j
	}

	return TaskResponse{
		TaskID:        rec.TaskID,
		Reference:     rec.Reference,
		Type:          rec.Type,
		TaskTypeID:    rec.TaskTypeID,
		Status:        string(rec.Status),
		CreatedDate:   rec.CreatedDate,
		DueDate:       rec.DueDate,
		CompletedDate: rec.CompletedDate,
		HearingDate:   rec.HearingDate,
		WorkQueueID:   rec.WorkQueueID,
		CourtID:       rec.CourtID,
		Jurisdiction:  jurisdiction,
		AssigneeID:    rec.AssigneeID,
		AssigneeName:  rec.AssigneeName,
		Version:       rec.Version,
	}
}

// ToTaskDetailResponse converts a record and its history.
func ToTaskDetailResponse(rec *domain.TaskRecord) TaskDetailResponse {
	history := make([]HistoryEntryResponse, len(rec.History))
	for i, h := range rec.History {
		history[i] = HistoryEntryResponse{
			ID:           h.ID,
			EventDate:    h.EventDate,
			EventType:    h.EventType,
			ChangeAuthor: h.ChangeAuthor,
			Details:      h.Details,
		}
	}

	return TaskDetailResponse{
		Task:    ToTaskResponse(rec),
		History: history,
	}
}

// ToEventResponses converts stored envelopes, encoding each payload.
func ToEventResponses(envelopes []domain.Envelope) ([]EventResponse, error) {
	events := make([]EventResponse, len(envelopes))
	for i, env := range envelopes {
		payload, err := domain.EncodeEvent(env.Event)
		if err != nil {
			return nil, err
		}
		author := env.Event.ChangedBy()
		events[i] = EventResponse{
			EventID:        env.EventID,
			TaskID:         env.TaskID,
			Version:        env.Version,
			EventType:      string(env.Event.EventType()),
			RecordedAt:     env.RecordedAt,
			ChangeAuthor:   author.ChangeAuthor,
			ChangeAuthorID: author.ChangeAuthorID,
			Payload:        payload,
		}
	}
	return events, nil
}
