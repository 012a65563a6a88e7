package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mtlprog/casetask/internal/domain"
	"github.com/mtlprog/casetask/internal/handler/dto"
	"github.com/mtlprog/casetask/internal/middleware"
	"github.com/mtlprog/casetask/internal/service"
)

// handleCreateTask creates a new task.
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	author, ok := authorFromRequest(w, r)
	if !ok {
		return
	}

	var req dto.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Reference) == "" {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "reference is required")
		return
	}
	if strings.TrimSpace(req.Type) == "" {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type is required")
		return
	}

	result, err := h.taskService.CreateTask(ctx, service.CreateTaskParams{
		TaskID:       req.TaskID,
		TaskTypeID:   req.TaskTypeID,
		Type:         req.Type,
		Reference:    req.Reference,
		Note:         req.Note,
		CreatedDate:  valueOrZero(req.CreatedDate),
		DueDate:      req.DueDate,
		HearingDate:  req.HearingDate,
		WorkQueueID:  req.WorkQueueID,
		CourtID:      req.CourtID,
		Jurisdiction: req.Jurisdiction,
		Author:       author,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondCommand(w, http.StatusCreated, result)
}

// handleGetTask returns the read-model record of a task with its history.
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	rec, err := h.taskService.GetTask(r.Context(), taskID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskDetailResponse(rec))
}

// handleGetEvents returns the stored event stream of a task.
func (h *Handler) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	envelopes, err := h.taskService.GetEvents(r.Context(), taskID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	events, err := dto.ToEventResponses(envelopes)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.EventsResponse{Events: events})
}

// handleAssignTask assigns, re-assigns or un-assigns a task.
func (h *Handler) handleAssignTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}
	author, ok := authorFromRequest(w, r)
	if !ok {
		return
	}

	var req dto.AssignTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	result, err := h.taskService.AssignTask(r.Context(), service.AssignTaskParams{
		TaskID:       taskID,
		AssigneeID:   req.AssigneeID,
		AssigneeName: req.AssigneeName,
		Author:       author,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondCommand(w, http.StatusOK, result)
}

// handleCompleteTask completes a task.
func (h *Handler) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}
	author, ok := authorFromRequest(w, r)
	if !ok {
		return
	}

	var req dto.CompleteTaskRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	result, err := h.taskService.CompleteTask(r.Context(), service.CompleteTaskParams{
		TaskID:        taskID,
		CompletedDate: valueOrZero(req.CompletedDate),
		Author:        author,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondCommand(w, http.StatusOK, result)
}

// handleDeleteTask withdraws a task. The stream is kept; only a TaskDeleted
// event is recorded.
func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}
	author, ok := authorFromRequest(w, r)
	if !ok {
		return
	}

	var req dto.DeleteTaskRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	result, err := h.taskService.DeleteTask(r.Context(), service.DeleteTaskParams{
		TaskID:         taskID,
		DeletionReason: req.DeletionReason,
		DeletedDate:    valueOrZero(req.DeletedDate),
		Author:         author,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondCommand(w, http.StatusOK, result)
}

// handleScheduleTask sets the due date and work queue of a task.
func (h *Handler) handleScheduleTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}
	author, ok := authorFromRequest(w, r)
	if !ok {
		return
	}

	var req dto.ScheduleTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	result, err := h.taskService.UpdateTask(r.Context(), service.UpdateTaskParams{
		TaskID:      taskID,
		DueDate:     req.DueDate,
		WorkQueueID: req.WorkQueueID,
		Author:      author,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondCommand(w, http.StatusOK, result)
}

// handleRebuildTask re-projects a task's read model from its event stream.
func (h *Handler) handleRebuildTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	rec, err := h.taskService.RebuildTask(r.Context(), taskID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskDetailResponse(rec))
}

// handleListTasks returns a page of task records.
// Query: status (comma-separated), work_queue_id, assignee_id, unassigned,
// limit (1-200, default 50), offset.
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := domain.TaskFilter{
		Unassigned: query.Get("unassigned") == "true",
		Limit:      service.DefaultListLimit,
	}

	for _, st := range splitAndTrim(query.Get("status"), ",") {
		filter.Statuses = append(filter.Statuses, domain.TaskStatus(strings.ToUpper(st)))
	}
	if v := query.Get("work_queue_id"); v != "" {
		filter.WorkQueueID = &v
	}
	if v := query.Get("assignee_id"); v != "" {
		filter.AssigneeID = &v
	}
	if v := query.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= service.MaxListLimit {
			filter.Limit = n
		}
	}
	if v := query.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	records, total, err := h.taskService.ListTasks(r.Context(), filter)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	tasks := make([]dto.TaskResponse, len(records))
	for i, rec := range records {
		tasks[i] = dto.ToTaskResponse(rec)
	}

	respondJSON(w, http.StatusOK, dto.TasksListResponse{
		Tasks:  tasks,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// authorFromRequest returns the authenticated change author, writing a 401
// when there is none.
func authorFromRequest(w http.ResponseWriter, r *http.Request) (domain.Author, bool) {
	author, err := middleware.GetAuthorFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return domain.Author{}, false
	}
	return author, true
}

// respondCommand writes a command outcome including its stored events.
func respondCommand(w http.ResponseWriter, status int, result *service.CommandResult) {
	events, err := dto.ToEventResponses(result.Events)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, status, dto.CommandResponse{
		TaskID:  result.TaskID,
		Version: result.Version,
		Events:  events,
	})
}

// decodeOptionalBody decodes a JSON body when one is sent. An empty body
// leaves v untouched.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	return true
}

func valueOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// splitAndTrim splits a string by delimiter and trims whitespace.
func splitAndTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
