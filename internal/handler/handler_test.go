package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mtlprog/casetask/internal/handler"
	"github.com/mtlprog/casetask/internal/handler/dto"
	"github.com/mtlprog/casetask/internal/middleware"
	"github.com/mtlprog/casetask/internal/refdata"
	"github.com/mtlprog/casetask/internal/service"
	"github.com/mtlprog/casetask/internal/sqlitestore"
)

const (
	clerkID    = "11111111-1111-4111-8111-111111111111"
	taskTypeID = "0b7d5b4e-3a55-4bb4-8f0b-9c2c6a1f2e01"
	queueAID   = "a1a1a1a1-0000-4000-8000-000000000001"
	johnID     = "b2b2b2b2-0000-4000-8000-000000000001"
)

const referenceData = `
workQueues:
  - id: a1a1a1a1-0000-4000-8000-000000000001
    name: Queue A
`

type HandlerTestSuite struct {
	suite.Suite
	db    *sqlitestore.DB
	mux   *http.ServeMux
	token string
}

func (s *HandlerTestSuite) SetupTest() {
	ctx := context.Background()

	db, err := sqlitestore.Open(ctx, filepath.Join(s.T().TempDir(), "tasks.db"), nil)
	s.Require().NoError(err)
	s.db = db

	resolver, err := refdata.FromYAML([]byte(referenceData))
	s.Require().NoError(err)

	svc := service.NewTaskService(
		sqlitestore.NewEventLog(db),
		sqlitestore.NewTaskRecords(db),
		resolver,
		service.Options{},
	)

	auth := middleware.NewAuthMiddleware("test-secret", nil)
	s.token, err = auth.IssueToken(clerkID, "Clerk A", time.Hour)
	s.Require().NoError(err)

	s.mux = http.NewServeMux()
	handler.New(svc, db, auth, nil).RegisterRoutes(s.mux)
}

func (s *HandlerTestSuite) TearDownTest() {
	s.Require().NoError(s.db.Close())
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

// Helper to make authenticated request
func (s *HandlerTestSuite) makeRequest(method, path, token string, body any) *httptest.ResponseRecorder {
	bodyReader := bytes.NewReader(nil)
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		s.Require().NoError(err)
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	return w
}

// Helper: createTask creates a task in queue A and returns its id.
func (s *HandlerTestSuite) createTask() string {
	queue := queueAID
	w := s.makeRequest(http.MethodPost, "/api/v1/tasks", s.token, dto.CreateTaskRequest{
		TaskTypeID:  taskTypeID,
		Type:        "Hearing",
		Reference:   "REF1",
		WorkQueueID: &queue,
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var resp dto.CommandResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
	return resp.TaskID
}

func (s *HandlerTestSuite) decodeError(w *httptest.ResponseRecorder) dto.ErrorResponse {
	var errResp dto.ErrorResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&errResp))
	return errResp
}

func (s *HandlerTestSuite) TestHealthz() {
	w := s.makeRequest(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *HandlerTestSuite) TestCreateTask_Unauthorized() {
	w := s.makeRequest(http.MethodPost, "/api/v1/tasks", "", dto.CreateTaskRequest{
		TaskTypeID: taskTypeID,
		Type:       "Hearing",
		Reference:  "REF1",
	})

	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("INVALID_TOKEN", s.decodeError(w).Error.Code)
}

func (s *HandlerTestSuite) TestCreateTask() {
	queue := queueAID
	w := s.makeRequest(http.MethodPost, "/api/v1/tasks", s.token, dto.CreateTaskRequest{
		TaskTypeID:  taskTypeID,
		Type:        "Hearing",
		Reference:   "REF1",
		WorkQueueID: &queue,
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var resp dto.CommandResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
	s.Equal(int64(1), resp.Version)
	s.Require().Len(resp.Events, 1)
	s.Equal("TaskCreated", resp.Events[0].EventType)
	s.Equal("Clerk A", resp.Events[0].ChangeAuthor)
	s.Equal(clerkID, resp.Events[0].ChangeAuthorID)

	var payload map[string]any
	s.Require().NoError(json.Unmarshal(resp.Events[0].Payload, &payload))
	s.Equal("Queue A", payload["workQueueName"])
}

func (s *HandlerTestSuite) TestCreateTask_ValidationError() {
	w := s.makeRequest(http.MethodPost, "/api/v1/tasks", s.token, dto.CreateTaskRequest{
		TaskTypeID: "not-a-uuid",
		Type:       "Hearing",
		Reference:  "REF1",
	})

	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("VALIDATION_ERROR", s.decodeError(w).Error.Code)
}

func (s *HandlerTestSuite) TestCreateTask_MissingReference() {
	w := s.makeRequest(http.MethodPost, "/api/v1/tasks", s.token, dto.CreateTaskRequest{
		TaskTypeID: taskTypeID,
		Type:       "Hearing",
	})

	s.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (s *HandlerTestSuite) TestCreateTask_InvalidJSON() {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewReader([]byte("{")))
	req.Header.Set("Authorization", "Bearer "+s.token)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("INVALID_JSON", s.decodeError(w).Error.Code)
}

func (s *HandlerTestSuite) TestCreateTask_AlreadyExists() {
	taskID := s.createTask()

	w := s.makeRequest(http.MethodPost, "/api/v1/tasks", s.token, dto.CreateTaskRequest{
		TaskID:     taskID,
		TaskTypeID: taskTypeID,
		Type:       "Hearing",
		Reference:  "REF1",
	})

	s.Equal(http.StatusConflict, w.Code)
	s.Equal("TASK_ALREADY_EXISTS", s.decodeError(w).Error.Code)
}

func (s *HandlerTestSuite) TestGetTask() {
	taskID := s.createTask()

	w := s.makeRequest(http.MethodGet, "/api/v1/tasks/"+taskID, s.token, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp dto.TaskDetailResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
	s.Equal(taskID, resp.Task.TaskID)
	s.Equal("CREATED", resp.Task.Status)
	s.Equal("REF1", resp.Task.Reference)
	s.Require().Len(resp.History, 1)
	s.Equal("Task Created", resp.History[0].EventType)
	s.Equal("Clerk A", resp.History[0].ChangeAuthor)
}

func (s *HandlerTestSuite) TestGetTask_NotFound() {
	w := s.makeRequest(http.MethodGet, "/api/v1/tasks/"+johnID, s.token, nil)

	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("TASK_NOT_FOUND", s.decodeError(w).Error.Code)
}

func (s *HandlerTestSuite) TestGetTask_InvalidID() {
	w := s.makeRequest(http.MethodGet, "/api/v1/tasks/nope", s.token, nil)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("INVALID_REQUEST", s.decodeError(w).Error.Code)
}

func (s *HandlerTestSuite) TestAssignAndUnassign() {
	taskID := s.createTask()
	john := johnID
	name := "John"

	w := s.makeRequest(http.MethodPost, "/api/v1/tasks/"+taskID+"/assign", s.token, dto.AssignTaskRequest{
		AssigneeID:   &john,
		AssigneeName: &name,
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.makeRequest(http.MethodGet, "/api/v1/tasks/"+taskID, s.token, nil)
	var resp dto.TaskDetailResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
	s.Equal("ASSIGNED", resp.Task.Status)
	s.Require().NotNil(resp.Task.AssigneeID)
	s.Equal(johnID, *resp.Task.AssigneeID)

	w = s.makeRequest(http.MethodPost, "/api/v1/tasks/"+taskID+"/assign", s.token, dto.AssignTaskRequest{})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.makeRequest(http.MethodGet, "/api/v1/tasks/"+taskID, s.token, nil)
	resp = dto.TaskDetailResponse{}
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
	s.Equal("CREATED", resp.Task.Status)
	s.Nil(resp.Task.AssigneeID)
	s.Len(resp.History, 3)
}

func (s *HandlerTestSuite) TestCompleteTask_EmptyBody() {
	taskID := s.createTask()

	w := s.makeRequest(http.MethodPost, "/api/v1/tasks/"+taskID+"/complete", s.token, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp dto.CommandResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
	s.Equal(int64(2), resp.Version)
	s.Require().Len(resp.Events, 1)
	s.Equal("TaskCompleted", resp.Events[0].EventType)
}

func (s *HandlerTestSuite) TestDeleteTask() {
	taskID := s.createTask()

	w := s.makeRequest(http.MethodDelete, "/api/v1/tasks/"+taskID, s.token, dto.DeleteTaskRequest{
		DeletionReason: "duplicate",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.makeRequest(http.MethodGet, "/api/v1/tasks/"+taskID, s.token, nil)
	var resp dto.TaskDetailResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
	s.Equal("DELETED", resp.Task.Status)
}

func (s *HandlerTestSuite) TestScheduleTask_NoChange() {
	taskID := s.createTask()
	queue := queueAID

	w := s.makeRequest(http.MethodPut, "/api/v1/tasks/"+taskID+"/schedule", s.token, dto.ScheduleTaskRequest{
		WorkQueueID: &queue,
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp dto.CommandResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
	s.Equal(int64(1), resp.Version)
	s.Empty(resp.Events)
}

func (s *HandlerTestSuite) TestScheduleTask_SetsDueDate() {
	taskID := s.createTask()
	queue := queueAID
	due := time.Date(2025, time.March, 5, 14, 30, 0, 0, time.UTC)

	w := s.makeRequest(http.MethodPut, "/api/v1/tasks/"+taskID+"/schedule", s.token, dto.ScheduleTaskRequest{
		DueDate:     &due,
		WorkQueueID: &queue,
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp dto.CommandResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
	s.Require().Len(resp.Events, 1)
	s.Equal("TaskDueDateUpdated", resp.Events[0].EventType)
}

func (s *HandlerTestSuite) TestGetEvents() {
	taskID := s.createTask()
	s.makeRequest(http.MethodPost, "/api/v1/tasks/"+taskID+"/complete", s.token, nil)

	w := s.makeRequest(http.MethodGet, "/api/v1/tasks/"+taskID+"/events", s.token, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp dto.EventsResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
	s.Require().Len(resp.Events, 2)
	s.Equal(int64(1), resp.Events[0].Version)
	s.Equal("TaskCreated", resp.Events[0].EventType)
	s.Equal(int64(2), resp.Events[1].Version)
	s.Equal("TaskCompleted", resp.Events[1].EventType)
	s.NotNil(resp.Events[1].RecordedAt)
}

func (s *HandlerTestSuite) TestGetEvents_UnknownTask() {
	w := s.makeRequest(http.MethodGet, "/api/v1/tasks/"+johnID+"/events", s.token, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerTestSuite) TestRebuildTask() {
	taskID := s.createTask()

	w := s.makeRequest(http.MethodPost, "/api/v1/tasks/"+taskID+"/rebuild", s.token, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp dto.TaskDetailResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
	s.Equal(taskID, resp.Task.TaskID)
	s.Len(resp.History, 1)
}

func (s *HandlerTestSuite) TestListTasks() {
	first := s.createTask()
	second := s.createTask()
	s.makeRequest(http.MethodPost, "/api/v1/tasks/"+second+"/complete", s.token, nil)

	w := s.makeRequest(http.MethodGet, "/api/v1/tasks?status=created", s.token, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp dto.TasksListResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
	s.Equal(1, resp.Total)
	s.Require().Len(resp.Tasks, 1)
	s.Equal(first, resp.Tasks[0].TaskID)
	s.Equal(service.DefaultListLimit, resp.Limit)

	w = s.makeRequest(http.MethodGet, "/api/v1/tasks?work_queue_id="+queueAID+"&limit=1", s.token, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	resp = dto.TasksListResponse{}
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
	s.Equal(2, resp.Total)
	s.Len(resp.Tasks, 1)
}

func (s *HandlerTestSuite) TestListTasks_InvalidStatus() {
	w := s.makeRequest(http.MethodGet, "/api/v1/tasks?status=OPEN", s.token, nil)

	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("VALIDATION_ERROR", s.decodeError(w).Error.Code)
}
