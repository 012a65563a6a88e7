package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mtlprog/casetask/internal/domain"
	"github.com/mtlprog/casetask/internal/sqlitestore"
)

const (
	taskID  = "6f1c2a52-8c1e-4c9a-9f0e-0d9f6d3c2b10"
	queueID = "a1a1a1a1-0000-4000-8000-000000000001"
)

var author = domain.Author{ChangeAuthor: "A", ChangeAuthorID: "11111111-1111-4111-8111-111111111111"}

// StoreTestSuite exercises the SQLite event log and read model.
type StoreTestSuite struct {
	suite.Suite
	db      *sqlitestore.DB
	events  *sqlitestore.EventLog
	records *sqlitestore.TaskRecords
}

// SetupTest opens a fresh database file for every test.
func (s *StoreTestSuite) SetupTest() {
	db, err := sqlitestore.Open(context.Background(), filepath.Join(s.T().TempDir(), "tasks.db"), nil)
	s.Require().NoError(err)
	s.db = db
	s.events = sqlitestore.NewEventLog(db)
	s.records = sqlitestore.NewTaskRecords(db)
}

// TearDownTest closes the database.
func (s *StoreTestSuite) TearDownTest() {
	s.Require().NoError(s.db.Close())
}

func created() domain.TaskCreated {
	q := queueID
	due := time.Date(2025, time.March, 5, 14, 30, 0, 0, time.UTC)
	return domain.TaskCreated{
		TaskID:      taskID,
		TaskTypeID:  "0b7d5b4e-3a55-4bb4-8f0b-9c2c6a1f2e01",
		Type:        "Hearing",
		Reference:   "REF1",
		CreatedDate: time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC),
		DueDate:     &due,
		WorkQueueID: &q,
		Author:      author,
	}
}

func record(id string, day int) *domain.TaskRecord {
	return &domain.TaskRecord{
		TaskID:      id,
		Reference:   "REF",
		Type:        "Hearing",
		TaskTypeID:  "0b7d5b4e-3a55-4bb4-8f0b-9c2c6a1f2e01",
		CreatedDate: time.Date(2025, time.March, day, 9, 0, 0, 0, time.UTC),
		Status:      domain.TaskStatusCreated,
		Version:     1,
	}
}

// TestAppendAndLoad tests that events come back in version order with their payloads.
func (s *StoreTestSuite) TestAppendAndLoad() {
	ctx := context.Background()

	envs, err := s.events.Append(ctx, taskID, 0, []domain.Event{
		created(),
		domain.TaskDueDateUpdated{TaskID: taskID, Details: "Removed Due Date, previous due date was: 05 Mar 2025 14:30", Author: author},
	})
	s.Require().NoError(err)
	s.Require().Len(envs, 2)
	s.Equal(int64(1), envs[0].Version)
	s.Equal(int64(2), envs[1].Version)

	loaded, err := s.events.Load(ctx, taskID)
	s.Require().NoError(err)
	s.Require().Len(loaded, 2)
	s.Equal(envs[0].EventID, loaded[0].EventID)
	s.Equal(envs[1].EventID, loaded[1].EventID)
	s.NotNil(loaded[0].RecordedAt)

	first, ok := loaded[0].Event.(domain.TaskCreated)
	s.Require().True(ok)
	s.Equal("REF1", first.Reference)
	s.Equal(queueID, *first.WorkQueueID)
	s.Nil(first.WorkQueueName)

	second, ok := loaded[1].Event.(domain.TaskDueDateUpdated)
	s.Require().True(ok)
	s.Nil(second.DueDate)
}

// TestAppend_StaleVersion tests optimistic concurrency.
func (s *StoreTestSuite) TestAppend_StaleVersion() {
	ctx := context.Background()

	_, err := s.events.Append(ctx, taskID, 0, []domain.Event{created()})
	s.Require().NoError(err)

	_, err = s.events.Append(ctx, taskID, 0, []domain.Event{created()})
	s.ErrorIs(err, domain.ErrVersionConflict)

	_, err = s.events.Append(ctx, taskID, 2, []domain.Event{created()})
	s.ErrorIs(err, domain.ErrVersionConflict)

	loaded, err := s.events.Load(ctx, taskID)
	s.Require().NoError(err)
	s.Len(loaded, 1)
}

// TestAppend_Empty tests that appending nothing is a no-op.
func (s *StoreTestSuite) TestAppend_Empty() {
	envs, err := s.events.Append(context.Background(), taskID, 7, nil)
	s.Require().NoError(err)
	s.Empty(envs)
}

// TestTaskIDs tests listing streams.
func (s *StoreTestSuite) TestTaskIDs() {
	ctx := context.Background()
	other := "6f1c2a52-8c1e-4c9a-9f0e-0d9f6d3c2b11"

	_, err := s.events.Append(ctx, other, 0, []domain.Event{domain.TaskDeleted{TaskID: other, Author: author}})
	s.Require().NoError(err)
	_, err = s.events.Append(ctx, taskID, 0, []domain.Event{created()})
	s.Require().NoError(err)

	ids, err := s.events.TaskIDs(ctx)
	s.Require().NoError(err)
	s.Equal([]string{taskID, other}, ids)
}

// TestSave_RoundTrip tests record fields and append-only history.
func (s *StoreTestSuite) TestSave_RoundTrip() {
	ctx := context.Background()
	crown := domain.JurisdictionCrown
	q := queueID
	due := time.Date(2025, time.March, 5, 14, 30, 0, 0, time.UTC)
	details := "Assigned to: John"

	rec := record(taskID, 1)
	rec.DueDate = &due
	rec.WorkQueueID = &q
	rec.Jurisdiction = &crown
	rec.History = []domain.HistoryEntry{{
		ID:           "c0c0c0c0-0000-5000-8000-000000000001",
		EventDate:    rec.CreatedDate,
		EventType:    "Task Created",
		ChangeAuthor: "A",
	}}
	s.Require().NoError(s.records.Save(ctx, rec))

	name := "John"
	rec.AssigneeName = &name
	rec.Status = domain.TaskStatusAssigned
	rec.Version = 2
	rec.History = append(rec.History, domain.HistoryEntry{
		ID:           "c0c0c0c0-0000-5000-8000-000000000002",
		EventDate:    time.Date(2025, time.March, 2, 9, 0, 0, 0, time.UTC),
		EventType:    "Task Assigned",
		ChangeAuthor: "A",
		Details:      &details,
	})
	s.Require().NoError(s.records.Save(ctx, rec))

	found, err := s.records.FindByTaskID(ctx, taskID)
	s.Require().NoError(err)
	s.Equal(rec, found)
}

// TestSave_HistoryKeepsAppendOrder tests that history is returned in the order
// it was appended, even when an earlier entry carries a later date.
func (s *StoreTestSuite) TestSave_HistoryKeepsAppendOrder() {
	ctx := context.Background()

	rec := record(taskID, 10)
	rec.History = []domain.HistoryEntry{
		{
			ID:           "c0c0c0c0-0000-5000-8000-000000000001",
			EventDate:    rec.CreatedDate,
			EventType:    "Task Created",
			ChangeAuthor: "A",
		},
		{
			ID:           "c0c0c0c0-0000-5000-8000-000000000002",
			EventDate:    time.Date(2025, time.March, 2, 9, 0, 0, 0, time.UTC),
			EventType:    "Task Completed",
			ChangeAuthor: "A",
		},
	}
	s.Require().NoError(s.records.Save(ctx, rec))

	found, err := s.records.FindByTaskID(ctx, taskID)
	s.Require().NoError(err)
	s.Require().Len(found.History, 2)
	s.Equal("Task Created", found.History[0].EventType)
	s.Equal("Task Completed", found.History[1].EventType)
}

// TestFindByTaskID_NotFound tests the not-found sentinel.
func (s *StoreTestSuite) TestFindByTaskID_NotFound() {
	_, err := s.records.FindByTaskID(context.Background(), taskID)
	s.ErrorIs(err, domain.ErrTaskNotFound)
}

// TestDelete tests that history is removed with the record.
func (s *StoreTestSuite) TestDelete() {
	ctx := context.Background()

	rec := record(taskID, 1)
	rec.History = []domain.HistoryEntry{{
		ID:           "c0c0c0c0-0000-5000-8000-000000000001",
		EventDate:    rec.CreatedDate,
		EventType:    "Task Created",
		ChangeAuthor: "A",
	}}
	s.Require().NoError(s.records.Save(ctx, rec))
	s.Require().NoError(s.records.Delete(ctx, taskID))

	_, err := s.records.FindByTaskID(ctx, taskID)
	s.ErrorIs(err, domain.ErrTaskNotFound)

	// Re-saving after delete must restore the full history.
	s.Require().NoError(s.records.Save(ctx, rec))
	found, err := s.records.FindByTaskID(ctx, taskID)
	s.Require().NoError(err)
	s.Len(found.History, 1)
}

// TestList tests filters, ordering and totals.
func (s *StoreTestSuite) TestList() {
	ctx := context.Background()
	q := queueID
	assignee := "b2b2b2b2-0000-4000-8000-000000000001"

	first := record("6f1c2a52-8c1e-4c9a-9f0e-0d9f6d3c2b11", 3)
	second := record("6f1c2a52-8c1e-4c9a-9f0e-0d9f6d3c2b12", 1)
	second.WorkQueueID = &q
	second.AssigneeID = &assignee
	second.Status = domain.TaskStatusAssigned
	third := record("6f1c2a52-8c1e-4c9a-9f0e-0d9f6d3c2b13", 2)
	third.WorkQueueID = &q
	third.Status = domain.TaskStatusCompleted
	for _, rec := range []*domain.TaskRecord{first, second, third} {
		s.Require().NoError(s.records.Save(ctx, rec))
	}

	all, total, err := s.records.List(ctx, domain.TaskFilter{Limit: 10})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Require().Len(all, 3)
	s.Equal(second.TaskID, all[0].TaskID)
	s.Equal(third.TaskID, all[1].TaskID)
	s.Equal(first.TaskID, all[2].TaskID)

	queued, total, err := s.records.List(ctx, domain.TaskFilter{WorkQueueID: &q, Limit: 10})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Len(queued, 2)

	unassigned, total, err := s.records.List(ctx, domain.TaskFilter{Unassigned: true, Limit: 10})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Len(unassigned, 2)

	open, total, err := s.records.List(ctx, domain.TaskFilter{
		Statuses: []domain.TaskStatus{domain.TaskStatusCreated, domain.TaskStatusAssigned},
		Limit:    1,
		Offset:   1,
	})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Require().Len(open, 1)
	s.Equal(first.TaskID, open[0].TaskID)
}

// TestPing tests the health check.
func (s *StoreTestSuite) TestPing() {
	s.NoError(s.db.Ping(context.Background()))
}

// TestStoreTestSuite runs the test suite.
func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
