// Package report renders task history and event streams as text tables for
// the command line.
package report

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/mtlprog/casetask/internal/domain"
)

const timeLayout = "02 Jan 2006 15:04:05"

// WriteRecord renders a task record summary followed by its history.
func WriteRecord(w io.Writer, rec *domain.TaskRecord) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendRows([]table.Row{
		{"Task", rec.TaskID},
		{"Reference", rec.Reference},
		{"Type", rec.Type},
		{"Status", rec.Status},
		{"Created", rec.CreatedDate.UTC().Format(timeLayout)},
		{"Due", formatTime(rec.DueDate)},
		{"Work queue", orDash(rec.WorkQueueID)},
		{"Assignee", orDash(rec.AssigneeName)},
		{"Version", rec.Version},
	})
	tw.Render()

	WriteHistory(w, rec.History)
}

// WriteHistory renders history entries oldest first.
func WriteHistory(w io.Writer, history []domain.HistoryEntry) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Date", "Event", "Author", "Details"})
	for _, h := range history {
		tw.AppendRow(table.Row{h.EventDate.UTC().Format(timeLayout), h.EventType, h.ChangeAuthor, orDash(h.Details)})
	}
	tw.Render()
}

// WriteEvents renders a stored event stream.
func WriteEvents(w io.Writer, envelopes []domain.Envelope) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Version", "Event", "Recorded", "Author", "Event ID"})
	for _, env := range envelopes {
		tw.AppendRow(table.Row{
			env.Version,
			env.Event.EventType(),
			formatTime(env.RecordedAt),
			env.Event.ChangedBy().ChangeAuthor,
			env.EventID,
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "Events", len(envelopes)})
	tw.Render()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
