package aggregate

import (
	"fmt"
	"time"
)

// dueDateLayout renders dates as e.g. "05 Mar 2025 14:30".
const dueDateLayout = "02 Jan 2006 15:04"

func formatDueDate(t time.Time) string {
	return t.UTC().Format(dueDateLayout)
}

func assignmentDetails(previousName, newName string, current, next *string) string {
	switch {
	case next == nil:
		return fmt.Sprintf("Un-assigned from: %s", previousName)
	case current == nil:
		return fmt.Sprintf("Assigned to: %s", newName)
	default:
		return fmt.Sprintf("Re-assigned from: %s, to: %s", previousName, newName)
	}
}

func dueDateDetails(current, next *time.Time) string {
	switch {
	case current == nil:
		return fmt.Sprintf("Set Due Date to: %s", formatDueDate(*next))
	case next == nil:
		return fmt.Sprintf("Removed Due Date, previous due date was: %s", formatDueDate(*current))
	default:
		return fmt.Sprintf("Changed DueDate from: %s, to: %s", formatDueDate(*current), formatDueDate(*next))
	}
}

func workQueueDetails(currentName, newName string, current, next *string) string {
	switch {
	case current == nil:
		return fmt.Sprintf("Assigned to WorkQueue: %s", newName)
	case next == nil:
		return fmt.Sprintf("Removed from WorkQueue: %s", currentName)
	default:
		return fmt.Sprintf("Re-assigned WorkQueue from: %s, to: %s", currentName, newName)
	}
}

// displayName prefers the resolved name and falls back to the identifier.
func displayName(name, id *string) string {
	if name != nil && *name != "" {
		return *name
	}
	if id != nil {
		return *id
	}
	return ""
}
