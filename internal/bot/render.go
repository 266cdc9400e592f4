package bot

import (
	"fmt"
	"strings"

	"duebot/internal/model"
	"duebot/internal/store"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// renderDeadlineTable lays deadlines out in two fixed-width columns; the
// transport wraps the result in a monospace block.
func renderDeadlineTable(deadlines []model.Deadline) string {
	width := len("Deadline")
	for _, d := range deadlines {
		if len(d.Description) > width {
			width = len(d.Description)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-*s  %s\n", width, "Deadline", "Due")
	for _, d := range deadlines {
		fmt.Fprintf(&sb, "%-*s  %s\n", width, d.Description, d.DueDate.Format(dateLayout))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// renderReminderTable lists each deadline followed by its upcoming reminder
// times, indented one per line.
func renderReminderTable(groups []store.DeadlineReminders) string {
	var sb strings.Builder
	for _, g := range groups {
		fmt.Fprintf(&sb, "%s\n", g.Description)
		for _, at := range g.Times {
			fmt.Fprintf(&sb, "  - %s\n", at.Format(dateTimeLayout))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
