package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/devello/devello-studios/internal/ideas"
	"github.com/devello/devello-studios/internal/resolve"
)

// FormatDurationShort formats a duration as M:SS or H:MM:SS.
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// ProgressObserver prints one line per resolver transition, prefixed with
// the elapsed time since start.
func ProgressObserver(w io.Writer, start time.Time) resolve.Observer {
	return func(e resolve.Event) {
		elapsed := FormatDurationShort(time.Since(start))
		switch e.State {
		case resolve.StateSubmitted:
			fmt.Fprintf(w, "[%s] submitted\n", elapsed)
		case resolve.StateProcessing:
			if e.Attempt == 0 {
				fmt.Fprintf(w, "[%s] processing (job %s)\n", elapsed, e.JobID)
			} else {
				fmt.Fprintf(w, "[%s] still processing, poll %d\n", elapsed, e.Attempt)
			}
		case resolve.StateIdle:
		default:
			fmt.Fprintf(w, "[%s] %s\n", elapsed, e.State)
		}
	}
}

// PrintIdeas writes one line per idea: date, status and the first line of
// its text.
func PrintIdeas(w io.Writer, list []ideas.Idea) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No ideas yet.")
		return
	}
	for _, idea := range list {
		date := "----------"
		if idea.CreatedAt != nil {
			date = idea.CreatedAt.Local().Format("2006-01-02")
		}
		status := idea.Status
		if status == "" {
			status = "-"
		}
		text, _, _ := strings.Cut(idea.Text, "\n")
		fmt.Fprintf(w, "%s  %-10s  %s\n", date, status, text)
	}
}
