package task

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Duration returns the elapsed time between startedAt and completedAt in
// hours. The second return is false when either timestamp is missing or
// completedAt precedes startedAt; a violated ordering yields unavailable,
// never a negative duration.
func Duration(startedAt, completedAt *time.Time) (float64, bool) {
	if startedAt == nil || completedAt == nil {
		return 0, false
	}
	if completedAt.Before(*startedAt) {
		return 0, false
	}
	return completedAt.Sub(*startedAt).Hours(), true
}

// Accuracy scores how close the actual hours came to the estimate, as a
// percentage rounded to two decimals. Finishing at or under the estimate
// scores 100 plus the unused share of the estimate; overruns lose a
// percentage point per percent of overrun, clamped at zero. An estimate of
// zero makes the score unavailable.
func Accuracy(actualHours, estimatedHours float64) (float64, bool) {
	if estimatedHours == 0 {
		return 0, false
	}
	var pct float64
	if actualHours <= estimatedHours {
		pct = 100 + (estimatedHours-actualHours)/estimatedHours*100
	} else {
		pct = math.Max(0, (1-(actualHours-estimatedHours)/estimatedHours)*100)
	}
	return math.Round(pct*100) / 100, true
}

// ScheduleAccuracy combines Duration and Accuracy for a stored task.
func ScheduleAccuracy(t Task) (float64, bool) {
	actual, ok := Duration(t.StartedAt, t.CompletedAt)
	if !ok {
		return 0, false
	}
	return Accuracy(actual, t.EstimatedHours)
}

// FormatDuration renders a duration in hours as a compact human-readable
// string: whole minutes under an hour, hours and minutes under a day, and
// days/hours/minutes beyond that with zero-valued units omitted.
func FormatDuration(hours float64) string {
	total := int(math.Round(hours * 60))
	if total <= 0 {
		return "0m"
	}
	if total < 60 {
		return fmt.Sprintf("%dm", total)
	}
	if total < 24*60 {
		h, m := total/60, total%60
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh %dm", h, m)
	}
	d := total / (24 * 60)
	h := total % (24 * 60) / 60
	m := total % 60
	parts := []string{fmt.Sprintf("%dd", d)}
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	return strings.Join(parts, " ")
}
