// Package task defines the task model, the view filter predicate, and the
// duration/accuracy analytics shared by all dashboard views.
package task

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusHold       Status = "hold"

	// StatusAny matches every status in a filter.
	StatusAny Status = ""
)

// Priority ranks task urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"

	// PriorityAny matches every priority in a filter.
	PriorityAny Priority = ""
)

// UserIDs is a set of assignee identifiers. Older records carry a single
// identifier instead of an array; decoding normalizes that into a
// one-element set.
type UserIDs []string

// UnmarshalJSON accepts either a JSON array of strings or a bare string.
func (u *UserIDs) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*u = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return fmt.Errorf("assignedTo: expected string or array: %w", err)
	}
	if one == "" {
		*u = nil
		return nil
	}
	*u = UserIDs{one}
	return nil
}

// Contains reports whether id is a member of the set.
func (u UserIDs) Contains(id string) bool {
	for _, v := range u {
		if v == id {
			return true
		}
	}
	return false
}

// ActorRef identifies a user who performed an action, with an optional
// cached display name.
type ActorRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
}

// Task is a single tracked work item. The local collection is only a cache;
// the remote system owns the authoritative record.
type Task struct {
	ID             string     `json:"id,omitempty"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         Status     `json:"status"`
	Priority       Priority   `json:"priority"`
	EstimatedHours float64    `json:"estimatedHours,omitempty"`
	AssignedTo     UserIDs    `json:"assignedTo,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`

	// ScheduledStartDate is a calendar date ("2006-01-02") with no time
	// component; ScheduledStartTime is a local time of day ("15:04").
	ScheduledStartDate string `json:"scheduledStartDate,omitempty"`
	ScheduledStartTime string `json:"scheduledStartTime,omitempty"`

	PutOnHoldBy *ActorRef `json:"putOnHoldBy,omitempty"`
	UpdatedBy   *ActorRef `json:"updatedBy,omitempty"`
}

// Normalize brings a freshly decoded task into canonical form: timestamps in
// UTC and updatedAt never earlier than createdAt.
func (t *Task) Normalize() {
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	if t.UpdatedAt.Before(t.CreatedAt) {
		t.UpdatedAt = t.CreatedAt
	}
	if t.StartedAt != nil {
		utc := t.StartedAt.UTC()
		t.StartedAt = &utc
	}
	if t.CompletedAt != nil {
		utc := t.CompletedAt.UTC()
		t.CompletedAt = &utc
	}
}

// Deadline derives the scheduled deadline: scheduled start plus the
// estimated hours. Returns nil when no scheduled start date is set or the
// date cannot be parsed. The scheduled start is interpreted as local wall
// clock time; a missing time-of-day means start of day.
func (t *Task) Deadline() *time.Time {
	if t.ScheduledStartDate == "" {
		return nil
	}
	layout, value := "2006-01-02", t.ScheduledStartDate
	if t.ScheduledStartTime != "" {
		layout, value = "2006-01-02 15:04", t.ScheduledStartDate+" "+t.ScheduledStartTime
	}
	start, err := time.ParseInLocation(layout, value, time.Local)
	if err != nil {
		return nil
	}
	deadline := start.Add(time.Duration(t.EstimatedHours * float64(time.Hour)))
	return &deadline
}

// CreatePayload is the body sent to create a task remotely. The remote
// system assigns the id and timestamps; drafts are never minted locally
// with a final id.
type CreatePayload struct {
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	Status             Status   `json:"status,omitempty"`
	Priority           Priority `json:"priority,omitempty"`
	EstimatedHours     float64  `json:"estimatedHours,omitempty"`
	AssignedTo         UserIDs  `json:"assignedTo,omitempty"`
	ScheduledStartDate string   `json:"scheduledStartDate,omitempty"`
	ScheduledStartTime string   `json:"scheduledStartTime,omitempty"`
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Title              *string    `json:"title,omitempty"`
	Description        *string    `json:"description,omitempty"`
	Status             *Status    `json:"status,omitempty"`
	Priority           *Priority  `json:"priority,omitempty"`
	EstimatedHours     *float64   `json:"estimatedHours,omitempty"`
	AssignedTo         *UserIDs   `json:"assignedTo,omitempty"`
	StartedAt          *time.Time `json:"startedAt,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	ScheduledStartDate *string    `json:"scheduledStartDate,omitempty"`
	ScheduledStartTime *string    `json:"scheduledStartTime,omitempty"`
}

// Apply copies the patch's set fields onto t and bumps its updatedAt.
func (p Patch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.EstimatedHours != nil {
		t.EstimatedHours = *p.EstimatedHours
	}
	if p.AssignedTo != nil {
		t.AssignedTo = append(UserIDs(nil), (*p.AssignedTo)...)
	}
	if p.StartedAt != nil {
		utc := p.StartedAt.UTC()
		t.StartedAt = &utc
	}
	if p.CompletedAt != nil {
		utc := p.CompletedAt.UTC()
		t.CompletedAt = &utc
	}
	if p.ScheduledStartDate != nil {
		t.ScheduledStartDate = *p.ScheduledStartDate
	}
	if p.ScheduledStartTime != nil {
		t.ScheduledStartTime = *p.ScheduledStartTime
	}
	if now := time.Now().UTC(); now.After(t.UpdatedAt) {
		t.UpdatedAt = now
	}
}
