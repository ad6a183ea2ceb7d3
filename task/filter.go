package task

import (
	"strings"

	"golang.org/x/text/cases"
)

// CapViewAll is the capability that lets a caller see and search tasks
// belonging to other users.
const CapViewAll = "view-all"

// Filter describes the currently active view.
type Filter struct {
	Status           Status   `json:"status,omitempty"`
	Priority         Priority `json:"priority,omitempty"`
	SearchText       string   `json:"searchText,omitempty"`
	AssignedUserID   string   `json:"assignedUserId,omitempty"`
	ExcludeCompleted bool     `json:"excludeCompleted,omitempty"`
}

// UserInfo is the resolved identity of an assignee, used only for search
// matching.
type UserInfo struct {
	DisplayName string
	Username    string
	Email       string
}

// Directory resolves assignee identifiers to known users. Lookups must be
// side-effect free; a false return means the id is unknown and search falls
// back to matching the raw identifier.
type Directory interface {
	Lookup(id string) (UserInfo, bool)
}

// Matches reports whether t belongs in the view described by f.
//
// When viewAll is false the caller may only see their own assigned tasks by
// construction, so the search text and assigned-user criteria are ignored
// entirely rather than defaulted. dir may be nil; unresolved assignees match
// against their raw identifier.
func Matches(t Task, f Filter, viewAll bool, dir Directory) bool {
	if f.ExcludeCompleted && t.Status == StatusCompleted {
		return false
	}
	if f.Status != StatusAny && t.Status != f.Status {
		return false
	}
	if f.Priority != PriorityAny && t.Priority != f.Priority {
		return false
	}
	if !viewAll {
		return true
	}
	if s := strings.TrimSpace(f.SearchText); s != "" && !searchMatch(t, s, dir) {
		return false
	}
	if f.AssignedUserID != "" && !t.AssignedTo.Contains(f.AssignedUserID) {
		return false
	}
	return true
}

// searchMatch checks the search text against the title and every assignee's
// resolved display name, username, and email.
func searchMatch(t Task, search string, dir Directory) bool {
	if containsFold(t.Title, search) {
		return true
	}
	for _, id := range t.AssignedTo {
		if dir != nil {
			if u, ok := dir.Lookup(id); ok {
				if containsFold(u.DisplayName, search) ||
					containsFold(u.Username, search) ||
					containsFold(u.Email, search) {
					return true
				}
				continue
			}
		}
		if containsFold(id, search) {
			return true
		}
	}
	return false
}

// containsFold reports whether substr occurs in s under Unicode case folding.
func containsFold(s, substr string) bool {
	fold := cases.Fold()
	return strings.Contains(fold.String(s), fold.String(substr))
}
