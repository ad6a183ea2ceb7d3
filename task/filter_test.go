package task

import "testing"

// mapDirectory backs the predicate's user lookups in tests.
type mapDirectory map[string]UserInfo

func (d mapDirectory) Lookup(id string) (UserInfo, bool) {
	u, ok := d[id]
	return u, ok
}

func TestMatches_StatusAndPriority(t *testing.T) {
	task := Task{ID: "t1", Title: "Ship release", Status: StatusPending, Priority: PriorityHigh}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter matches", Filter{}, true},
		{"status match", Filter{Status: StatusPending}, true},
		{"status mismatch", Filter{Status: StatusInProgress}, false},
		{"priority match", Filter{Priority: PriorityHigh}, true},
		{"priority mismatch", Filter{Priority: PriorityLow}, false},
		{"both must hold", Filter{Status: StatusPending, Priority: PriorityLow}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(task, tt.filter, true, nil); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatches_ExcludeCompleted(t *testing.T) {
	done := Task{ID: "t1", Status: StatusCompleted}
	if Matches(done, Filter{ExcludeCompleted: true}, true, nil) {
		t.Error("completed task should be excluded")
	}
	// excludeCompleted wins even when the status filter asks for completed
	if Matches(done, Filter{ExcludeCompleted: true, Status: StatusCompleted}, true, nil) {
		t.Error("excludeCompleted should override the status filter")
	}
}

func TestMatches_SearchText(t *testing.T) {
	dir := mapDirectory{
		"u1": {DisplayName: "Alice Johnson", Username: "alice", Email: "alice@example.com"},
	}
	task := Task{ID: "t1", Title: "Refactor Billing", Status: StatusPending, AssignedTo: UserIDs{"u1", "u2"}}

	tests := []struct {
		name   string
		search string
		want   bool
	}{
		{"title case-insensitive", "billing", true},
		{"display name", "johnson", true},
		{"username", "ALICE", true},
		{"email", "alice@example", true},
		{"raw id fallback for unknown assignee", "u2", true},
		{"no match", "database", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Matches(task, Filter{SearchText: tt.search}, true, dir)
			if got != tt.want {
				t.Errorf("search %q: Matches = %v, want %v", tt.search, got, tt.want)
			}
		})
	}
}

func TestMatches_AssignedUser(t *testing.T) {
	task := Task{ID: "t1", Status: StatusPending, AssignedTo: UserIDs{"u1"}}
	if !Matches(task, Filter{AssignedUserID: "u1"}, true, nil) {
		t.Error("assignee filter should match a member")
	}
	if Matches(task, Filter{AssignedUserID: "u9"}, true, nil) {
		t.Error("assignee filter should reject a non-member")
	}
}

func TestMatches_CapabilityGating(t *testing.T) {
	task := Task{ID: "t1", Title: "Quarterly report", Status: StatusPending, AssignedTo: UserIDs{"u1"}}

	// Without view-all, search text and assignee filters are ignored
	// entirely: a task that fails both still matches.
	f := Filter{SearchText: "does-not-appear", AssignedUserID: "someone-else"}
	if !Matches(task, f, false, nil) {
		t.Error("search/userId must have zero effect without view-all")
	}
	if Matches(task, f, true, nil) {
		t.Error("same filter should reject the task with view-all")
	}
}
