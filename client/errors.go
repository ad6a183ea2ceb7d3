package client

import "fmt"

// AuthError is a 401/403-class failure from the remote system. It is
// propagated unchanged; session recovery is the host application's job.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authorization failed (%d): %s", e.Status, e.Message)
}

// FetchError is a failed bulk read. The view keeps its prior contents when
// a fetch fails.
type FetchError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MutationError is a failed create, update, or delete. The coordinator
// follows it with an authoritative resync.
type MutationError struct {
	Op     string
	TaskID string
	Status int
	Err    error
}

func (e *MutationError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("%s task: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s task %s: %v", e.Op, e.TaskID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }
