package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound missing document or path
	ErrNotFound = errors.New("not found")
	// ErrMalformedLocation location content is not "<lon>,<lat>"
	ErrMalformedLocation = errors.New("malformed location")
	// ErrRevisionConflict a conditional write lost against a newer revision
	ErrRevisionConflict = errors.New("revision conflict")
	// ErrInvalidPath document path with an empty or forbidden segment
	ErrInvalidPath = errors.New("invalid path")
	// ErrPartialSync a multi-step sync failed after an earlier step landed
	ErrPartialSync = errors.New("partial sync failure")
	// ErrFailedToUpload blob upload failed
	ErrFailedToUpload = errors.New("failed to upload")
	// ErrFailedToDownloadURL blob url lookup failed
	ErrFailedToDownloadURL = errors.New("failed to get download url")
)

// StoreError a document store call that failed
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap the backend error
func (e *StoreError) Unwrap() error {
	return e.Err
}

// PartialSyncError reports which steps of a sync landed before Failed did.
// Nothing is rolled back.
type PartialSyncError struct {
	Op        string
	Completed []string
	Failed    []string
	Err       error
}

func (e *PartialSyncError) Error() string {
	return fmt.Sprintf("%s: partial sync, completed [%s], failed [%s]: %v",
		e.Op, strings.Join(e.Completed, ", "), strings.Join(e.Failed, ", "), e.Err)
}

// Unwrap the step errors
func (e *PartialSyncError) Unwrap() error {
	return e.Err
}

// Is match ErrPartialSync
func (e *PartialSyncError) Is(target error) bool {
	return target == ErrPartialSync
}
