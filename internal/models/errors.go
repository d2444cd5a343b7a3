package models

import (
	"context"
	"errors"
	"fmt"
)

// Failure taxonomy shared by every component. Callers match with errors.Is.
var (
	// ErrBindingUnavailable means the remote capability is not ready yet.
	// Waiting and trying again is the only recovery.
	ErrBindingUnavailable = errors.New("remote binding unavailable")

	// ErrRemoteRejected means the remote store declined the call.
	ErrRemoteRejected = errors.New("remote rejected the operation")

	// ErrNotFound means the store has no retrievable content for an id.
	ErrNotFound = errors.New("file content not found")

	// ErrUnsupportedOperation is returned for every confirmed deletion.
	ErrUnsupportedOperation = errors.New("operation not supported")
)

// Entry-point and validation errors.
var (
	ErrInvalidName        = errors.New("file name must not be empty")
	ErrInvalidSize        = errors.New("file size must be a non-negative integer")
	ErrUploadInFlight     = errors.New("an upload is already in progress")
	ErrRetrievalInFlight  = errors.New("a download is already in progress")
	ErrNoPendingDeletion  = errors.New("no deletion is awaiting confirmation")
	ErrDuplicateID        = errors.New("listing contains a duplicate file id")
	ErrClosed             = errors.New("component closed")
	ErrMaterializeFailure = errors.New("could not save retrieved file")
)

// RemoteRejectedError carries the cause the store gave for declining an operation.
type RemoteRejectedError struct {
	Op    string
	Cause error
}

// Reject wraps cause as a RemoteRejectedError for op. A cause that already
// is one is returned unchanged.
func Reject(op string, cause error) error {
	if cause == nil {
		cause = errors.New("unknown error")
	}
	var rr *RemoteRejectedError
	if errors.As(cause, &rr) {
		return cause
	}
	return &RemoteRejectedError{Op: op, Cause: cause}
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %v", e.Op, e.Cause)
}

func (e *RemoteRejectedError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrRemoteRejected) match.
func (e *RemoteRejectedError) Is(target error) bool {
	return target == ErrRemoteRejected
}

// Error kinds attached to notifications.
const (
	KindBindingUnavailable   = "binding_unavailable"
	KindRemoteRejected       = "remote_rejected"
	KindNotFound             = "not_found"
	KindUnsupportedOperation = "unsupported_operation"
	KindInvalidInput         = "invalid_input"
	KindBusy                 = "busy"
	KindCanceled             = "canceled"
	KindInternal             = "internal"
)

// ErrorKind classifies err for display. nil yields "".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, ErrBindingUnavailable):
		return KindBindingUnavailable
	case errors.Is(err, ErrRemoteRejected):
		return KindRemoteRejected
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnsupportedOperation):
		return KindUnsupportedOperation
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrInvalidSize):
		return KindInvalidInput
	case errors.Is(err, ErrUploadInFlight), errors.Is(err, ErrRetrievalInFlight):
		return KindBusy
	default:
		return KindInternal
	}
}

// Summary returns the one-line, human-readable text used in notifications.
func Summary(err error) string {
	switch ErrorKind(err) {
	case "":
		return ""
	case KindBindingUnavailable:
		return "Not connected to the file store yet. Try again in a moment."
	case KindNotFound:
		return "The file has no downloadable content."
	case KindUnsupportedOperation:
		return "Deleting files is not supported."
	case KindCanceled:
		return "The operation was cancelled."
	case KindRemoteRejected:
		var rr *RemoteRejectedError
		if errors.As(err, &rr) {
			return rr.Cause.Error()
		}
	}
	return err.Error()
}
