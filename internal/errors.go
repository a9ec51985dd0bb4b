package internal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies a SyncError.
type ErrorCode string

const (
	CodeDirtyWorkingTree   ErrorCode = "DIRTY_WORKING_TREE"
	CodeRevisionMismatch   ErrorCode = "REVISION_MISMATCH"
	CodeStoreFailure       ErrorCode = "STORE_FAILURE"
	CodeTransportFailure   ErrorCode = "TRANSPORT_FAILURE"
	CodeInvariantViolation ErrorCode = "INVARIANT_VIOLATION"
	CodeReferenceNotFound  ErrorCode = "REFERENCE_NOT_FOUND"
	CodePathNotFound       ErrorCode = "PATH_NOT_FOUND"
	CodeIOFailure          ErrorCode = "IO_FAILURE"
	CodeCommitFailure      ErrorCode = "COMMIT_FAILURE"
	CodeMergeFailure       ErrorCode = "MERGE_FAILURE"
	CodeConfigInvalid      ErrorCode = "CONFIG_INVALID"
)

// Sentinels for errors.Is. They match any SyncError carrying the same code.
var (
	ErrDirtyWorkingTree   = &SyncError{Code: CodeDirtyWorkingTree, Message: "refusing to update because there are uncommitted changes"}
	ErrRevisionMismatch   = &SyncError{Code: CodeRevisionMismatch, Message: "cited commit does not contain the expected content"}
	ErrStoreFailure       = &SyncError{Code: CodeStoreFailure, Message: "store operation failed"}
	ErrTransportFailure   = &SyncError{Code: CodeTransportFailure, Message: "transport failed"}
	ErrInvariantViolation = &SyncError{Code: CodeInvariantViolation, Message: "internal invariant violated"}
	ErrReferenceNotFound  = &SyncError{Code: CodeReferenceNotFound, Message: "reference not found"}
	ErrPathNotFound       = &SyncError{Code: CodePathNotFound, Message: "path not found"}
)

// ErrFastForwardImpossible is returned by Store.FastForward when the target
// does not descend from the current tip.
var ErrFastForwardImpossible = errors.New("fast-forward not possible")

// SyncError is the error type returned by every fallible operation of the
// sync engine.
type SyncError struct {
	Code    ErrorCode
	Op      string
	Message string
	Details map[string]string
	Err     error
}

func (e *SyncError) Error() string {
	var parts []string
	for _, p := range []string{e.Op, e.Message} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	msg := fmt.Sprintf("[%s]", e.Code)
	if len(parts) > 0 {
		msg += " " + strings.Join(parts, ": ")
	}
	return msg
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Is matches on the error code so that sentinels compare equal to any error
// of their class.
func (e *SyncError) Is(target error) bool {
	var t *SyncError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetail attaches a diagnostic key/value pair.
func (e *SyncError) WithDetail(key, value string) *SyncError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func newError(code ErrorCode, op, format string, args ...any) *SyncError {
	return &SyncError{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, op string, err error) *SyncError {
	if err == nil {
		return nil
	}
	return &SyncError{Code: code, Op: op, Err: err}
}

// storeFailure wraps an underlying store error. Errors that already carry a
// code pass through untouched.
func storeFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *SyncError
	if errors.As(err, &se) {
		return err
	}
	return wrapError(CodeStoreFailure, op, err)
}

// IsCode reports whether err is a SyncError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// CodeOf returns the code of err, or the empty code for foreign errors.
func CodeOf(err error) ErrorCode {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
