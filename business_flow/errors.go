// Package businessflow contains the core business logic and use cases for tag synchronization workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Tag-related errors
	ErrTagNotFound    = errors.New("tag not found")
	ErrTagNotSyncable = errors.New("tag has no paired product or hardware profile")

	// Pipeline errors
	ErrNoImageToDispatch = errors.New("no rendered image available to dispatch")

	// Bulk sync errors
	ErrBulkTargetRequired = errors.New("bulk sync requires a store, product, or explicit tag list")
	ErrBulkNoSyncableTags = errors.New("no syncable tags matched the bulk sync target")
	ErrSyncGroupNotFound  = errors.New("sync group not found")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsTagNotFound(err error) bool {
	return errors.Is(err, ErrTagNotFound)
}

func IsTagNotSyncable(err error) bool {
	return errors.Is(err, ErrTagNotSyncable)
}

func IsNoImageToDispatch(err error) bool {
	return errors.Is(err, ErrNoImageToDispatch)
}

func IsBulkTargetRequired(err error) bool {
	return errors.Is(err, ErrBulkTargetRequired)
}

func IsBulkNoSyncableTags(err error) bool {
	return errors.Is(err, ErrBulkNoSyncableTags)
}

func IsSyncGroupNotFound(err error) bool {
	return errors.Is(err, ErrSyncGroupNotFound)
}
