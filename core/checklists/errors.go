package checklists

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	ErrorCodeValidation   = "checklists.validation"
	ErrorCodeNotFound     = "checklists.not_found"
	ErrorCodeConflict     = "checklists.conflict"
	ErrorCodePrecondition = "checklists.precondition_failed"
	ErrorCodeStorage      = "checklists.storage"
	ErrorCodeInternal     = "checklists.internal"
)

// ErrNoMatchingTemplate is informational: an alert had no active template to spawn.
var ErrNoMatchingTemplate = errors.New("no matching template")

type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation: " + e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		parts = append(parts, k+": "+v)
	}
	sort.Strings(parts)
	return "validation: " + e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Code() string { return ErrorCodeValidation }

func invalid(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func invalidField(field, msg string) *ValidationError {
	return &ValidationError{Message: "invalid input", Fields: map[string]string{field: msg}}
}

type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

func (e *NotFoundError) Code() string { return ErrorCodeNotFound }

func notFound(resource string, id any) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError carries enough detail for a caller to explain the block without a second request.
type ConflictError struct {
	Message string
	Count   int
	IDs     []int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s (%d blocking)", e.Message, e.Count)
}

func (e *ConflictError) Code() string { return ErrorCodeConflict }

type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string { return "precondition failed: " + e.Message }

func (e *PreconditionError) Code() string { return ErrorCodePrecondition }

type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage " + e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Code() string { return ErrorCodeStorage }

// DomainError is implemented by every typed error of this package.
type DomainError interface {
	error
	Code() string
}

func AsDomainError(err error) (DomainError, bool) {
	var (
		ve *ValidationError
		ne *NotFoundError
		ce *ConflictError
		pe *PreconditionError
		se *StorageError
	)
	switch {
	case errors.As(err, &ve):
		return ve, true
	case errors.As(err, &ne):
		return ne, true
	case errors.As(err, &ce):
		return ce, true
	case errors.As(err, &pe):
		return pe, true
	case errors.As(err, &se):
		return se, true
	}
	return nil, false
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
