// Package services provides the business logic layer between handlers and the coordinator.
// Services validate requests, orchestrate the coordinator and the metadata store, and
// classify failures for the HTTP layer.
package services

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies a failure
type ErrorKind string

const (
	KindInputValidation     ErrorKind = "InputValidation"
	KindNotFound            ErrorKind = "NotFound"
	KindConflict            ErrorKind = "Conflict"
	KindUpstreamUnavailable ErrorKind = "UpstreamUnavailable"
	KindPartialData         ErrorKind = "PartialData"
	KindInternal            ErrorKind = "Internal"
)

// Error codes
const (
	CodeInvalidRequest     = "InvalidRequest"
	CodeInvalidDirectory   = "InvalidDirectory"
	CodeInvalidDestination = "InvalidDestination"
	CodeFileNotFound       = "FileNotFound"
	CodeDirectoryNotFound  = "DirectoryNotFound"
	CodeFolderNotFound     = "FolderNotFound"
	CodeFileExists         = "FileExists"
	CodeDirectoryExists    = "DirectoryExists"
	CodeNoActiveDatanodes  = "NoActiveDatanodes"
	CodeUploadIncomplete   = "UploadIncomplete"
	CodeNoChunksRecorded   = "NoChunksRecorded"
	CodeChunkUnavailable   = "ChunkUnavailable"
	CodeReassemblyFailed   = "ReassemblyFailed"
	CodeInternal           = "Internal"
)

// ServiceError represents a service layer error
type ServiceError struct {
	Kind    ErrorKind              `json:"kind"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`

	cause error
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Unwrap returns the error the service error was built from, if any
func (e *ServiceError) Unwrap() error {
	return e.cause
}

// HTTPStatus maps the kind to a response status
func (e *ServiceError) HTTPStatus() int {
	switch e.Kind {
	case KindInputValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns the code emitted in error payloads
func (e *ServiceError) ErrorCode() string {
	return e.Code
}

// NewServiceError creates a new ServiceError
func NewServiceError(kind ErrorKind, code, message string) *ServiceError {
	return &ServiceError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// NewServiceErrorWithDetails creates a new ServiceError with details
func NewServiceErrorWithDetails(kind ErrorKind, code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func invalid(code, format string, args ...interface{}) *ServiceError {
	return NewServiceError(KindInputValidation, code, fmt.Sprintf(format, args...))
}

func notFound(code, format string, args ...interface{}) *ServiceError {
	return NewServiceError(KindNotFound, code, fmt.Sprintf(format, args...))
}

func conflict(code, format string, args ...interface{}) *ServiceError {
	return NewServiceError(KindConflict, code, fmt.Sprintf(format, args...))
}

// internal hides err behind a generic message; the cause stays reachable for logging
func internal(op string, err error) *ServiceError {
	return &ServiceError{
		Kind:    KindInternal,
		Code:    CodeInternal,
		Message: op + " failed",
		cause:   err,
	}
}
