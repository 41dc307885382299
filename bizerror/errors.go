package bizerror

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	message := "common.bad_param"
	if e.Cause != nil {
		message = e.Cause.Error()
	}
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: message, Data: nil}
}

// Code is a machine-readable reason of a rejected workflow operation.
type Code string

const (
	CodeUnauthorizedAction    Code = "UNAUTHORIZED_ACTION"
	CodeStageNotFound         Code = "STAGE_NOT_FOUND"
	CodeNextStageNotFound     Code = "NEXT_STAGE_NOT_FOUND"
	CodeTemplateMismatch      Code = "TEMPLATE_MISMATCH"
	CodeInvalidTerminalAction Code = "INVALID_TERMINAL_ACTION"
	CodeWorkflowNotFound      Code = "WORKFLOW_NOT_FOUND"
	CodeWorkflowCompleted     Code = "WORKFLOW_COMPLETED"
	CodeWorkflowCancelled     Code = "WORKFLOW_CANCELLED"

	CodeActionNotFound         Code = "ACTION_NOT_FOUND"
	CodeStageMismatch          Code = "STAGE_MISMATCH"
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"
	CodeDocumentNotFound       Code = "DOCUMENT_NOT_FOUND"
	CodeTemplateNotFound       Code = "TEMPLATE_NOT_FOUND"
	CodeWorkflowAlreadyActive  Code = "WORKFLOW_ALREADY_ACTIVE"
)

var codeStatus = map[Code]int{
	CodeUnauthorizedAction:     http.StatusForbidden,
	CodeStageNotFound:          http.StatusUnprocessableEntity,
	CodeNextStageNotFound:      http.StatusUnprocessableEntity,
	CodeTemplateMismatch:       http.StatusUnprocessableEntity,
	CodeInvalidTerminalAction:  http.StatusUnprocessableEntity,
	CodeWorkflowNotFound:       http.StatusNotFound,
	CodeWorkflowCompleted:      http.StatusConflict,
	CodeWorkflowCancelled:      http.StatusConflict,
	CodeActionNotFound:         http.StatusNotFound,
	CodeStageMismatch:          http.StatusConflict,
	CodeConcurrentModification: http.StatusConflict,
	CodeDocumentNotFound:       http.StatusNotFound,
	CodeTemplateNotFound:       http.StatusNotFound,
	CodeWorkflowAlreadyActive:  http.StatusConflict,
}

// WorkflowError is a business rule failure. The document is left unmodified when it is returned,
// retrying without validating again is pointless.
type WorkflowError struct {
	Code    Code
	Message string
}

func NewWorkflowError(code Code, message string) *WorkflowError {
	return &WorkflowError{Code: code, Message: message}
}

func (e *WorkflowError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

// Is matches any WorkflowError carrying the same code.
func (e *WorkflowError) Is(target error) bool {
	t, ok := target.(*WorkflowError)
	return ok && t.Code == e.Code
}

func (e *WorkflowError) Respond() *BizErrorDetail {
	status, found := codeStatus[e.Code]
	if !found {
		status = http.StatusBadRequest
	}
	message := e.Message
	if message == "" {
		message = string(e.Code)
	}
	return &BizErrorDetail{Status: status, Code: string(e.Code), Message: message}
}

// IsBusinessError tells a business rule failure apart from infrastructure failures.
func IsBusinessError(err error) bool {
	var we *WorkflowError
	return errors.As(err, &we)
}

// CodeOf returns the code of a business rule failure, or an empty code.
func CodeOf(err error) Code {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}
