package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/learning-service/internal/validator"
)

// Error kinds shared by the HTTP and websocket transports
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")
	ErrAuthFailure      = errors.New("authentication failed")
	ErrInsufficientData = errors.New("insufficient data")
)

// DomainError is a named failure of one kind
type DomainError struct {
	Kind    error
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Kind
}

func newDomainError(kind error, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

var (
	ErrLessonNotFound   = newDomainError(ErrNotFound, "lesson not found")
	ErrModuleNotFound   = newDomainError(ErrNotFound, "module not found")
	ErrStudentNotFound  = newDomainError(ErrNotFound, "student not found")
	ErrUserNotFound     = newDomainError(ErrNotFound, "user not found")
	ErrTicketNotFound   = newDomainError(ErrNotFound, "ticket not found")
	ErrMessageNotFound  = newDomainError(ErrNotFound, "message not found")
	ErrTicketClosed     = newDomainError(ErrConflict, "ticket is closed")
	ErrAlreadyAdvanced  = newDomainError(ErrConflict, "already advanced today")
	ErrInvalidAnswers   = newDomainError(ErrInvalidInput, "answer_list must be a non-empty list")
	ErrInvalidUnitType  = newDomainError(ErrInvalidInput, "unknown unit type")
	ErrEmptyMessage     = newDomainError(ErrInvalidInput, "message or file_path is required")
	ErrInvalidWorkbook  = newDomainError(ErrInvalidInput, "workbook has no readable sheet")
	ErrNotMessageSender = newDomainError(ErrPermissionDenied, "only the sender can change a message")
)

func unitNotFound(unitType string) error {
	if unitType == "module" {
		return ErrModuleNotFound
	}
	return ErrLessonNotFound
}

// PermissionError describes a failed role or ownership check
type PermissionError struct {
	UserID     uint
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %d cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}

func NewPermissionError(userID, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// BusinessRuleError is a rule the data cannot satisfy, such as a unit with too few questions
type BusinessRuleError struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

func (e *BusinessRuleError) Error() string {
	return e.Message
}

func (e *BusinessRuleError) Unwrap() error {
	return ErrInsufficientData
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

// ValidationErrors is re-exported so transports need a single import
type ValidationErrors = validator.ValidationErrors

// Error codes reported to clients
const (
	CodeNotFound         = "not_found"
	CodePermissionDenied = "permission_denied"
	CodeInvalidInput     = "invalid_input"
	CodeConflict         = "conflict"
	CodeAuthFailure      = "auth_failure"
	CodeInsufficientData = "insufficient_data"
	CodeInternal         = "internal"
)

// ErrorKind maps err onto a client-facing code
func ErrorKind(err error) string {
	var validationErrors ValidationErrors
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErrors), errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrAuthFailure):
		return CodeAuthFailure
	case errors.Is(err, ErrInsufficientData):
		return CodeInsufficientData
	default:
		return CodeInternal
	}
}

// PublicMessage is the text safe to show a client for err
func PublicMessage(err error) string {
	if ErrorKind(err) == CodeInternal {
		return "internal error"
	}
	return err.Error()
}
