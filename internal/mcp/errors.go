package mcp

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode classifies domain errors. These are tool-level codes and
// never appear as JSON-RPC wire codes.
type ErrorCode string

const (
	ErrInvalidParams        ErrorCode = "INVALID_PARAMS"
	ErrValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrFileNotFound         ErrorCode = "FILE_NOT_FOUND"
	ErrProjectNotFound      ErrorCode = "PROJECT_NOT_FOUND"
	ErrTicketNotFound       ErrorCode = "TICKET_NOT_FOUND"
	ErrPromptNotFound       ErrorCode = "PROMPT_NOT_FOUND"
	ErrNoSearchResults      ErrorCode = "NO_SEARCH_RESULTS"
	ErrSearchFailed         ErrorCode = "SEARCH_FAILED"
	ErrBatchSizeExceeded    ErrorCode = "BATCH_SIZE_EXCEEDED"
	ErrBatchOperationFailed ErrorCode = "BATCH_OPERATION_FAILED"
	ErrUnknownAction        ErrorCode = "UNKNOWN_ACTION"
	ErrServiceError         ErrorCode = "SERVICE_ERROR"
	ErrNotFound             ErrorCode = "NOT_FOUND"
	ErrInternalError        ErrorCode = "INTERNAL_ERROR"
)

// DomainError is the single structured error kind tool handlers
// return. The invoker formats it into a ToolResult with IsError set.
type DomainError struct {
	Code             ErrorCode
	Message          string
	Context          map[string]interface{}
	Suggestion       string
	RelatedResources []string
	ValidationErrors []string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewDomainError creates a domain error with the given code.
func NewDomainError(code ErrorCode, format string, args ...interface{}) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithContext attaches a context field.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = map[string]interface{}{}
	}
	e.Context[key] = value
	return e
}

// WithSuggestion attaches a suggested next action.
func (e *DomainError) WithSuggestion(s string) *DomainError {
	e.Suggestion = s
	return e
}

// WithAlternatives attaches up to 5 alternative resources, e.g. file
// paths the caller might have meant.
func (e *DomainError) WithAlternatives(alts []string) *DomainError {
	if len(alts) > 5 {
		alts = alts[:5]
	}
	e.RelatedResources = alts
	return e
}

// MissingFieldError builds the INVALID_PARAMS error for an absent or
// mistyped field. The message names the field, the expected type and
// a concrete example so the caller can self-correct.
func MissingFieldError(field, expectedType, example string) *DomainError {
	e := NewDomainError(ErrInvalidParams,
		"missing or invalid required field %q: expected %s (example: %s)",
		field, expectedType, example)
	return e.WithContext("field", field).
		WithContext("expectedType", expectedType).
		WithContext("example", example)
}

// UnknownActionError builds the error for an action outside the
// tool's enum, listing the valid actions.
func UnknownActionError(tool, action string, valid []string) *DomainError {
	sorted := append([]string(nil), valid...)
	sort.Strings(sorted)
	e := NewDomainError(ErrUnknownAction,
		"unknown action %q for tool %s", action, tool)
	e.Suggestion = fmt.Sprintf("Valid actions: %s", strings.Join(sorted, ", "))
	return e
}

// AsDomainError extracts a *DomainError from err, wrapping anything
// else as SERVICE_ERROR with the original message in context.
// Applying it to an already-domain error returns that error unchanged,
// which makes formatting idempotent.
func AsDomainError(err error) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	wrapped := NewDomainError(ErrServiceError, "%s", err.Error())
	return wrapped.WithContext("originalError", err.Error())
}

// FormatError renders a domain error as a tool result. Idempotent:
// the same error always renders to the same output.
func FormatError(err error) *ToolResult {
	de := AsDomainError(err)
	var b strings.Builder
	fmt.Fprintf(&b, "Error [%s]: %s", de.Code, de.Message)
	if len(de.ValidationErrors) > 0 {
		b.WriteString("\nValidation errors:")
		for _, v := range de.ValidationErrors {
			fmt.Fprintf(&b, "\n  - %s", v)
		}
	}
	if len(de.RelatedResources) > 0 {
		b.WriteString("\nAvailable alternatives:")
		for _, r := range de.RelatedResources {
			fmt.Fprintf(&b, "\n  - %s", r)
		}
	}
	if de.Suggestion != "" {
		fmt.Fprintf(&b, "\nSuggestion: %s", de.Suggestion)
	}
	return &ToolResult{
		Content: []ContentItem{{Type: "text", Text: b.String()}},
		IsError: true,
	}
}
