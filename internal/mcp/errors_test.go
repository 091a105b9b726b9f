package mcp

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatErrorIsIdempotent(t *testing.T) {
	err := NewDomainError(ErrTicketNotFound, "ticket 7 not found").
		WithSuggestion("Use the list action")

	first := FormatError(err)
	second := FormatError(AsDomainError(err))
	assert.Equal(t, first, second)

	plain := errors.New("connection refused")
	assert.Equal(t, FormatError(plain), FormatError(AsDomainError(plain)))
}

func TestAsDomainErrorPassesThroughWrapped(t *testing.T) {
	inner := NewDomainError(ErrFileNotFound, "gone")
	wrapped := fmt.Errorf("while reading: %w", inner)
	assert.Same(t, inner, AsDomainError(wrapped))
}

func TestAsDomainErrorWrapsUnknownAsServiceError(t *testing.T) {
	de := AsDomainError(errors.New("disk full"))
	assert.Equal(t, ErrServiceError, de.Code)
	assert.Equal(t, "disk full", de.Message)
	assert.Equal(t, "disk full", de.Context["originalError"])
}

func TestMissingFieldErrorNamesFieldTypeAndExample(t *testing.T) {
	err := MissingFieldError("path", "string", `"src/index.ts"`)
	assert.Equal(t, ErrInvalidParams, err.Code)
	assert.Contains(t, err.Message, `"path"`)
	assert.Contains(t, err.Message, "string")
	assert.Contains(t, err.Message, "src/index.ts")
}

func TestWithAlternativesCapsAtFive(t *testing.T) {
	alts := []string{"a", "b", "c", "d", "e", "f", "g"}
	err := NewDomainError(ErrFileNotFound, "gone").WithAlternatives(alts)
	assert.Len(t, err.RelatedResources, 5)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, err.RelatedResources)
}

func TestUnknownActionListsValidActionsSorted(t *testing.T) {
	err := UnknownActionError("ticket_manager", "destroy", []string{"update", "create", "list"})
	assert.Equal(t, ErrUnknownAction, err.Code)
	assert.Contains(t, err.Message, `"destroy"`)
	assert.Equal(t, "Valid actions: create, list, update", err.Suggestion)
}

func TestFormatErrorRendersAllSections(t *testing.T) {
	err := NewDomainError(ErrValidationFailed, "bad input")
	err.ValidationErrors = []string{"title is required"}
	err = err.WithAlternatives([]string{"src/a.ts"}).WithSuggestion("fix the title")

	result := FormatError(err)
	require.True(t, result.IsError)
	require.Len(t, result.Content, 1)
	text := result.Content[0].Text
	assert.Contains(t, text, "Error [VALIDATION_FAILED]: bad input")
	assert.Contains(t, text, "Validation errors:")
	assert.Contains(t, text, "title is required")
	assert.Contains(t, text, "Available alternatives:")
	assert.Contains(t, text, "src/a.ts")
	assert.Contains(t, text, "Suggestion: fix the title")
}
