// Package errors provides structured error types for bimcollab.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for bimcollab.
const (
	// Initialization errors
	CodeNotInitialized Code = "NOT_INITIALIZED"

	// Archive errors
	CodeMalformedArchive       Code = "MALFORMED_ARCHIVE"
	CodeMalformedMarkup        Code = "MALFORMED_MARKUP"
	CodeMalformedVisualization Code = "MALFORMED_VISUALIZATION"
	CodeUnresolvedReference    Code = "UNRESOLVED_REFERENCE"
	CodeEncoding               Code = "ENCODING_ERROR"

	// Record errors
	CodeIssueNotFound Code = "ISSUE_NOT_FOUND"
	CodeGroupNotFound Code = "GROUP_NOT_FOUND"

	// Config errors
	CodeConfigInvalid Code = "CONFIG_INVALID"
	CodeConfigMissing Code = "CONFIG_MISSING"
)

// Category groups error codes for HTTP status mapping.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNotFound
	CategoryBadRequest
	CategoryUnprocessable
	CategoryInternal
)

// codeCategories maps error codes to their categories.
var codeCategories = map[Code]Category{
	CodeNotInitialized:         CategoryBadRequest,
	CodeMalformedArchive:       CategoryBadRequest,
	CodeMalformedMarkup:        CategoryUnprocessable,
	CodeMalformedVisualization: CategoryUnprocessable,
	CodeUnresolvedReference:    CategoryUnprocessable,
	CodeEncoding:               CategoryInternal,
	CodeIssueNotFound:          CategoryNotFound,
	CodeGroupNotFound:          CategoryNotFound,
	CodeConfigInvalid:          CategoryBadRequest,
	CodeConfigMissing:          CategoryBadRequest,
}

// HTTPStatus returns the HTTP status code for a category.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryNotFound:
		return 404
	case CategoryBadRequest:
		return 400
	case CategoryUnprocessable:
		return 422
	default:
		return 500
	}
}

// BcfError is the structured error type for bimcollab.
type BcfError struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Fix   string `json:"fix,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *BcfError) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *BcfError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly message for CLI output.
func (e *BcfError) UserMessage() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n\nWhy: ")
		b.WriteString(e.Why)
	}
	if e.Fix != "" {
		b.WriteString("\n\nFix: ")
		b.WriteString(e.Fix)
	}
	return b.String()
}

// Category returns the error category for HTTP status mapping.
func (e *BcfError) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *BcfError) HTTPStatus() int {
	return e.Category().HTTPStatus()
}

// MarshalJSON implements json.Marshaler.
func (e *BcfError) MarshalJSON() ([]byte, error) {
	type alias BcfError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is a BcfError with the same code.
func (e *BcfError) Is(target error) bool {
	t, ok := target.(*BcfError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *BcfError) WithCause(err error) *BcfError {
	return &BcfError{
		Code:  e.Code,
		What:  e.What,
		Why:   e.Why,
		Fix:   e.Fix,
		Cause: err,
	}
}

// --- Error constructors ---

// ErrNotInitialized returns an error for a project without an issue store.
func ErrNotInitialized() *BcfError {
	return &BcfError{
		Code: CodeNotInitialized,
		What: "bcf is not initialized in this directory",
		Why:  "No issue store found under .bcf/",
		Fix:  "Run 'bcf init' in the project directory",
	}
}

// ErrMalformedArchive returns an error for a ZIP container that cannot be read.
func ErrMalformedArchive(source string, cause error) *BcfError {
	return &BcfError{
		Code:  CodeMalformedArchive,
		What:  fmt.Sprintf("cannot read archive %s", source),
		Why:   "The ZIP container is corrupt, truncated, or not a ZIP file",
		Fix:   "Re-export the archive from the authoring tool and try again",
		Cause: cause,
	}
}

// ErrMalformedMarkup returns an error for a topic folder whose markup.bcf cannot be parsed.
func ErrMalformedMarkup(folder string, cause error) *BcfError {
	return &BcfError{
		Code:  CodeMalformedMarkup,
		What:  fmt.Sprintf("topic %s has an unreadable markup", folder),
		Why:   "markup.bcf is missing, is not well-formed XML, or lacks a required field",
		Cause: cause,
	}
}

// ErrMalformedVisualization returns an error for an unparseable viewpoint file.
func ErrMalformedVisualization(path string, cause error) *BcfError {
	return &BcfError{
		Code:  CodeMalformedVisualization,
		What:  fmt.Sprintf("viewpoint %s is unreadable", path),
		Why:   "The visualization file is not well-formed XML",
		Cause: cause,
	}
}

// ErrUnresolvedReference returns a diagnostic for an object id with no model mapping.
func ErrUnresolvedReference(ifcGUID string) *BcfError {
	return &BcfError{
		Code: CodeUnresolvedReference,
		What: fmt.Sprintf("component %s does not belong to any sub-model", ifcGUID),
		Why:  "The IFC GUID is missing from the federation's id index",
		Fix:  "Reload the index with 'bcf index load' if the model was revised",
	}
}

// ErrEncoding returns an error for an issue that cannot be encoded into BCF XML.
func ErrEncoding(id string, cause error) *BcfError {
	return &BcfError{
		Code:  CodeEncoding,
		What:  fmt.Sprintf("issue %s cannot be encoded", id),
		Why:   "A field contains a value that is not representable in XML",
		Cause: cause,
	}
}

// ErrIssueNotFound returns an error when an issue doesn't exist.
func ErrIssueNotFound(id string) *BcfError {
	return &BcfError{
		Code: CodeIssueNotFound,
		What: fmt.Sprintf("issue %s not found", id),
		Why:  "No issue with this ID exists for the current model",
		Fix:  "Run 'bcf issues list' to list available issues",
	}
}

// ErrGroupNotFound returns an error when a group doesn't exist.
func ErrGroupNotFound(id string) *BcfError {
	return &BcfError{
		Code: CodeGroupNotFound,
		What: fmt.Sprintf("group %s not found", id),
		Why:  "The viewpoint references a group that is not stored for this model",
	}
}

// ErrConfigInvalid returns an error for invalid configuration.
func ErrConfigInvalid(field, reason string) *BcfError {
	return &BcfError{
		Code: CodeConfigInvalid,
		What: fmt.Sprintf("invalid configuration: %s", field),
		Why:  reason,
		Fix:  "Check .bcf/config.yaml and fix the invalid field",
	}
}

// ErrConfigMissing returns an error for missing configuration.
func ErrConfigMissing(field string) *BcfError {
	return &BcfError{
		Code: CodeConfigMissing,
		What: fmt.Sprintf("missing required configuration: %s", field),
		Why:  "This field is required but not set in configuration",
		Fix:  fmt.Sprintf("Add '%s' to .bcf/config.yaml", field),
	}
}

// AsBcfError attempts to convert an error to a BcfError.
// Returns nil if the error is not a BcfError.
func AsBcfError(err error) *BcfError {
	var bcfErr *BcfError
	if As(err, &bcfErr) {
		return bcfErr
	}
	return nil
}

// As is a convenience wrapper for errors.As.
func As(err error, target any) bool {
	return asError(err, target)
}

// asError implements errors.As behavior.
func asError(err error, target any) bool {
	if err == nil {
		return false
	}
	if bcfErr, ok := err.(*BcfError); ok {
		if t, ok := target.(**BcfError); ok {
			*t = bcfErr
			return true
		}
	}
	if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
		return asError(unwrapper.Unwrap(), target)
	}
	return false
}

// HasCode reports whether err is, or wraps, a BcfError with the given code.
func HasCode(err error, code Code) bool {
	if e := AsBcfError(err); e != nil {
		return e.Code == code
	}
	return false
}

// Wrap wraps a generic error into a BcfError with unknown code.
func Wrap(err error, what string) *BcfError {
	return &BcfError{
		Code:  Code("UNKNOWN"),
		What:  what,
		Cause: err,
	}
}
