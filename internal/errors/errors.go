// Package errors defines the error taxonomy of the generator.
//
// Every failure that aborts a run carries a Code so the command layer can
// decide on the exit status and callers can test for a category with Is:
//
//	if errors.Is(err, errors.CodeUnknownPackage) {
//	    // report the offending name
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error category.
type Code string

const (
	CodeUsage              Code = "USAGE"
	CodeUnknownPackage     Code = "UNKNOWN_PACKAGE"
	CodeUnknownRepository  Code = "UNKNOWN_REPOSITORY"
	CodeInvalidSelection   Code = "INVALID_SELECTION_COMBINATION"
	CodeDuplicateLocalName Code = "DUPLICATE_LOCAL_NAME"
	CodeSourceUnavailable  Code = "SOURCE_UNAVAILABLE"
	CodeEmptySelection     Code = "EMPTY_SELECTION"
	CodeIndexUnavailable   Code = "INDEX_UNAVAILABLE"
	CodeInvalidIndex       Code = "INVALID_INDEX"
	CodeDiscoveryFailed    Code = "DISCOVERY_FAILED"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// Error is a categorized error. Subject names the package, repository or
// path the error is about, when there is one.
type Error struct {
	Code    Code
	Subject string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Subject != "" {
		msg = fmt.Sprintf("%s: %s", e.Subject, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// About creates an Error concerning a named subject.
func About(code Code, subject, format string, args ...any) *Error {
	return &Error{Code: code, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error wrapping cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether any error in err's chain is an *Error with the given code.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode returns the code of the first *Error in err's chain, or "" if
// there is none.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// SubjectOf returns the subject of the first *Error in err's chain.
func SubjectOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Subject
	}
	return ""
}

// UnknownPackage reports a package name absent from the distribution.
func UnknownPackage(name, role string) *Error {
	if role == "" {
		return About(CodeUnknownPackage, name, "unknown package")
	}
	return About(CodeUnknownPackage, name, "unknown %s package", role)
}

// UnknownRepository reports a repository name absent from the distribution.
func UnknownRepository(name string) *Error {
	return About(CodeUnknownRepository, name, "unknown repository")
}

// Usage reports an invalid command line.
func Usage(format string, args ...any) *Error {
	return New(CodeUsage, format, args...)
}
