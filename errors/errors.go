// Package errors provides standardized error handling for the SRG resolver.
// It includes error classification, standard error variables, and helper
// functions for consistent error wrapping across the system.
package errors

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorInvalid represents errors due to invalid input or announcements
	ErrorInvalid ErrorClass = iota
	// ErrorEval represents expression or predicate evaluation errors that are
	// dropped at the match boundary
	ErrorEval
	// ErrorFatal represents integrity violations that indicate a bug
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorInvalid:
		return "invalid"
	case ErrorEval:
		return "eval"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Graph mutation errors
	ErrDuplicateNode = errors.New("node already present in graph")
	ErrDuplicateEdge = errors.New("edge already present in graph")
	ErrNodeNotFound  = errors.New("no such node in graph")
	ErrEdgeNotFound  = errors.New("no such edge in graph")

	// Attribute and expression evaluation errors
	ErrNotANumber       = errors.New("attribute is not a number")
	ErrUnknownFunction  = errors.New("unknown function")
	ErrBadArity         = errors.New("illegal number of arguments")
	ErrGlobalNotAllowed = errors.New("predicate function not allowed in global context")
	ErrLocalNotAllowed  = errors.New("function can only be used in global context")
	ErrObjectNotFound   = errors.New("no such object in matching")
	ErrSingularMatrix   = errors.New("singular matrix")

	// Repository errors
	ErrQueryNotFound        = errors.New("no such query")
	ErrAnnouncementNotFound = errors.New("no such announcement")
	ErrDuplicateID          = errors.New("duplicate id")

	// Parser errors
	ErrSyntax = errors.New("syntax error")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsEval checks if an error stems from expression or predicate evaluation.
// Such errors never abort a resolver tick: the offending match or attribute
// is dropped at the evaluation boundary.
func IsEval(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorEval
	}
	return errors.Is(err, ErrNotANumber) ||
		errors.Is(err, ErrObjectNotFound) ||
		errors.Is(err, ErrSingularMatrix) ||
		errors.Is(err, ErrGlobalNotAllowed) ||
		errors.Is(err, ErrLocalNotAllowed)
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}
	return errors.Is(err, ErrDuplicateNode) ||
		errors.Is(err, ErrDuplicateEdge) ||
		errors.Is(err, ErrNodeNotFound) ||
		errors.Is(err, ErrEdgeNotFound) ||
		errors.Is(err, ErrSyntax)
}

// IsFatal checks if an error indicates an integrity violation
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}
	return false
}

// newClassified creates a new classified error.
// This is an internal helper - use WrapInvalid(), WrapEval() or WrapFatal() instead.
func newClassified(class ErrorClass, err error, component, operation string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapInvalid wraps an error as invalid input with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorInvalid, Wrap(err, component, method, action), component, method)
}

// WrapEval wraps an error as an evaluation error with context
func WrapEval(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorEval, Wrap(err, component, method, action), component, method)
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorFatal, Wrap(err, component, method, action), component, method)
}
