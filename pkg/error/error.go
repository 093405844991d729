package error

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorCategory classifies errors by their nature and appropriate handling strategy.
type ErrorCategory int

const (
	// ErrCategoryUser represents misuse of the transaction API by the caller.
	// Examples: starting a second transaction on a thread, committing with none active.
	ErrCategoryUser ErrorCategory = iota

	// ErrCategoryConcurrency represents errors caused by other transactions.
	// Examples: being chosen as a deadlock victim.
	// The caller is expected to roll back and may retry the whole transaction.
	ErrCategoryConcurrency

	// ErrCategoryResource represents failures reported by a resource's own Apply.
	ErrCategoryResource

	// ErrCategoryCancelled represents a blocking wait interrupted by the caller's context.
	ErrCategoryCancelled

	// ErrCategorySystem represents configuration and construction errors.
	ErrCategorySystem
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryUser:
		return "user"
	case ErrCategoryConcurrency:
		return "concurrency"
	case ErrCategoryResource:
		return "resource"
	case ErrCategoryCancelled:
		return "cancelled"
	case ErrCategorySystem:
		return "system"
	default:
		return "unknown"
	}
}

// Error codes surfaced by the transaction manager.
const (
	CodeAlreadyActive        = "ALREADY_ACTIVE"
	CodeNoActiveTransaction  = "NO_ACTIVE_TRANSACTION"
	CodeUnknownResource      = "UNKNOWN_RESOURCE"
	CodeTransactionAborted   = "TRANSACTION_ABORTED"
	CodeResourceOperation    = "RESOURCE_OPERATION_FAILED"
	CodeCancelled            = "CANCELLED"
	CodeInvalidConfiguration = "INVALID_CONFIGURATION"
)

// Sentinels for errors.Is. Two TMErrors match when their codes are equal, so
// a freshly built error carrying Detail and Cause still matches its sentinel.
var (
	ErrAlreadyActive       = New(ErrCategoryUser, CodeAlreadyActive, "another transaction is active on this thread")
	ErrNoActiveTransaction = New(ErrCategoryUser, CodeNoActiveTransaction, "no active transaction on this thread")
	ErrUnknownResource     = New(ErrCategoryUser, CodeUnknownResource, "unknown resource")
	ErrTransactionAborted  = New(ErrCategoryConcurrency, CodeTransactionAborted, "transaction was aborted")
	ErrResourceOperation   = New(ErrCategoryResource, CodeResourceOperation, "resource rejected the operation")
	ErrCancelled           = New(ErrCategoryCancelled, CodeCancelled, "wait was cancelled")
	ErrConfig              = New(ErrCategorySystem, CodeInvalidConfiguration, "invalid configuration")
)

// TMError represents a structured transaction manager error with context information.
type TMError struct {
	// Code is a unique identifier for this error type (e.g., "TRANSACTION_ABORTED").
	Code string

	// Category classifies the error for appropriate handling strategy.
	Category ErrorCategory

	// Message is a human-readable description of what went wrong.
	Message string

	// Detail provides additional context about the specific error instance.
	Detail string

	// Hint suggests how the caller might recover.
	Hint string

	// Operation identifies the API verb being performed ("Start", "Operate", ...).
	Operation string

	// Component identifies where the error originated ("TransactionManager", "Registry", ...).
	Component string

	// Cause is the underlying error, if any.
	Cause error

	// Stack contains the call stack where this error was created.
	Stack []uintptr
}

// New creates a new TMError with the specified code, category, and message.
func New(category ErrorCategory, code, message string) *TMError {
	return &TMError{
		Code:     code,
		Category: category,
		Message:  message,
		Stack:    captureStack(),
	}
}

// Derive builds a fresh error with the same code, category and message as
// base, tagged with the given operation and component.
func Derive(base *TMError, operation, component string) *TMError {
	return &TMError{
		Code:      base.Code,
		Category:  base.Category,
		Message:   base.Message,
		Hint:      base.Hint,
		Operation: operation,
		Component: component,
		Stack:     captureStack(),
	}
}

// Wrap wraps an existing error with transaction manager context information.
// If the error is already a TMError, it enriches the existing error with
// operation and component context (only if not already set).
func Wrap(err error, code, operation, component string) *TMError {
	if err == nil {
		return nil
	}

	if tmErr, ok := err.(*TMError); ok {
		if tmErr.Operation == "" {
			tmErr.Operation = operation
		}
		if tmErr.Component == "" {
			tmErr.Component = component
		}
		return tmErr
	}

	return &TMError{
		Code:      code,
		Category:  ErrCategorySystem,
		Message:   err.Error(),
		Operation: operation,
		Component: component,
		Cause:     err,
		Stack:     captureStack(),
	}
}

// WithDetail sets Detail and returns the receiver for chaining.
func (e *TMError) WithDetail(format string, args ...any) *TMError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithHint sets Hint and returns the receiver for chaining.
func (e *TMError) WithHint(hint string) *TMError {
	e.Hint = hint
	return e
}

// WithCause sets Cause and returns the receiver for chaining.
func (e *TMError) WithCause(cause error) *TMError {
	e.Cause = cause
	return e
}

// captureStack skips runtime.Callers, captureStack and the constructor.
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

// Error implements the standard Go error interface
//
// The format follows the pattern:
// [ERROR_CODE] Message: Detail (operation: Operation, component: Component) caused by: underlying error
func (e *TMError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Detail != "" {
		b.WriteString(fmt.Sprintf(": %s", e.Detail))
	}

	if e.Operation != "" {
		b.WriteString(fmt.Sprintf(" (operation: %s", e.Operation))
		if e.Component != "" {
			b.WriteString(fmt.Sprintf(", component: %s", e.Component))
		}
		b.WriteString(")")
	}

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(" caused by: %v", e.Cause))
	}

	return b.String()
}

// Unwrap returns the underlying cause error, enabling error chain traversal
// with Go's standard error handling functions like errors.Is and errors.As.
func (e *TMError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a TMError with the same code.
func (e *TMError) Is(target error) bool {
	t, ok := target.(*TMError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// FormatStack returns a human-readable stack trace for debugging purposes.
func (e *TMError) FormatStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(e.Stack)

	b.WriteString("Stack trace:\n")
	for {
		f, more := frames.Next()
		b.WriteString(fmt.Sprintf("  %s\n    %s:%d\n",
			f.Function, f.File, f.Line))
		if !more {
			break
		}
	}

	return b.String()
}

// CodeOf returns the TMError code found in err's chain, or "" if there is none.
func CodeOf(err error) string {
	var tmErr *TMError
	if errors.As(err, &tmErr) {
		return tmErr.Code
	}
	return ""
}
