package errors

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeNotFound               ErrorCode = "NOT_FOUND"
	CodeParseError             ErrorCode = "PARSE_ERROR"
	CodeAmbiguousConfiguration ErrorCode = "AMBIGUOUS_CONFIGURATION"
	CodeConfiguration          ErrorCode = "CONFIG_ERROR"
	CodeIO                     ErrorCode = "IO_ERROR"
	CodeValidationError        ErrorCode = "VALIDATION_ERROR"
	CodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// DomainError is the error type returned across package boundaries. Context
// carries structured fields (path, line, symbol) for logging and callers that
// need the location of a failure.
type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

const (
	CtxPath      = "path"
	CtxLine      = "line"
	CtxOperation = "operation"
	CtxSymbol    = "symbol"
)

func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		msg += fmt.Sprintf(" %v", e.Context)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// NewParseError reports a file whose top-level construct could not be
// established. line is 1-based; zero means unknown.
func NewParseError(path string, line int, reason string) error {
	de := &DomainError{Code: CodeParseError, Message: reason}
	de.WithContext(CtxPath, path)
	if line > 0 {
		de.WithContext(CtxLine, line)
	}
	return de
}

// NotFound builds the absence result for a qualified name.
func NotFound(symbol string) error {
	return (&DomainError{Code: CodeNotFound, Message: "no candidate for name"}).WithContext(CtxSymbol, symbol)
}

// AddContext attaches a context field, wrapping foreign errors as internal.
func AddContext(err error, key string, value interface{}) error {
	var de *DomainError
	if errors.As(err, &de) {
		de.WithContext(key, value)
		return de
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]interface{}{key: value},
	}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// ParseLocation returns the path and line recorded on a parse error.
func ParseLocation(err error) (path string, line int, ok bool) {
	var de *DomainError
	if !errors.As(err, &de) || de.Code != CodeParseError {
		return "", 0, false
	}
	path, _ = de.Context[CtxPath].(string)
	line, _ = de.Context[CtxLine].(int)
	return path, line, true
}
