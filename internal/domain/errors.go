package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMediaNotFound = errors.New("media item not found")
	ErrDuplicateKey  = errors.New("duplicate key")
)

// Kind categorizes an Error for retry allow-listing and boundary translation.
type Kind string

const (
	KindStorage       Kind = "StorageError"
	KindConfiguration Kind = "ConfigurationError"
	KindProcessing    Kind = "ProcessingError"
	KindAPI           Kind = "ApiError"
)

// Error is the shared shape for all catalog error kinds. StatusCode is only
// meaningful for KindAPI.
type Error struct {
	Kind       Kind
	Message    string
	Details    map[string]interface{}
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail attaches structured context to the error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func NewStorageError(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

func NewConfigurationError(message string, err error) *Error {
	return &Error{Kind: KindConfiguration, Message: message, Err: err}
}

func NewProcessingError(message string, err error) *Error {
	return &Error{Kind: KindProcessing, Message: message, Err: err}
}

func NewAPIError(message string, statusCode int) *Error {
	return &Error{Kind: KindAPI, Message: message, StatusCode: statusCode}
}

// KindOf reports the kind of err, or the empty string when err does not carry
// one anywhere in its chain.
func KindOf(err error) Kind {
	var portalErr *Error
	if errors.As(err, &portalErr) {
		return portalErr.Kind
	}
	return ""
}
