package models

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnsupportedType = errors.New("unsupported type")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrEmptyInput      = errors.New("file is empty")
	ErrNoInputs        = errors.New("no inputs submitted")
	ErrRunNotFound     = errors.New("run not found")
)

// ErrorKind classifies a pipeline failure by its scope.
type ErrorKind string

const (
	ErrorKindRejectedInput      ErrorKind = "RejectedInput"
	ErrorKindDecodeFailure      ErrorKind = "DecodeFailure"
	ErrorKindRecognitionFailure ErrorKind = "RecognitionFailure"
	ErrorKindCanceled           ErrorKind = "Canceled"
)

// ErrorInfo is the recorded form of a failure.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e ErrorInfo) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// DecodeError wraps a failure to parse or render a document or one of its pages.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode failure: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// RecognitionError wraps a failure of the OCR engine on one page.
type RecognitionError struct {
	Engine string
	Err    error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("%s recognition failure: %v", e.Engine, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// InfoFromError converts err to an ErrorInfo, classifying it by the wrapper type
// it carries. Unclassified errors fall back to the given kind.
func InfoFromError(err error, fallback ErrorKind) ErrorInfo {
	var decodeErr *DecodeError
	var recErr *RecognitionError
	switch {
	case errors.As(err, &decodeErr):
		return ErrorInfo{Kind: ErrorKindDecodeFailure, Message: decodeErr.Err.Error()}
	case errors.As(err, &recErr):
		return ErrorInfo{Kind: ErrorKindRecognitionFailure, Message: recErr.Err.Error()}
	case errors.Is(err, context.Canceled):
		return ErrorInfo{Kind: ErrorKindCanceled, Message: err.Error()}
	}
	return ErrorInfo{Kind: fallback, Message: err.Error()}
}
