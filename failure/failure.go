// Package failure holds the typed errors raised by the captcha core.
//
// Callers branch on Code rather than on message text, so that "read nothing"
// (an empty result with a nil error) stays distinguishable from "could not
// run" (a non-nil *Error).
package failure

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure.
type Code string

const (
	ResourceMissing      Code = "RESOURCE_MISSING"
	SegmentationEmpty    Code = "SEGMENTATION_EMPTY"
	RecognitionAmbiguous Code = "RECOGNITION_AMBIGUOUS"
	EngineUnavailable    Code = "ENGINE_UNAVAILABLE"
	EngineFailure        Code = "ENGINE_FAILURE"
	NoCandidateFound     Code = "NO_CANDIDATE_FOUND"
	TemplateSetEmpty     Code = "TEMPLATE_SET_EMPTY"
	ModelNotLoaded       Code = "MODEL_NOT_LOADED"
	EmptyDataset         Code = "EMPTY_DATASET"
	InsufficientData     Code = "INSUFFICIENT_DATA"
	InvalidArgument      Code = "INVALID_ARGUMENT"
	StageOrder           Code = "STAGE_ORDER"
)

// Error is a structured core failure.
type Error struct {
	Code     Code
	Message  string
	Resource string // path, engine name or stage involved, when there is one
	Cause    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Resource != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Resource)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (caused by: %v)", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether err, or anything it wraps, is an *Error with code.
func Is(err error, code Code) bool {
	for err != nil {
		var fe *Error
		if !errors.As(err, &fe) {
			return false
		}
		if fe.Code == code {
			return true
		}
		err = fe.Cause
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// New builds an *Error without a cause.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error around cause.
func Wrap(code Code, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func NewResourceMissing(kind, path string, cause error) *Error {
	return &Error{
		Code:     ResourceMissing,
		Message:  fmt.Sprintf("%s not found", kind),
		Resource: path,
		Cause:    cause,
	}
}

func NewModelNotLoaded() *Error {
	return &Error{Code: ModelNotLoaded, Message: "no trained model is loaded"}
}

func NewTemplateSetEmpty(dir string) *Error {
	return &Error{Code: TemplateSetEmpty, Message: "template set has no usable templates", Resource: dir}
}

func NewEngineUnavailable(engine string, cause error) *Error {
	return &Error{Code: EngineUnavailable, Message: "OCR engine is not available", Resource: engine, Cause: cause}
}

func NewEngineFailure(engine string, cause error) *Error {
	return &Error{Code: EngineFailure, Message: "OCR engine call failed", Resource: engine, Cause: cause}
}

func NewStageOrder(from, to string) *Error {
	return &Error{
		Code:     StageOrder,
		Message:  fmt.Sprintf("stage %s cannot follow %s", to, from),
		Resource: to,
	}
}
