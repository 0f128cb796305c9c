package models

import "fmt"

// ResourceNotFoundError reports a missing label or model resource.
type ResourceNotFoundError struct {
	Name  string
	Cause error
}

func (e *ResourceNotFoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("resource %q not found: %v", e.Name, e.Cause)
	}
	return fmt.Sprintf("resource %q not found", e.Name)
}

func (e *ResourceNotFoundError) Unwrap() error { return e.Cause }

// ModelLoadError reports a model blob the backend could not load.
type ModelLoadError struct {
	Backend string
	Message string
	Cause   error
}

func (e *ModelLoadError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "failed to load model"
	}
	if e.Backend != "" {
		msg = e.Backend + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ModelLoadError) Unwrap() error { return e.Cause }

// InferenceError aborts a single classification. The engine stays usable.
type InferenceError struct {
	Message string
	Cause   error
}

func (e *InferenceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InferenceError) Unwrap() error { return e.Cause }
