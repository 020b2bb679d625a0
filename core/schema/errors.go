package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the engine's error taxonomy. Typed errors below wrap
// these so callers can branch with errors.Is without losing context.
var (
	// ErrNotFound indicates a schema document (or record) is absent.
	ErrNotFound = errors.New("schema not found")
	// ErrInvalidSchema indicates a structural violation found at validation
	// time. It is fatal and never silently patched.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrMissingRelationship indicates a detail names a relation with no
	// matching relationship declaration. Fatal for that relation request only.
	ErrMissingRelationship = errors.New("missing relationship configuration")
)

// NotFoundError reports that no schema document exists for a model.
type NotFoundError struct {
	Model     string
	Namespace string
}

func (e *NotFoundError) Error() string {
	if e.Namespace != "" {
		return fmt.Sprintf("schema not found for model %q in namespace %q", e.Model, e.Namespace)
	}
	return fmt.Sprintf("schema not found for model %q", e.Model)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Issue describes a single structural problem found during validation.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// InvalidSchemaError reports one or more structural violations in a schema
// document. It carries the model name and every offending key so the defect
// can be diagnosed without inspecting engine internals.
type InvalidSchemaError struct {
	Model  string
	Issues []Issue
}

func (e *InvalidSchemaError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		if issue.Path != "" {
			msgs = append(msgs, fmt.Sprintf("%s (%s)", issue.Message, issue.Path))
		} else {
			msgs = append(msgs, issue.Message)
		}
	}
	return fmt.Sprintf("invalid schema for model %q: %s", e.Model, strings.Join(msgs, "; "))
}

func (e *InvalidSchemaError) Unwrap() error { return ErrInvalidSchema }

// MissingRelationshipError reports that a requested relation has no usable
// relationship declaration. The resolver fails with this instead of falling
// back to a guessed column name.
type MissingRelationshipError struct {
	Model    string
	Relation string
	Reason   string
}

func (e *MissingRelationshipError) Error() string {
	msg := fmt.Sprintf("model %q has no relationship configuration for relation %q", e.Model, e.Relation)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *MissingRelationshipError) Unwrap() error { return ErrMissingRelationship }
