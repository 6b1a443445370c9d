// Package domain defines the core business entities and errors.
package domain

import (
	"fmt"
	"strings"
)

// BusinessLogicError is a domain-level failure with a machine-readable
// code and a templated message. Placeholders of the form {key} in the
// message template are expanded from the error context.
//
// No current Story flow raises one, but the type is part of the general
// domain contract and is surfaced by callers as a conflict-class failure.
type BusinessLogicError struct {
	// Code is the machine-readable error code.
	Code int
	// Template is the human-readable message template, e.g.
	// "story {id} is disabled".
	Template string
	// Context holds the values substituted into the template.
	Context map[string]any
}

// Error implements the error interface for BusinessLogicError.
func (e *BusinessLogicError) Error() string {
	return e.Message()
}

// Message renders the template with the error context applied.
func (e *BusinessLogicError) Message() string {
	msg := e.Template
	for key, value := range e.Context {
		msg = strings.ReplaceAll(msg, "{"+key+"}", fmt.Sprint(value))
	}
	return msg
}

// NewBusinessLogicError creates a BusinessLogicError with the given code,
// message template and context values.
func NewBusinessLogicError(code int, template string, context map[string]any) *BusinessLogicError {
	return &BusinessLogicError{
		Code:     code,
		Template: template,
		Context:  context,
	}
}
