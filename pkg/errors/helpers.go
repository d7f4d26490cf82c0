// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"errors"
	"fmt"
)

// Wrap creates a new error that wraps the given error with additional context.
// If err is nil, returns nil.
//
// Usage:
//
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "doing something")
//	}
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf creates a new error that wraps the given error with formatted context.
// If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// New creates a new error with the given message.
// This is a convenience wrapper around errors.New from the standard library.
func New(message string) error {
	return errors.New(message)
}

// IsNotFound reports whether err's tree contains a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err's tree contains a ValidationError
// or a PathError. Both classify as rejected user input.
func IsValidation(err error) bool {
	var ve *ValidationError
	var pe *PathError
	return errors.As(err, &ve) || errors.As(err, &pe)
}

// IsTimeout reports whether err's tree contains a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsConflict reports whether err represents a state conflict: a trigger on
// a busy workspace or an operation a run's state does not accept.
func IsConflict(err error) bool {
	var rip *RunInProgressError
	var rse *RunStateError
	return errors.As(err, &rip) || errors.As(err, &rse)
}

// Classify returns a short category string for an error, used for metrics
// labels and the `error` event payload's phase-independent cause field.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return "validation"
	case IsNotFound(err):
		return "not_found"
	case IsConflict(err):
		return "conflict"
	case IsTimeout(err):
		return "timeout"
	default:
		var ce *CompilationError
		var de *DeadlockError
		var mpe *MissingParameterError
		var te *ToolError
		switch {
		case errors.As(err, &ce):
			return "compilation"
		case errors.As(err, &de):
			return "deadlock"
		case errors.As(err, &mpe):
			return "missing_parameter"
		case errors.As(err, &te):
			return "tool_failure"
		}
		return "internal"
	}
}
