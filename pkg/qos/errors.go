// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package qos

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAddress is returned by the builder address setters when given
// an absent or malformed hardware address.
var ErrInvalidAddress = errors.New("address must be a 6-byte MAC")

// ErrMalformedPolicy is wrapped by every decode failure. It is distinct
// from validation failures: a payload can decode cleanly and still describe
// an invalid policy.
var ErrMalformedPolicy = errors.New("malformed policy encoding")

// Violation describes a single validation rule broken by a policy field.
type Violation struct {
	Field  string
	Value  interface{}
	Reason string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s=%v: %s", v.Field, v.Value, v.Reason)
}

// ValidationError reports every rule a policy violates, not just the first,
// so a caller can fix all fields in one pass.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) add(field string, value interface{}, reason string) {
	e.Violations = append(e.Violations, Violation{Field: field, Value: value, Reason: reason})
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "invalid policy: " + strings.Join(parts, "; ")
}
