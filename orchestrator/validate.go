// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Input message field limits, measured in characters.
const (
	MaxMessageLength   = 5000
	MaxSenderLength    = 200
	MaxProjectIDLength = 100
	MaxMessageIDLength = 128
)

// FieldError describes one invalid field in a request body.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrorResponse is the HTTP 422 envelope returned for
// malformed process requests.
type ValidationErrorResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details"`
}

// ValidateInputMessage checks msg against the field limits and returns
// one FieldError per violation. A nil return means the message is
// acceptable.
func ValidateInputMessage(msg InputMessage) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(msg.Message) == "" {
		errs = append(errs, FieldError{Field: "message", Message: "is required"})
	} else if utf8.RuneCountInString(msg.Message) > MaxMessageLength {
		errs = append(errs, FieldError{
			Field:   "message",
			Message: fmt.Sprintf("must be at most %d characters", MaxMessageLength),
		})
	}

	if strings.TrimSpace(msg.Sender) == "" {
		errs = append(errs, FieldError{Field: "sender", Message: "is required"})
	} else if utf8.RuneCountInString(msg.Sender) > MaxSenderLength {
		errs = append(errs, FieldError{
			Field:   "sender",
			Message: fmt.Sprintf("must be at most %d characters", MaxSenderLength),
		})
	}

	if strings.TrimSpace(msg.ProjectID) == "" {
		errs = append(errs, FieldError{Field: "project_id", Message: "is required"})
	} else if utf8.RuneCountInString(msg.ProjectID) > MaxProjectIDLength {
		errs = append(errs, FieldError{
			Field:   "project_id",
			Message: fmt.Sprintf("must be at most %d characters", MaxProjectIDLength),
		})
	}

	if utf8.RuneCountInString(msg.MessageID) > MaxMessageIDLength {
		errs = append(errs, FieldError{
			Field:   "message_id",
			Message: fmt.Sprintf("must be at most %d characters", MaxMessageIDLength),
		})
	}

	return errs
}
