package provider

import (
	"errors"
	"fmt"
)

// ErrorKind tags a failed provider operation. The taxonomy drives how the
// UI reacts: invalid credentials are shown inline, network failures get a
// retry affordance, anything else is a generic provider failure.
type ErrorKind string

const (
	// KindInvalidCredentials means the provider rejected the credentials
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	// KindNetwork means the provider could not be reached
	KindNetwork ErrorKind = "network"
	// KindProvider means the provider reported any other failure
	KindProvider ErrorKind = "provider"
)

// Error is the tagged failure returned by every provider operation.
type Error struct {
	Kind    ErrorKind
	Message string
	// Status is the HTTP status the provider answered with, 0 for
	// transport-level failures.
	Status int
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider: %s: %s", e.Kind, e.Message)
}

// KindOf extracts the error kind from an error chain. Failures that did not
// originate at the provider boundary report KindProvider.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindProvider
}

func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Message: err.Error()}
}
