package rag

import (
	"errors"
	"fmt"
)

// Kind classifies a request failure.
type Kind string

const (
	KindMissingCredential  Kind = "missing_credential"
	KindPayloadInvalid     Kind = "payload_invalid"
	KindResponseInvalid    Kind = "response_invalid"
	KindUnauthorized       Kind = "unauthorized"
	KindServiceUnavailable Kind = "service_unavailable"
	KindRequestFailed      Kind = "request_failed"
	KindIngestFailed       Kind = "ingest_failed"
	KindNetworkError       Kind = "network_error"
	KindStorageCorrupt     Kind = "storage_corrupt"
)

const (
	MessageMissingCredential  = "API Key is required"
	MessageUnauthorized       = "Unauthorized: Invalid API Key"
	MessageServiceUnavailable = "Service Unavailable: The RAG system is busy or down."
	MessageIngestFailed       = "Ingestion failed"
)

// Error wraps an underlying failure with its kind, the HTTP status that
// produced it (0 when no response was received) and a user-facing message.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

// Sentinels for errors.Is. Matching is by Kind only.
var (
	ErrMissingCredential  = &Error{Kind: KindMissingCredential, Message: MessageMissingCredential}
	ErrPayloadInvalid     = &Error{Kind: KindPayloadInvalid}
	ErrResponseInvalid    = &Error{Kind: KindResponseInvalid}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: MessageUnauthorized}
	ErrServiceUnavailable = &Error{Kind: KindServiceUnavailable, Message: MessageServiceUnavailable}
	ErrRequestFailed      = &Error{Kind: KindRequestFailed}
	ErrIngestFailed       = &Error{Kind: KindIngestFailed, Message: MessageIngestFailed}
	ErrNetwork            = &Error{Kind: KindNetworkError}
	ErrStorageCorrupt     = &Error{Kind: KindStorageCorrupt}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

func newError(kind Kind, status int, message string, err error) *Error {
	return &Error{Kind: kind, Status: status, Message: message, Err: err}
}
