package gateway

import (
	"context"
	"errors"

	"github.com/user/ragchat/pkg/rag"
)

// Retryable reports whether resubmitting the same request could succeed
// without the user changing anything. The gateway never retries on its own.
// Network failures and 5xx responses are retryable; credential and contract
// failures are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch rag.KindOf(err) {
	case rag.KindNetworkError, rag.KindServiceUnavailable:
		return true
	case rag.KindRequestFailed, rag.KindIngestFailed:
		return rag.StatusOf(err) >= 500
	default:
		return false
	}
}

// Hint returns a short suggestion shown next to a failed request.
func Hint(err error) string {
	switch rag.KindOf(err) {
	case rag.KindMissingCredential:
		return "set an API key first"
	case rag.KindUnauthorized:
		return "check the API key"
	case rag.KindResponseInvalid:
		return "the backend answered in an unexpected format"
	}
	if Retryable(err) {
		return "try again"
	}
	return ""
}
