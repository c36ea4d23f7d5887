package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrorKind classifies remote store failures so the save pipeline can pick
// a recovery path: network failures degrade to the offline queue, remote
// rejections are retried with backoff.
type ErrorKind string

const (
	// KindNetwork covers connection-level failures: refused connections,
	// DNS errors, timeouts. The remote store never saw the write.
	KindNetwork ErrorKind = "network"
	// KindRemote covers failures reported by the remote store itself.
	KindRemote ErrorKind = "remote"
)

// StoreError is the structured failure returned by the remote store client.
// Message carries the human-readable text surfaced to the user on exhausted
// retries.
type StoreError struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *StoreError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.cause != nil {
		return e.cause.Error()
	}
	return string(e.Kind)
}

func (e *StoreError) Unwrap() error {
	return e.cause
}

func newNetworkError(cause error) *StoreError {
	return &StoreError{Kind: KindNetwork, Message: fmt.Sprintf("network failure: %v", cause), cause: cause}
}

func newRemoteError(message string, cause error) *StoreError {
	return &StoreError{Kind: KindRemote, Message: message, cause: cause}
}

// IsNetworkError reports whether err represents a connection-level failure
// rather than a remote rejection.
func IsNetworkError(err error) bool {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Kind == KindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
