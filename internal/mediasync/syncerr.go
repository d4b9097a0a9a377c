package mediasync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrorKind classifies a per-key sync failure so the orchestrator can apply
// its decision table: Transient holds the watermark for a retry next cycle,
// NotFound is a normal no-data outcome and lets it advance, Internal is
// anything unexpected.
type ErrorKind string

const (
	ErrorKindTransient ErrorKind = "transient"
	ErrorKindNotFound  ErrorKind = "not_found"
	ErrorKindInternal  ErrorKind = "internal"
)

// SyncError is the failure of one (activation, source type, key) pipeline
// run. Nothing inside the pipeline escapes the per-key boundary except
// wrapped in one of these.
type SyncError struct {
	Kind         ErrorKind
	ActivationID string
	SourceType   SourceType
	SourceKey    string
	Err          error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s/%s/%s: %s: %s", e.ActivationID, e.SourceType, e.SourceKey, e.Kind, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Classify buckets a provider or pipeline error into an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindInternal
	}

	provErr := &ProviderError{}
	if errors.As(err, &provErr) {
		switch {
		case provErr.StatusCode == 400 || provErr.StatusCode == 404:
			return ErrorKindNotFound
		case provErr.StatusCode == 408 || provErr.StatusCode == 429 || provErr.StatusCode >= 500:
			return ErrorKindTransient
		}
		return ErrorKindInternal
	}

	if errors.Is(err, ErrNotFound) {
		return ErrorKindNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) {
		return ErrorKindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorKindTransient
	}

	return ErrorKindInternal
}
