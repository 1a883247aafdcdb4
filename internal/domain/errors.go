package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNoCredential = errors.New("no upstream credential for tenant")
	ErrNoLocation   = errors.New("no location for tenant")
	ErrLocked       = errors.New("sync already in progress")
)

// UpstreamError is a provider response that arrived but was not a success.
// Status and Body are what the error classifier inspects.
type UpstreamError struct {
	Status     int
	Body       string
	RetryAfter time.Duration // 0 when the provider gave no hint
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

// TransportError means no usable response was received (timeout, DNS, reset, open breaker).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport %s: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }
