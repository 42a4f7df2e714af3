package testutil

import (
	"errors"
	"fmt"
	"net/http"
	"syscall"

	commonhttp "event-enricher/internal/common/http"
)

// Common test errors
var (
	ErrTestFailure = errors.New("test failure")
)

// UpstreamStatus builds the error the fetcher returns for an HTTP status
func UpstreamStatus(code int) error {
	return &commonhttp.UpstreamError{
		Method:     http.MethodGet,
		URL:        "http://upstream.test",
		StatusCode: code,
		Cause:      fmt.Errorf("unexpected status %d", code),
	}
}

// ConnectionRefused builds the error the fetcher returns when the host refuses the connection
func ConnectionRefused() error {
	return &commonhttp.UpstreamError{
		Method: http.MethodGet,
		URL:    "http://upstream.test",
		Cause:  fmt.Errorf("dial tcp 127.0.0.1:1: %w", syscall.ECONNREFUSED),
	}
}

// NetworkFailure builds an upstream error without a response
func NetworkFailure() error {
	return &commonhttp.UpstreamError{
		Method: http.MethodGet,
		URL:    "http://upstream.test",
		Cause:  errors.New("i/o timeout"),
	}
}
