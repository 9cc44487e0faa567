// Package apiclient holds the pieces shared by the external plant API clients:
// the error taxonomy, HTTP status mapping and multipart image upload encoding.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	ErrNotConfigured    = errors.New("api key not configured")
	ErrUnauthorized     = errors.New("api key invalid or expired")
	ErrQuotaExceeded    = errors.New("request quota exceeded")
	ErrRateLimited      = errors.New("rate limited")
	ErrEndpointNotFound = errors.New("endpoint not found")
	ErrNetwork          = errors.New("network failure")
	ErrNoResults        = errors.New("no results")
	ErrBadResponse      = errors.New("unexpected response")
)

// APIError is returned by provider clients for every failed call.
type APIError struct {
	Provider string
	Status   int
	Kind     error
	Message  string
	Err      error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(": ")
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("request failed")
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is matches the error against its taxonomy kind.
func (e *APIError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// StatusMap maps HTTP statuses to taxonomy kinds for one provider.
type StatusMap map[int]error

// FromStatus builds an APIError for a non-2xx response.
func FromStatus(provider string, status int, mapping StatusMap, body string) *APIError {
	kind, ok := mapping[status]
	if !ok {
		kind = ErrBadResponse
	}
	return &APIError{
		Provider: provider,
		Status:   status,
		Kind:     kind,
		Message:  truncate(strings.TrimSpace(body), 200),
	}
}

// FromTransport wraps an error returned by http.Client.Do.
func FromTransport(provider string, err error) *APIError {
	msg := ""
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		msg = "request timeout"
	}
	return &APIError{Provider: provider, Kind: ErrNetwork, Message: msg, Err: err}
}

// UserMessage returns a short description suitable for end users.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConfigured):
		return "API key is not configured"
	case errors.Is(err, ErrUnauthorized):
		return "API key is invalid or expired"
	case errors.Is(err, ErrQuotaExceeded):
		return "request quota exceeded; try again tomorrow"
	case errors.Is(err, ErrRateLimited):
		return "too many requests; try again later"
	case errors.Is(err, ErrNoResults):
		return "no plant identified in the image"
	case errors.Is(err, ErrNetwork):
		return "network failure contacting the provider"
	default:
		return "provider request failed"
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
