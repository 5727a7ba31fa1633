package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrCredentialMissing means no usable access credential is configured for the
	// model provider. It is never retried.
	ErrCredentialMissing = errors.New("optimization service credential missing")

	// ErrServiceUnreachable means the provider could not be reached at all.
	ErrServiceUnreachable = errors.New("optimization service unreachable")
)

// RequestError means the provider was reached but returned an error or a payload
// that could not be used.
type RequestError struct {
	Agent string
	Err   error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s request failed: %v", strings.ToLower(e.Agent), e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err belongs to the credential-missing /
// cannot-reach category.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrCredentialMissing) || errors.Is(err, ErrServiceUnreachable)
}

// IsRequestFailed reports whether err is a RequestError.
func IsRequestFailed(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

// Classify tags err for the given agent. Errors already in the unavailable
// category pass through, everything else becomes a RequestError.
func Classify(agent string, err error) error {
	if err == nil {
		return nil
	}
	if IsUnavailable(err) || IsRequestFailed(err) {
		return err
	}
	return &RequestError{Agent: agent, Err: err}
}

// Malformed builds a RequestError for a payload that could not be decoded.
func Malformed(agent string, err error, content string) error {
	return &RequestError{
		Agent: agent,
		Err:   fmt.Errorf("malformed response: %w. Response: %s", err, truncate(content, 500)),
	}
}

// transportError wraps network-level failures as ErrServiceUnreachable.
func transportError(provider string, err error) error {
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrServiceUnreachable, provider, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
