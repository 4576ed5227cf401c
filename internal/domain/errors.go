package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMissingURL marks an inbound webhook payload without the required url
// field.
var ErrMissingURL = errors.New("webhook payload has no url")

// UpstreamError is any non-2xx answer from one of the two remote systems.
// Body carries the response text when the caller captured it.
type UpstreamError struct {
	Service string // "cobot" or "chatwoot"
	Status  int
	Body    string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.Status, strings.TrimSpace(e.Body))
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Status == http.StatusNotFound
}

// IsRateLimited reports whether err is an upstream 429, i.e. the retryable
// case escalated after the retry budget was exhausted.
func IsRateLimited(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Status == http.StatusTooManyRequests
}
