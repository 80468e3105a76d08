// Package resilience provides reliability patterns for upstream API calls:
// failure classification, a global minimum call interval, retry with
// exponential backoff, and a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/otomatty/saedgewell-sample-sub003/internal/port/source"
)

// Class is the retry classification of an upstream failure.
type Class int

const (
	// ClassPermanent failures are not retried (bad request, auth failure).
	ClassPermanent Class = iota
	// ClassTransient failures are retried with standard exponential backoff.
	ClassTransient
	// ClassRateLimited failures are retried with a steeper backoff because
	// the server explicitly asked for a cool-down.
	ClassRateLimited
)

// Classify inspects an upstream error and decides whether it is worth
// retrying. Status codes surfaced through source.UpstreamError take
// precedence; plain network errors and a small set of well-known error
// strings are treated as transient.
func Classify(err error) Class {
	if err == nil {
		return ClassPermanent
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassPermanent
	}

	var ue *source.UpstreamError
	if errors.As(err, &ue) && ue.StatusCode != 0 {
		switch {
		case ue.StatusCode == http.StatusTooManyRequests:
			return ClassRateLimited
		case ue.StatusCode >= 500:
			return ClassTransient
		default:
			return ClassPermanent
		}
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return ClassTransient
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "resource has been exhausted"):
		return ClassRateLimited
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "service unavailable"),
		strings.Contains(msg, "bad gateway"),
		strings.Contains(msg, "gateway timeout"),
		strings.Contains(msg, "unexpected eof"),
		strings.Contains(msg, "timeout"):
		return ClassTransient
	}
	return ClassPermanent
}
