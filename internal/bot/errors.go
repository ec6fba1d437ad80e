// Package bot holds cross-cutting types shared by every component: the
// error taxonomy and nothing else. It must not import any of the
// component packages, so they can all import it.
package bot

import (
	"errors"
	"fmt"
)

// Kind is the closed error taxonomy every component draws from.
type Kind string

const (
	KindConfig        Kind = "config"
	KindInvalidInput  Kind = "invalid_input"
	KindRepoNotFound  Kind = "repo_not_found"
	KindJobNotFound   Kind = "job_not_found"
	KindInvalidProver Kind = "invalid_prover"
	KindUnsupported   Kind = "unsupported"
	KindHTTP          Kind = "http"
	KindStore         Kind = "store"
	KindIO            Kind = "io"
	KindBitbucket     Kind = "bitbucket"
	KindGitLab        Kind = "gitlab"
	KindGitHub        Kind = "github"
	KindVerifier      Kind = "verifier"
	KindInternal      Kind = "internal"
)

// Error is the single error type every component returns. Platform-
// specific errors (Bitbucket/GitLab/GitHub) additionally carry the
// remote HTTP status and response body.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Kind, e.Message, e.StatusCode, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a plain Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WrapPlatform builds a platform-specific Error carrying the remote
// response, for the GitHub/GitLab/Bitbucket adapters.
func WrapPlatform(kind Kind, message string, statusCode int, body string) *Error {
	return &Error{Kind: kind, Message: message, StatusCode: statusCode, Body: body}
}

// Is reports whether err is a *Error of the given kind, unwrapping as
// needed so callers can check retry/propagation policy without a type
// assertion at every call site.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or KindInternal if err is not one
// of ours. Used by the retry classifier.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
