package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// ErrorKind classifies failures surfaced by the resolution engine.
type ErrorKind string

const (
	ErrorKindLocator         ErrorKind = "locator"
	ErrorKindVersionPattern  ErrorKind = "version_pattern"
	ErrorKindFetch           ErrorKind = "fetch"
	ErrorKindManifest        ErrorKind = "manifest"
	ErrorKindNoConfiguration ErrorKind = "no_configuration"
)

// Error carries the offending location or URI alongside the coded cause.
// Candidates is populated for version pattern failures.
type Error struct {
	Kind       ErrorKind
	Subject    string
	Candidates []string
	Err        error
}

func (e *Error) Error() string {
	var builder strings.Builder
	builder.WriteString(string(e.Kind))
	builder.WriteString(" error")
	if e.Subject != "" {
		builder.WriteString(" [")
		builder.WriteString(e.Subject)
		builder.WriteString("]")
	}
	if e.Err != nil {
		builder.WriteString(": ")
		builder.WriteString(e.Err.Error())
	}
	if len(e.Candidates) > 0 {
		builder.WriteString(fmt.Sprintf(" (candidates: %s)", strings.Join(e.Candidates, ", ")))
	}
	return builder.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether any error in the chain is an *Error of kind.
func IsKind(err error, kind ErrorKind) bool {
	var target *Error
	if !errors.As(err, &target) {
		return false
	}
	return target.Kind == kind
}

// KindOf returns the kind of the first *Error in the chain.
func KindOf(err error) (ErrorKind, bool) {
	var target *Error
	if !errors.As(err, &target) {
		return "", false
	}
	return target.Kind, true
}

func newError(kind ErrorKind, code errbuilder.ErrCode, subject string, msg string, cause error) *Error {
	builder := errbuilder.New().
		WithCode(code).
		WithMsg(msg)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return &Error{Kind: kind, Subject: subject, Err: builder}
}

// LocatorError reports a malformed or incomplete Location.
func LocatorError(subject string, msg string, cause error) error {
	return newError(ErrorKindLocator, errbuilder.CodeInvalidArgument, subject, msg, cause)
}

// VersionPatternError reports a malformed pattern or one no candidate satisfies.
func VersionPatternError(pattern string, msg string, candidates []string) error {
	err := newError(ErrorKindVersionPattern, errbuilder.CodeFailedPrecondition, pattern, msg, nil)
	err.Candidates = append([]string(nil), candidates...)
	return err
}

// FetchError reports a transport or VCS failure materializing a payload.
func FetchError(subject string, msg string, cause error) error {
	return newError(ErrorKindFetch, errbuilder.CodeInternal, subject, msg, cause)
}

// ManifestError reports a missing or unparseable manifest after a fetch.
func ManifestError(subject string, msg string, cause error) error {
	return newError(ErrorKindManifest, errbuilder.CodeFailedPrecondition, subject, msg, cause)
}

// NoConfigurationError reports that no configuration applies.
func NoConfigurationError(subject string, msg string) error {
	return newError(ErrorKindNoConfiguration, errbuilder.CodeNotFound, subject, msg, nil)
}
