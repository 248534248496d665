package harvest

import (
	"errors"
	"fmt"
)

// FetchErrorKind classifies fetch failures.
type FetchErrorKind string

// Fetch failure kinds.
const (
	FetchTimeout            FetchErrorKind = "timeout"
	FetchNetworkFailure     FetchErrorKind = "network_failure"
	FetchBlockedOrChallenge FetchErrorKind = "blocked_or_challenge"
	FetchNonSuccessStatus   FetchErrorKind = "non_success_status"
)

// FetchError reports a failed page fetch. Timeout and NetworkFailure are
// transient and eligible for retry; the other kinds are not.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient reports whether the failure may clear on retry.
func (e *FetchError) Transient() bool {
	return e.Kind == FetchTimeout || e.Kind == FetchNetworkFailure
}

// NewFetchError builds a FetchError wrapping err. A zero status means
// no HTTP response was observed.
func NewFetchError(kind FetchErrorKind, url string, status int, err error) *FetchError {
	return &FetchError{Kind: kind, URL: url, StatusCode: status, Err: err}
}

// ExtractionErrorKind classifies extraction failures.
type ExtractionErrorKind string

// Extraction failure kinds.
const (
	ExtractMissingRequiredField ExtractionErrorKind = "missing_required_field"
	ExtractEmptyBody            ExtractionErrorKind = "empty_body"
)

// ExtractionError reports that a snapshot could not be turned into a
// usable record. Extraction errors indicate a structural problem with
// the page and are never retried within a run.
type ExtractionError struct {
	Kind  ExtractionErrorKind
	Field string
	URL   string
}

func (e *ExtractionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("extract %s: %s (%s)", e.URL, e.Kind, e.Field)
	}
	return fmt.Sprintf("extract %s: %s", e.URL, e.Kind)
}

// PersistErrorKind classifies persistence failures.
type PersistErrorKind string

// Persistence failure kinds.
const (
	PersistConstraintViolation PersistErrorKind = "constraint_violation"
	PersistConnectivityFailure PersistErrorKind = "connectivity_failure"
)

// PersistError reports a failed upsert. A ConnectivityFailure means the
// store itself is unreachable and aborts the whole run.
type PersistError struct {
	Kind PersistErrorKind
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist: %s: %v", e.Kind, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// ErrArticleNotFound is returned by stores when an id has no row.
var ErrArticleNotFound = errors.New("article not found")

// IsFatalPersist reports whether err means the store is unreachable.
func IsFatalPersist(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe) && pe.Kind == PersistConnectivityFailure
}

// IsTransientFetch reports whether err is a retryable fetch failure.
func IsTransientFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Transient()
}
