package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced by the recorder, the player and the remote sink.
var (
	ErrDeviceNotReady = errors.New("no addressable playback device")
	ErrAuth           = errors.New("credential rejected")
	ErrNotFound       = errors.New("resource not found")
	ErrTransient      = errors.New("transient remote failure")
	ErrInvalidState   = errors.New("invalid state")
)

// Host-level errors.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrRecordingMissing = errors.New("recording not found")
	ErrConfigNotFound   = errors.New("config file not found")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// Kind reduces err to ErrAuth, ErrNotFound or ErrTransient.
// Errors that carry none of the remote kinds are treated as transient.
// Kind returns nil for a nil error.
func Kind(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAuth):
		return ErrAuth
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	default:
		return ErrTransient
	}
}

// IsRetryable reports whether a remote command failing with err may be retried.
func IsRetryable(err error) bool {
	return err != nil && !errors.Is(err, ErrAuth)
}

// RewindError wraps an error with a user-friendly suggestion.
type RewindError struct {
	Err        error
	Suggestion string
}

func (e *RewindError) Error() string {
	return e.Err.Error()
}

func (e *RewindError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &RewindError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var rwErr *RewindError
	if errors.As(err, &rwErr) && rwErr.Suggestion != "" {
		return rwErr.Suggestion
	}

	errStr := strings.ToLower(err.Error())

	if errors.Is(err, ErrNotAuthenticated) || errors.Is(err, ErrAuth) ||
		strings.Contains(errStr, "invalid access token") || strings.Contains(errStr, "token expired") {
		return "Run 'rewind auth login' to authenticate with Spotify"
	}

	if errors.Is(err, ErrDeviceNotReady) || strings.Contains(errStr, "no active device") {
		return "Open Spotify on a device, or pass --device / set device.name in the config"
	}

	if errors.Is(err, ErrInvalidState) {
		return "Stop the current recording or replay first"
	}

	if errors.Is(err, ErrRecordingMissing) {
		return "Run 'rewind recordings list' to see saved recordings"
	}

	if errors.Is(err, ErrNotFound) {
		return "The track may be unavailable in your market"
	}

	if strings.Contains(errStr, "premium required") || strings.Contains(errStr, "restricted device") {
		return "Playback control requires Spotify Premium"
	}

	if strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "429") {
		return "Too many requests. Wait a moment and try again"
	}

	if errors.Is(err, ErrTransient) || strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "timeout") || strings.Contains(errStr, "connection refused") {
		return "Check your internet connection and try again"
	}

	if errors.Is(err, ErrConfigNotFound) || errors.Is(err, ErrInvalidConfig) {
		return "Run 'rewind config init' to create a configuration file"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}
