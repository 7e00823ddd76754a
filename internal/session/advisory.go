package session

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey is the cause of a ConfigError raised when the remote
	// backend is selected without a credential.
	ErrMissingAPIKey = errors.New("remote backend selected but no API key is set")

	// ErrSessionClosed is returned when a local session is used after its
	// model has been released.
	ErrSessionClosed = errors.New("session already closed")
)

// Advisory describes a recoverable failure and what the user can do about it.
// It is returned alongside a nil error; callers print it and carry on.
type Advisory struct {
	Reason string
	Remedy string
	Status Status
}

func (a *Advisory) String() string {
	if a.Remedy == "" {
		return a.Reason
	}
	return a.Reason + ". " + a.Remedy
}

// ConfigError is configuration misuse that prevents any session from being created.
type ConfigError struct {
	Err      error
	Advisory Advisory
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

const remoteRemedy = "Enable the remote backend with `amphy config set remote.enabled true` and set an API key"

func localAdvisory(facility string, status Status) *Advisory {
	var reason string
	switch status {
	case StatusUnavailable:
		reason = fmt.Sprintf("The local %s is not installed or not reachable", facility)
	case StatusPendingDownload:
		reason = fmt.Sprintf("The local %s is still downloading", facility)
	default:
		reason = fmt.Sprintf("The local %s reported an unknown status", facility)
	}
	return &Advisory{Reason: reason, Remedy: remoteRemedy, Status: status}
}

func missingKeyError() *ConfigError {
	return &ConfigError{
		Err: ErrMissingAPIKey,
		Advisory: Advisory{
			Reason: "The remote backend is enabled but no API key is configured",
			Remedy: "Set your API key with `amphy config set remote.api_key <key>` or AMPHY_API_KEY",
			Status: StatusUnavailable,
		},
	}
}
