package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrNoIdentity marks a record for which no identity key can be derived.
	ErrNoIdentity = errors.New("no identity key")
	// ErrMissingName: a new entity cannot be created without a display name.
	ErrMissingName = errors.New("missing name")
	// ErrDuplicate is returned by repositories when a unique key already exists.
	ErrDuplicate = errors.New("duplicate key")
)

// FetchError is a network, timeout or non-2xx failure talking to an upstream.
type FetchError struct {
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type UnsupportedSourceError struct {
	Source string
}

func (e *UnsupportedSourceError) Error() string {
	return fmt.Sprintf("unsupported source %q", e.Source)
}

// ParseError is returned when an item's markup does not yield a usable record.
type ParseError struct {
	Source string
	URL    string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s item %s: %v", e.Source, e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConfigurationError means a required external credential or setting is missing.
// Retrying will not help until the deployment is reconfigured.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not configured", e.Setting)
}
