package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectivity: cache, store o proveedor inaccesible.
	ErrConnectivity = errors.New("connectivity")
	// ErrNotFound: no existe el guild, la sesión o el track.
	ErrNotFound = errors.New("not found")
	// ErrResolutionFailed: la query no dio ningún track reproducible.
	ErrResolutionFailed = errors.New("resolution failed")
	// ErrValidation: valor de config fuera de rango.
	ErrValidation = errors.New("validation failed")

	ErrNoSession    = fmt.Errorf("music session: %w", ErrNotFound)
	ErrNotOwner     = errors.New("only the session owner can stop playback")
	ErrQueueFull    = errors.New("music queue is full")
	ErrShuttingDown = errors.New("shutting down")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsNotFound dice si err es (o envuelve) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
