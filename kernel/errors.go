package kernel

import "errors"

var (
	// ErrSessionDisposed is returned for any message handled after the
	// session has been disposed.
	ErrSessionDisposed = errors.New("session disposed")

	// ErrNotReady is returned when the interpreter failed to initialize
	// and a request cannot proceed.
	ErrNotReady = errors.New("interpreter not ready")

	// ErrNotSupported is returned for message kinds the kernel
	// deliberately does not implement (completion, inspection, comms).
	ErrNotSupported = errors.New("not supported")

	// ErrShelterLeak is returned when a scratch arena could not be
	// released. The session must not process further requests.
	ErrShelterLeak = errors.New("shelter release failed")
)
