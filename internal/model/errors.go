package model

import "errors"

var (
	// ErrSessionNotFound is returned when a connection record is not found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrFileNotFound is returned when a content or text file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidFilename is returned when a filename sanitises to nothing usable.
	ErrInvalidFilename = errors.New("invalid filename")

	// ErrShuttingDown is returned when new work is refused because the process is stopping.
	ErrShuttingDown = errors.New("server is shutting down")
)
