package service

import "errors"

// Service-level sentinel errors.
var (
	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("helpdex: client is closed")

	// ErrIngestRunning indicates an ingest run is already in progress.
	ErrIngestRunning = errors.New("ingest already running")

	// ErrNoSources indicates no source roots are configured.
	ErrNoSources = errors.New("no help source roots configured")
)
