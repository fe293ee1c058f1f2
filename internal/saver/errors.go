package saver

import "errors"

// Configuration errors, reported by Run before any task is queued.
var (
	ErrEmptyInput        = errors.New("input text is empty")
	ErrNoTargetDirectory = errors.New("target directory is required")
	ErrNoSourceURLs      = errors.New("input contains no share URLs")
)

// Per-task errors. They are logged and counted as failures, never returned
// from Run.
var (
	ErrNoEmbeddedData = errors.New("page has no embedded data")
	ErrTaskPanicked   = errors.New("task panicked")
)
