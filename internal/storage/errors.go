package storage

import "errors"

// Sentinel errors shared by every backend. Callers match them with errors.Is.
var (
	// ErrNotFound: no ledger event, freshness row, param, variable or dataset
	// exists for the key.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey: a dataset locator is already materialized. Datasets
	// are write-once; a new upload gets a new locator.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput: the record failed validation before reaching storage.
	ErrInvalidInput = errors.New("invalid input")
)
