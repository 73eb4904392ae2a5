package ingest

import "errors"

// Sentinel kinds for ingestion errors.
var (
	ErrValidation = errors.New("slot validation failed")
)
