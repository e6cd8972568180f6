// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// Pipeline error taxonomy. Stages wrap these sentinels with fmt.Errorf so
// batch loops can classify failures with errors.Is.
var (
	// ErrTransientSource marks a network or timeout failure against an
	// external capability. Retryable; skipped at record granularity.
	ErrTransientSource = errors.New("transient source error")

	// ErrValidation marks a structurally malformed external response.
	// Record-level, non-fatal; the paper's status is left unchanged.
	ErrValidation = errors.New("validation error")

	// ErrDuplicateIdentifier is benign during ingestion: the paper is
	// already known and the candidate is skipped.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")

	// ErrStoreWrite marks a persistence failure. Fatal for the current
	// record; the batch continues.
	ErrStoreWrite = errors.New("store write error")

	// ErrConfiguration marks missing required settings. Fatal at startup.
	ErrConfiguration = errors.New("configuration error")
)
