package repository

import "fmt"

// The repository distinguishes three failure classes so callers can render
// each differently: validation (no I/O happened), transport (the blob store
// failed) and metadata (the row store failed).

// ValidationError reports a rejected input. No network I/O was performed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransportError reports a failed object-store operation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("object store %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MetadataError reports a failed metadata-row operation. When it follows a
// successful blob write the blob is orphaned but the caller is told.
type MetadataError struct {
	Op  string
	Err error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("metadata %s failed: %v", e.Op, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }
