package domain

import "errors"

// Error kinds shared by every component. Callers match them with errors.Is;
// producers wrap them with fmt.Errorf("%w: ...").
var (
	// ErrConfig marks invalid chunking or embedding parameters.
	ErrConfig = errors.New("invalid configuration")

	// ErrModelUnavailable marks an embedding model that failed to load.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrDocumentFetch marks a source document that could not be read.
	ErrDocumentFetch = errors.New("document fetch failed")

	// ErrCorruptArtifact marks a cache artifact that fails its shape checks.
	ErrCorruptArtifact = errors.New("corrupt cache artifact")

	// ErrInvalidArgument marks a malformed query.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrServiceUnavailable marks a query that arrived before the store was loaded.
	ErrServiceUnavailable = errors.New("service unavailable")
)
