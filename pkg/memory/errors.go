package memory

import "errors"

// Sentinel errors returned by the store, the ingestion pipeline and the
// retrieval engine. Callers match them with errors.Is.
var (
	// ErrValidation marks a candidate or argument that failed validation.
	// During ingestion the offending candidate is dropped and the run
	// continues.
	ErrValidation = errors.New("validation failed")

	// ErrDimensionMismatch is returned when an embedding's length does not
	// match the dimension the vector index was created with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrProviderUnavailable marks a failed call to the embedding provider
	// or the summarizer. The operation is retryable.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrMalformedOutput is returned when summarizer output cannot be
	// recovered into a candidate list.
	ErrMalformedOutput = errors.New("malformed summarizer output")

	// ErrStoreUnavailable is returned after bounded retries against a
	// locked or unreadable database.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrIntegrity marks a referential integrity violation between the
	// records table, the vector index and the mapping table. It is fatal;
	// the store is never repaired in place.
	ErrIntegrity = errors.New("referential integrity violation")

	// ErrAlreadyEmbedded is returned when attaching a vector to a record
	// that is already ready.
	ErrAlreadyEmbedded = errors.New("record already embedded")

	// ErrNotFound is returned when a record or profile does not exist.
	ErrNotFound = errors.New("not found")
)
