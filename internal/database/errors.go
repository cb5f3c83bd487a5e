package database

import "errors"

// Error taxonomy. These are sentinel kinds, not exhaustive error types:
// adapters and the queue layer wrap them with context via fmt.Errorf's %w
// so callers can still errors.Is against the kind.
var (
	// ErrParameterInvalid: a null/empty required argument, or an engine
	// kind mismatch between a connection and the adapter invoked on it.
	ErrParameterInvalid = errors.New("database: invalid parameter")

	// ErrResourceExhausted: an allocation failed. Partial allocations from
	// the same operation must be freed before this is returned.
	ErrResourceExhausted = errors.New("database: resource exhausted")

	// ErrBackendProtocol: the engine returned a non-OK status, an execute
	// timeout expired, or PREPARE/DEALLOCATE failed.
	ErrBackendProtocol = errors.New("database: backend protocol error")

	// ErrConnectionLost: the backend connection dropped, or the
	// connection's synchronization state was detected corrupted.
	ErrConnectionLost = errors.New("database: connection lost")

	// ErrConfigMissing: a required database or migration config entry is
	// absent.
	ErrConfigMissing = errors.New("database: configuration missing")

	// ErrBootstrapInvariantBroken: the bootstrap query's JSON payload was
	// malformed, or its root was not an array. Bootstrap still completes;
	// this is not fatal to the subsystem.
	ErrBootstrapInvariantBroken = errors.New("database: bootstrap invariant broken")

	errNilEntry          = errors.New("database: nil query cache entry")
	errDuplicateQueryRef  = errors.New("database: duplicate query_ref")
)
