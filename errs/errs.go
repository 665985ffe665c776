// Package errs defines the sentinel errors shared by every codec and engine
// package in this module.
//
// Call sites wrap a sentinel with additional context using fmt.Errorf and
// the %w verb, so callers can still use errors.Is against the sentinels
// below regardless of how much context was added along the way.
package errs

import "errors"

var (
	// ErrNotFound is returned when a .DBF, .DBT, or .NDX file does not exist
	// at open time.
	ErrNotFound = errors.New("dbase3: file not found")

	// ErrCorruptTable is returned when a table header is too short, a field
	// descriptor is truncated, the record size is inconsistent, or the
	// version byte is outside {0x03, 0x04, 0x05}.
	ErrCorruptTable = errors.New("dbase3: corrupt table")

	// ErrCorruptMemo is returned internally when a memo block is truncated
	// or lies beyond end of file; callers of the public memo API never see
	// it surfaced, they receive an empty memo instead.
	ErrCorruptMemo = errors.New("dbase3: corrupt memo")

	// ErrCorruptIndex is returned when neither NDX header dialect passes
	// its sanity check, or is used internally when a node claims more keys
	// than keys_max (in which case the caller-visible behavior is to clamp
	// and continue, not to fail).
	ErrCorruptIndex = errors.New("dbase3: corrupt index")

	// ErrSchemaError is returned for an unknown field type during bulk
	// index build, a field name that cannot be resolved during a query, or
	// a malformed schema in text interchange input.
	ErrSchemaError = errors.New("dbase3: schema error")

	// ErrHeapOverflow is returned when a heap map layout does not fit the
	// record-size budget.
	ErrHeapOverflow = errors.New("dbase3: heap map layout overflow")

	// ErrMissingIndex is returned when a query's Like/Exact filter names a
	// field that has no registered NDX index.
	ErrMissingIndex = errors.New("dbase3: missing index")

	// ErrInvalidArgument is returned for a malformed date or numeric key
	// string, a negative numeric index key, the reserved memo block 0, or a
	// value that does not fit its field; it never corrupts state. A reversed
	// range is not an error: it yields an empty result.
	ErrInvalidArgument = errors.New("dbase3: invalid argument")
)
