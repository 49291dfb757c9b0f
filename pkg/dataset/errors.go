package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for conditions callers match with errors.Is.
var (
	// ErrChecksumMissing means an archive has no manifest entry.
	ErrChecksumMissing = errors.New("checksum entry missing")

	// ErrChecksumMalformed means a manifest entry could not be parsed.
	ErrChecksumMalformed = errors.New("checksum entry malformed")

	// ErrTargetConflict means extraction found existing files with
	// different content at the target.
	ErrTargetConflict = errors.New("extraction target conflict")
)

// IntegrityError reports a cryptographic checksum mismatch for an archive.
// It is fatal: an archive that fails verification must never be extracted.
type IntegrityError struct {
	Archive  string // archive file name
	Expected string // hex digest from the manifest
	Actual   string // hex digest computed from the bytes
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity failure for %s: expected sha256 %s, got %s",
		e.Archive, e.Expected, e.Actual)
}

// ExtractionError reports a corrupt or conflicting archive payload. It can
// occur even after a checksum matched, e.g. a truncated compression stream,
// and is fatal for that archive only.
type ExtractionError struct {
	Archive string
	Cause   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failure for %s: %v", e.Archive, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// DatasetIncompleteError reports that a requested time window is missing one
// or more required class tables.
type DatasetIncompleteError struct {
	Window  int
	Missing []string // the absent class tables, e.g. "benign"
}

func (e *DatasetIncompleteError) Error() string {
	return fmt.Sprintf("dataset incomplete for %ds window: missing %s",
		e.Window, strings.Join(e.Missing, ", "))
}

// SchemaError reports drift between the declared feature schema and the
// columns actually present in a loaded table.
type SchemaError struct {
	Table   string
	Missing []string // declared columns absent from the table union
	Detail  string
}

func (e *SchemaError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("schema mismatch in %s: declared columns absent: %s",
			e.Table, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("schema mismatch in %s: %s", e.Table, e.Detail)
}

// IsIntegrity reports whether err is an integrity failure.
func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// IsExtraction reports whether err is an extraction failure.
func IsExtraction(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}

// IsIncomplete reports whether err is a missing class/window failure.
func IsIncomplete(err error) bool {
	var de *DatasetIncompleteError
	return errors.As(err, &de)
}
