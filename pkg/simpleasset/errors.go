package simpleasset

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrAssetNotFound indicates an asset record was not found
	ErrAssetNotFound = errors.New("asset not found")

	// ErrObjectNotFound indicates a blob was not found under the given key.
	// Blob store implementations must return this for a missing key so callers
	// can tell it apart from a transient failure.
	ErrObjectNotFound = errors.New("object not found")

	// ErrInvalidStatusTransition indicates a status write that the state
	// machine does not allow from the asset's current status
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrStaleAttempt indicates a terminal write carrying an attempt number
	// older than one already recorded for the asset
	ErrStaleAttempt = errors.New("stale job attempt")

	// ErrNoJob indicates the queue had no leasable job
	ErrNoJob = errors.New("no job available")

	// ErrJobNotLeased indicates an ack or fail for a job that is not currently leased
	ErrJobNotLeased = errors.New("job not leased")

	// ErrUnsupportedImage indicates image bytes that could not be decoded
	ErrUnsupportedImage = errors.New("unsupported or corrupt image")
)

// AssetError represents an error related to asset operations
type AssetError struct {
	AssetID uuid.UUID
	Op      string
	Err     error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset operation %s failed for asset %s: %v", e.Op, e.AssetID, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

// JobError represents an error related to queue operations
type JobError struct {
	JobID uuid.UUID
	Op    string
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job operation %s failed for job %s: %v", e.Op, e.JobID, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob store operations
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// permanentError marks a derivation failure that retrying cannot fix
// (unsupported or corrupt media). Jobs failing with a permanent error are
// dead-lettered without retry and the asset is marked failed.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// MarkPermanent wraps err as a permanent (non-retryable) failure.
func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked permanent anywhere in its chain.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
