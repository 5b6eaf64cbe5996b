package transcode

import (
	"errors"
	"fmt"
)

var (
	// ErrWaitTimeout is returned to a waiter whose output did not appear in
	// time. The job keeps running.
	ErrWaitTimeout = errors.New("timed out waiting for transcoder output")

	ErrAborted            = errors.New("transcode aborted")
	ErrSegmentUnavailable = errors.New("segment not available")
	ErrNotFound           = errors.New("transcode not found")
	ErrNotSegmented       = errors.New("transcode has no segments")
	ErrClosed             = errors.New("orchestrator closed")
	ErrEmptyOutput        = errors.New("encoder wrote no output")
)

// SpawnError means the encoder process could not be started.
type SpawnError struct {
	TranscodeID string
	Err         error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("transcode %s: start encoder: %v", e.TranscodeID, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExitError carries the exit code of an encoder that failed at runtime.
type ExitError struct {
	TranscodeID string
	Code        int
	// Stderr is the tail of the encoder's diagnostic output.
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("transcode %s: encoder exited with code %d", e.TranscodeID, e.Code)
	}
	return fmt.Sprintf("transcode %s: encoder exited with code %d: %s", e.TranscodeID, e.Code, e.Stderr)
}
