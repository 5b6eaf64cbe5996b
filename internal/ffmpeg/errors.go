package ffmpeg

import (
	"errors"
	"fmt"
)

var (
	ErrNoSource          = errors.New("request has no source")
	ErrNoCodec           = errors.New("neither target nor source declares a usable codec")
	ErrSubtitleContainer = errors.New("container cannot carry the subtitle codec")
	ErrUnsupported       = errors.New("unsupported request kind")
)

// NegotiationError is returned before any process is spawned when a request
// cannot be turned into a command line. It is never retried.
type NegotiationError struct {
	TranscodeID string
	Err         error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("negotiate %s: %v", e.TranscodeID, e.Err)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}

func negotiationError(id string, err error) error {
	return &NegotiationError{TranscodeID: id, Err: err}
}
