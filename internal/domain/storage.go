package domain

import (
	"io"
	"os"
	"sync"
)

// ArtifactStore is the on-disk cache the orchestrator writes into. Names are
// relative to the cache root; Path resolves them for the encoder process.
type ArtifactStore interface {
	Path(name string) string
	Stat(name string) (os.FileInfo, error)
	// Exists reports a non-empty file or a directory.
	Exists(name string) bool
	Open(name string) (io.ReadCloser, error)
	ReadFile(name string) ([]byte, error)
	// WriteFile replaces name atomically.
	WriteFile(name string, data []byte) error
	MkdirAll(name string) error
	Touch(name string) error
	Remove(name string) error
	Lock(name string) sync.Locker
}
