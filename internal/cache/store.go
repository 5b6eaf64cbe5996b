// Package cache keeps transcoded artifacts on disk and evicts them.
package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// Store is an artifact directory. Names are relative to the root and may be
// files or segment directories.
type Store struct {
	fs   afero.Fs
	root string
	now  func() time.Time

	// granular locks, dropped when the last holder unlocks
	scopedLocks struct {
		sync.Mutex
		locks map[string]*nameLock
	}
}

// New roots a store at root on fs. The encoder writes through the real
// paths Path returns, so production stores use afero.NewOsFs.
func New(fs afero.Fs, root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("cache root is empty")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve cache root: %w", err)
	}
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	s := &Store{
		fs:   afero.NewBasePathFs(fs, root),
		root: root,
		now:  time.Now,
	}
	s.scopedLocks.locks = map[string]*nameLock{}
	return s, nil
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name)
}

func (s *Store) Stat(name string) (os.FileInfo, error) {
	return s.fs.Stat(name)
}

// Exists reports a non-empty file or a directory.
func (s *Store) Exists(name string) bool {
	info, err := s.fs.Stat(name)
	if err != nil {
		return false
	}
	return info.IsDir() || info.Size() > 0
}

func (s *Store) Open(name string) (io.ReadCloser, error) {
	return s.fs.Open(name)
}

func (s *Store) ReadFile(name string) ([]byte, error) {
	return afero.ReadFile(s.fs, name)
}

func (s *Store) WriteFile(name string, data []byte) error {
	if err := s.fs.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	tmp := name + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return err
	}
	return s.fs.Rename(tmp, name)
}

func (s *Store) MkdirAll(name string) error {
	return s.fs.MkdirAll(name, 0o755)
}

// Touch marks name as recently used.
func (s *Store) Touch(name string) error {
	now := s.now()
	return s.fs.Chtimes(name, now, now)
}

func (s *Store) Remove(name string) error {
	if err := s.fs.RemoveAll(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type nameLock struct {
	mu   sync.Mutex
	refs int
}

type scopedLock struct {
	store *Store
	name  string
	held  *nameLock
}

// Lock returns the lock guarding name.
func (s *Store) Lock(name string) sync.Locker {
	return &scopedLock{store: s, name: name}
}

func (l *scopedLock) Lock() {
	locks := &l.store.scopedLocks
	locks.Lock()
	nl, ok := locks.locks[l.name]
	if !ok {
		nl = &nameLock{}
		locks.locks[l.name] = nl
	}
	nl.refs++
	locks.Unlock()

	nl.mu.Lock()
	l.held = nl
}

func (l *scopedLock) Unlock() {
	nl := l.held
	if nl == nil {
		panic("cache: unlock of unlocked name lock " + l.name)
	}
	l.held = nil
	nl.mu.Unlock()

	locks := &l.store.scopedLocks
	locks.Lock()
	nl.refs--
	if nl.refs == 0 {
		delete(locks.locks, l.name)
	}
	locks.Unlock()
}

// Entry is one top-level artifact.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// Entries lists the top-level artifacts oldest first. Directory sizes are
// the sum of their files.
func (s *Store) Entries() ([]Entry, error) {
	infos, err := afero.ReadDir(s.fs, "/")
	if err != nil {
		return nil, fmt.Errorf("list cache: %w", err)
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		e := Entry{Name: info.Name(), Size: info.Size(), ModTime: info.ModTime(), IsDir: info.IsDir()}
		if e.IsDir {
			e.Size = 0
			_ = afero.Walk(s.fs, info.Name(), func(_ string, fi os.FileInfo, err error) error {
				if err == nil && !fi.IsDir() {
					e.Size += fi.Size()
				}
				return nil
			})
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModTime.Before(entries[j].ModTime)
	})
	return entries, nil
}
