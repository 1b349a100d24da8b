package worker

import (
	"fmt"
	"sort"
	"sync"

	"github.com/duke-git/lancet/v2/maputil"
	"github.com/duke-git/lancet/v2/slice"
)

// FileLocks is an in-memory exclusive lock table keyed by file path.
type FileLocks struct {
	mu   sync.Mutex
	held map[string]string // path -> owner command id
}

// NewFileLocks creates an empty lock table.
func NewFileLocks() *FileLocks {
	return &FileLocks{held: make(map[string]string)}
}

// Lock takes every path for owner or none of them. A path held by anyone,
// including owner, yields ErrFileLocked.
func (l *FileLocks) Lock(owner string, paths []string) error {
	paths = slice.Unique(paths)
	if len(paths) == 0 {
		return fmt.Errorf("%w: no files given", ErrInvalidPayload)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range paths {
		if holder, ok := l.held[p]; ok {
			return fmt.Errorf("%w: %s (held by %s)", ErrFileLocked, p, holder)
		}
	}
	for _, p := range paths {
		l.held[p] = owner
	}
	return nil
}

// Unlock releases the given paths and returns how many were held.
func (l *FileLocks) Unlock(paths []string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, p := range slice.Unique(paths) {
		if _, ok := l.held[p]; ok {
			delete(l.held, p)
			n++
		}
	}
	return n
}

// Held returns the locked paths in sorted order.
func (l *FileLocks) Held() []string {
	l.mu.Lock()
	keys := maputil.Keys(l.held)
	l.mu.Unlock()

	sort.Strings(keys)
	return keys
}
