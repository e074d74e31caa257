// Package ledger tracks transient local handles that back image previews
// before (or instead of) a remote copy, and guarantees each is released
// exactly once.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// handlePrefix marks handles minted by a Ledger.
const handlePrefix = "local:"

// ErrReleased is returned when a handle is used after it was released.
var ErrReleased = errors.New("local handle released")

// ErrUnknownHandle is returned for handles the ledger never minted.
var ErrUnknownHandle = errors.New("unknown local handle")

// Handle is a process-local reference to pixel bytes.
type Handle string

// IsLocal reports whether s looks like a handle minted by a Ledger.
func IsLocal(s string) bool {
	return strings.HasPrefix(s, handlePrefix)
}

// Stats is a point-in-time view of handle accounting.
type Stats struct {
	Created  int `json:"created"`
	Released int `json:"released"`
	Live     int `json:"live"`
}

type entry struct {
	owner       string
	data        []byte
	contentType string
	pins        int
	// releasing is set once Release was requested; the bytes are dropped
	// when the last pin goes away.
	releasing bool
}

// Ledger owns every local handle of one media pipeline.
type Ledger struct {
	mu       sync.Mutex
	entries  map[Handle]*entry
	freed    map[Handle]struct{}
	created  int
	released int
	logger   *slog.Logger
}

// New creates an empty ledger.
func New(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		entries: make(map[Handle]*entry),
		freed:   make(map[Handle]struct{}),
		logger:  logger,
	}
}

// Create stores data under a fresh handle owned by owner (usually an asset id).
func (l *Ledger) Create(owner string, data []byte, contentType string) Handle {
	h := Handle(handlePrefix + uuid.New().String())

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[h] = &entry{owner: owner, data: data, contentType: contentType}
	l.created++
	return h
}

// Open returns the bytes and content type behind a live handle.
func (l *Ledger) Open(h Handle) ([]byte, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, err := l.lookup(h)
	if err != nil {
		return nil, "", err
	}
	return e.data, e.contentType, nil
}

// Pin records that a visible preview references the handle. A pinned handle
// is not freed by Release until every pin is dropped with Unpin.
func (l *Ledger) Pin(h Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, err := l.lookup(h)
	if err != nil {
		return err
	}
	if e.releasing {
		return fmt.Errorf("pin %s: %w", h, ErrReleased)
	}
	e.pins++
	return nil
}

// Unpin drops one preview reference and completes a pending release.
func (l *Ledger) Unpin(h Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[h]
	if !ok || e.pins == 0 {
		return
	}
	e.pins--
	if e.pins == 0 && e.releasing {
		l.free(h)
	}
}

// Release frees the handle, or defers freeing while it is pinned. It is
// idempotent and returns true only for the call that requested the release.
func (l *Ledger) Release(h Handle) bool {
	if h == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[h]
	if !ok || e.releasing {
		return false
	}
	e.releasing = true
	if e.pins == 0 {
		l.free(h)
	}
	return true
}

// ReleaseOwner releases every handle owned by owner and returns how many
// releases were requested.
func (l *Ledger) ReleaseOwner(owner string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for h, e := range l.entries {
		if e.owner != owner || e.releasing {
			continue
		}
		e.releasing = true
		if e.pins == 0 {
			l.free(h)
		}
		n++
	}
	return n
}

// ReleaseAll frees every remaining handle regardless of pins. It is called
// when the owning form goes away and no preview can be visible any more.
func (l *Ledger) ReleaseAll() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for h := range l.entries {
		l.free(h)
		n++
	}
	if n > 0 {
		l.logger.Debug("released all local handles", slog.Int("count", n))
	}
	return n
}

// Live reports whether the handle still holds bytes.
func (l *Ledger) Live(h Handle) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.entries[h]
	return ok
}

// Stats returns creation and release counters.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{Created: l.created, Released: l.released, Live: len(l.entries)}
}

func (l *Ledger) lookup(h Handle) (*entry, error) {
	if e, ok := l.entries[h]; ok {
		return e, nil
	}
	if _, ok := l.freed[h]; ok {
		return nil, fmt.Errorf("open %s: %w", h, ErrReleased)
	}
	return nil, fmt.Errorf("open %s: %w", h, ErrUnknownHandle)
}

// free must be called with mu held.
func (l *Ledger) free(h Handle) {
	delete(l.entries, h)
	l.freed[h] = struct{}{}
	l.released++
}
