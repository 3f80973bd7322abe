package mapstream

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

// shared is the state of one logical stream, jointly owned by the [Stream]
// and every [OutputView] derived from it.
//
// Every field is guarded by mu. Views hold a pointer to the same shared.
type shared struct {
	mu sync.Mutex

	store   Store
	table   *sliceTable
	cur     cursor
	mark    int64 // -1 when unset
	refs    int
	resizer Resizer
	mapMode MapMode

	log *slog.Logger
}

func newShared(store Store, length int64, opts Options) (*shared, error) {
	table, err := newSliceTable(length, opts)
	if err != nil {
		return nil, err
	}

	if opts.StartChunk > table.last() {
		return nil, fmt.Errorf("start chunk %d outside [0, %d]: %w", opts.StartChunk, table.last(), ErrInvalidArgument)
	}

	s := &shared{
		store:   store,
		table:   table,
		cur:     cursor{chunk: opts.StartChunk},
		mark:    -1,
		refs:    1,
		mapMode: opts.MapMode,
		log:     opts.Logger,
	}

	err = s.registerResizer(opts.Resizer)
	if err != nil {
		return nil, err
	}

	_, err = table.get(s.cur.chunk)
	if err != nil {
		table.releaseAll()

		return nil, err
	}

	return s, nil
}

// open reports whether the stream has not been torn down yet.
func (s *shared) open() bool {
	return s.refs > 0
}

// checkHandle returns ErrClosed if the calling handle or the whole stream has
// been closed. Must hold mu.
func (s *shared) checkHandle(handleClosed bool) error {
	if handleClosed || !s.open() {
		return ErrClosed
	}

	return nil
}

// registerResizer registers r. Nil is a no-op, the same value again is
// accepted, anything else after the first registration is a conflict.
func (s *shared) registerResizer(r Resizer) error {
	if r == nil {
		return nil
	}

	if s.resizer == nil {
		s.resizer = r

		return nil
	}

	if !sameResizer(s.resizer, r) {
		return fmt.Errorf("%T already registered, got %T: %w", s.resizer, r, ErrConflictingCapability)
	}

	return nil
}

func sameResizer(a, b Resizer) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}

	return a == b
}

// acquire adds a reference for a new output view.
func (s *shared) acquire(r Resizer) error {
	if !s.open() {
		return ErrClosed
	}

	err := s.registerResizer(r)
	if err != nil {
		return err
	}

	s.refs++

	return nil
}

// releaseRef drops one reference and tears down on the last one.
func (s *shared) releaseRef() error {
	s.refs--
	if s.refs > 0 {
		return nil
	}

	return s.teardown()
}

// teardown releases every chunk, syncs if writable and closes the store.
// It always runs to completion; errors are joined.
func (s *shared) teardown() error {
	var errs []error

	if s.mapMode == MapReadWrite {
		errs = append(errs, s.table.flushRegions())
	}

	s.table.releaseAll()
	s.table.shadows.Purge()

	if s.mapMode == MapReadWrite {
		if err := s.store.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync: %w", err))
		}
	}

	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.log.Debug("stream closed",
		"maps", s.table.stats.maps,
		"resurrections", s.table.stats.resurrections,
		"releases", s.table.stats.releases,
		"reclaims", s.table.stats.reclaims)

	err := errors.Join(errs...)
	if err != nil {
		return fmt.Errorf("%w: teardown: %w", ErrMapping, err)
	}

	return nil
}

// flush writes dirty pages of mapped chunks back and syncs the store.
func (s *shared) flush() error {
	if s.mapMode != MapReadWrite {
		return nil
	}

	err := s.table.flushRegions()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMapping, err)
	}

	err = s.store.Sync()
	if err != nil {
		return fmt.Errorf("%w: sync: %w", ErrMapping, err)
	}

	return nil
}

type flusher interface {
	Flush() error
}

// flushRegions msyncs every strong or shadowed chunk whose region supports it.
func (t *sliceTable) flushRegions() error {
	var errs []error

	for i, s := range t.slots {
		for _, c := range []*chunk{s.strong, s.shadow} {
			if c == nil {
				continue
			}

			f, ok := c.region.(flusher)
			if !ok {
				continue
			}

			if err := f.Flush(); err != nil {
				errs = append(errs, fmt.Errorf("flush chunk %d: %w", i, err))
			}
		}
	}

	return errors.Join(errs...)
}
