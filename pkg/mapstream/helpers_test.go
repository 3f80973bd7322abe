package mapstream

import (
	"errors"
	"fmt"
	"testing"
)

// memStore is an in-memory Store, Mapper and Resizer. Regions alias the
// backing slice, like shared mappings alias the page cache.
type memStore struct {
	data []byte

	maps   []mapCall
	live   int // regions mapped and not yet closed
	syncs  int
	closes int

	failMap    error
	failSync   error
	failClose  error
	failResize error
}

type mapCall struct {
	mode   MapMode
	offset int64
	length int
}

// newMemStore returns a store of n bytes where byte i is byte(i).
func newMemStore(n int) *memStore {
	data := make([]byte, n, max(n, 1<<12))
	for i := range data {
		data[i] = byte(i)
	}

	return &memStore{data: data}
}

func (m *memStore) Size() (int64, error) {
	return int64(len(m.data)), nil
}

func (m *memStore) Sync() error {
	m.syncs++

	return m.failSync
}

func (m *memStore) Close() error {
	m.closes++

	return m.failClose
}

func (m *memStore) SetLength(n int64) error {
	if m.failResize != nil {
		return m.failResize
	}

	old := len(m.data)

	if int(n) > cap(m.data) {
		grown := make([]byte, n, 2*n)
		copy(grown, m.data)
		m.data = grown

		return nil
	}

	m.data = m.data[:n]
	if int(n) > old {
		clear(m.data[old:])
	}

	return nil
}

func (m *memStore) Map(mode MapMode, offset int64, length int) (Region, error) {
	if m.failMap != nil {
		return nil, m.failMap
	}

	if offset < 0 || offset+int64(length) > int64(len(m.data)) {
		return nil, fmt.Errorf("map [%d, %d) beyond size %d", offset, offset+int64(length), len(m.data))
	}

	m.maps = append(m.maps, mapCall{mode: mode, offset: offset, length: length})
	m.live++

	return &memRegion{store: m, data: m.data[offset : offset+int64(length) : offset+int64(length)]}, nil
}

type memRegion struct {
	store  *memStore
	data   []byte
	closed bool
}

func (r *memRegion) Bytes() []byte {
	return r.data
}

func (r *memRegion) Close() error {
	if r.closed {
		return errors.New("region closed twice")
	}

	r.closed = true
	r.store.live--

	return nil
}

// memReleaser releases memRegions, or fails with err.
type memReleaser struct {
	err         error
	unsupported bool
	calls       int
	probes      int
}

func (r *memReleaser) Release(region Region) error {
	r.calls++

	if r.err != nil {
		return r.err
	}

	return region.Close()
}

func (r *memReleaser) Probe() bool {
	r.probes++

	return !r.unsupported
}

// zeroMapper maps fresh zeroed buffers of any length.
type zeroMapper struct{}

func (zeroMapper) Map(_ MapMode, _ int64, length int) (Region, error) {
	return &zeroRegion{data: make([]byte, length)}, nil
}

type zeroRegion struct{ data []byte }

func (r *zeroRegion) Bytes() []byte { return r.data }
func (r *zeroRegion) Close() error  { return nil }

// sizeStore is a Store reporting a fixed size.
type sizeStore int64

func (s sizeStore) Size() (int64, error) { return int64(s), nil }
func (sizeStore) Sync() error            { return nil }
func (sizeStore) Close() error           { return nil }

// newTestStream creates a stream over a fresh memStore of n bytes with
// 16-byte chunks.
func newTestStream(t *testing.T, n int, opts Options) (*Stream, *memStore) {
	t.Helper()

	store := newMemStore(n)

	if opts.ChunkShift == 0 {
		opts.ChunkShift = 4
	}

	if opts.Mapper == nil {
		opts.Mapper = store
	}

	st, err := New(store, int64(n), opts)
	if err != nil {
		t.Fatalf("New(len=%d): %v", n, err)
	}

	return st, store
}

// pattern returns the bytes newMemStore holds in [from, to).
func pattern(from, to int) []byte {
	b := make([]byte, 0, to-from)
	for i := from; i < to; i++ {
		b = append(b, byte(i))
	}

	return b
}

func mustPosition(t *testing.T, st *Stream) int64 {
	t.Helper()

	p, err := st.Position()
	if err != nil {
		t.Fatalf("Position: %v", err)
	}

	return p
}
