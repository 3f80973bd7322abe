package mapstream

import (
	"fmt"
	"io"
)

// Stats is a diagnostic snapshot of a stream. Nothing depends on it.
type Stats struct {
	Refs       int
	Closed     bool
	StoreSize  int64 // -1 if the store could not report it
	Length     int64
	Position   int64
	Remaining  int64
	Mark       int64 // -1 if unset
	MapMode    MapMode
	CacheMode  CacheMode
	HasResizer bool

	ChunkSize      int64
	ChunkCount     int
	CurrentChunk   int
	MappedChunks   int
	ShadowedChunks int

	// Cumulative counters.
	Maps          uint64
	Resurrections uint64
	Releases      uint64
	Reclaims      uint64
	Downgrades    uint64
}

// Stats returns a snapshot. It works on closed streams too.
func (st *Stream) Stats() Stats {
	s := st.s

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats(st.closed)
}

func (s *shared) stats(handleClosed bool) Stats {
	t := s.table

	storeSize := int64(-1)

	if s.open() {
		size, err := s.store.Size()
		if err == nil {
			storeSize = size
		}
	}

	mapped, shadowed := t.counts()

	return Stats{
		Refs:           s.refs,
		Closed:         handleClosed || !s.open(),
		StoreSize:      storeSize,
		Length:         t.length,
		Position:       s.position(),
		Remaining:      s.remaining(),
		Mark:           s.mark,
		MapMode:        s.mapMode,
		CacheMode:      t.mode,
		HasResizer:     s.resizer != nil,
		ChunkSize:      t.chunkSize(),
		ChunkCount:     len(t.slots),
		CurrentChunk:   s.cur.chunk,
		MappedChunks:   mapped,
		ShadowedChunks: shadowed,
		Maps:           t.stats.maps,
		Resurrections:  t.stats.resurrections,
		Releases:       t.stats.releases,
		Reclaims:       t.stats.reclaims,
		Downgrades:     t.stats.downgrades,
	}
}

// Dump writes the snapshot to w, one field per line, each line prefixed.
func (st *Stream) Dump(w io.Writer, prefix string) error {
	return st.Stats().Dump(w, prefix)
}

// Dump writes s to w, one field per line, each line prefixed.
func (s Stats) Dump(w io.Writer, prefix string) error {
	lines := []struct {
		key string
		val any
	}{
		{"refs", s.Refs},
		{"closed", s.Closed},
		{"store size", s.StoreSize},
		{"length", s.Length},
		{"position", s.Position},
		{"remaining", s.Remaining},
		{"mark", s.Mark},
		{"map mode", s.MapMode},
		{"cache mode", s.CacheMode},
		{"resizer", s.HasResizer},
		{"chunk size", s.ChunkSize},
		{"chunks", fmt.Sprintf("%d (current %d, mapped %d, shadowed %d)",
			s.ChunkCount, s.CurrentChunk, s.MappedChunks, s.ShadowedChunks)},
		{"maps", s.Maps},
		{"resurrections", s.Resurrections},
		{"releases", s.Releases},
		{"reclaims", s.Reclaims},
		{"downgrades", s.Downgrades},
	}

	for _, l := range lines {
		_, err := fmt.Fprintf(w, "%s%-14s %v\n", prefix, l.key+":", l.val)
		if err != nil {
			return err
		}
	}

	return nil
}
