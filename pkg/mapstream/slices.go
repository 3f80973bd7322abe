package mapstream

import (
	"fmt"
	"log/slog"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// chunk is one mapped range. Slots hold *chunk so identity comparisons stay
// valid whatever Region implementation the Mapper returns.
type chunk struct {
	region Region // nil for the zero-length placeholder
	data   []byte
}

// placeholder is the single slot of a zero-length table. It is never mapped
// or released.
var placeholder = &chunk{data: []byte{}}

// slot holds at most one of strong and shadow.
//
//	Empty:    strong == nil && shadow == nil
//	Mapped:   strong != nil
//	Shadowed: shadow != nil (also present in sliceTable.shadows)
type slot struct {
	strong *chunk
	shadow *chunk
}

// counters are cumulative over the stream's lifetime.
type counters struct {
	maps          uint64
	resurrections uint64
	releases      uint64
	reclaims      uint64
	downgrades    uint64
}

// sliceTable owns the chunk slots of one stream.
//
// All methods run under the stream lock.
type sliceTable struct {
	shift   uint
	length  int64
	slots   []slot
	mode    CacheMode
	mapMode MapMode
	mapper  Mapper
	probe   releaseProbe

	// shadows is the bounded set of soft-evicted chunks, keyed by slot index.
	// Falling out of it is the reclamation of a shadow handle.
	shadows *simplelru.LRU[int, *chunk]

	log   *slog.Logger
	stats counters
}

func newSliceTable(length int64, opts Options) (*sliceTable, error) {
	t := &sliceTable{
		shift:   uint(opts.ChunkShift),
		mode:    opts.CacheMode,
		mapMode: opts.MapMode,
		mapper:  opts.Mapper,
		probe:   releaseProbe{releaser: opts.Releaser},
		log:     opts.Logger,
	}

	shadows, err := simplelru.NewLRU[int, *chunk](opts.ShadowCapacity, t.onShadowEvicted)
	if err != nil {
		return nil, fmt.Errorf("shadow cache: %w", err)
	}

	t.shadows = shadows

	count, err := t.countFor(length)
	if err != nil {
		return nil, err
	}

	t.length = length
	t.slots = make([]slot, count)

	if length == 0 {
		t.slots[0].strong = placeholder
	}

	return t, nil
}

func (t *sliceTable) chunkSize() int64 {
	return int64(1) << t.shift
}

// countFor returns max(1, ceil(length/chunkSize)).
func (t *sliceTable) countFor(length int64) (int, error) {
	if length == 0 {
		return 1, nil
	}

	count := (length-1)>>t.shift + 1
	if count > maxChunkCount {
		return 0, fmt.Errorf("length %d needs %d chunks of %d bytes, max %d: %w",
			length, count, t.chunkSize(), maxChunkCount, ErrInvalidArgument)
	}

	return int(count), nil
}

// capacity returns the valid byte count of chunk i for the current length.
func (t *sliceTable) capacity(i int) int {
	if t.length == 0 {
		return 0
	}

	start := int64(i) << t.shift

	return int(min(t.chunkSize(), t.length-start))
}

// view returns the valid bytes of chunk i. A carried-over slot may map more
// than the current length allows after a shrink.
func (t *sliceTable) view(i int, c *chunk) []byte {
	return c.data[:min(len(c.data), t.capacity(i))]
}

func (t *sliceTable) last() int {
	return len(t.slots) - 1
}

// get returns chunk i, resurrecting its shadow or mapping it on demand.
func (t *sliceTable) get(i int) (*chunk, error) {
	s := &t.slots[i]
	if s.strong != nil {
		return s.strong, nil
	}

	if t.length == 0 {
		s.strong = placeholder

		return placeholder, nil
	}

	if t.mode == CacheSoftEvict && s.shadow != nil {
		c := s.shadow
		s.strong = c
		s.shadow = nil
		// strong == c tells onShadowEvicted to keep the mapping.
		t.shadows.Remove(i)
		t.stats.resurrections++

		t.log.Debug("chunk resurrected", "chunk", i)

		return c, nil
	}

	off := int64(i) << t.shift
	n := t.capacity(i)

	r, err := t.mapper.Map(t.mapMode, off, n)
	if err != nil {
		return nil, fmt.Errorf("%w: map chunk %d [%d, %d): %w", ErrMapping, i, off, off+int64(n), err)
	}

	data := r.Bytes()
	if len(data) != n {
		_ = r.Close()

		return nil, fmt.Errorf("%w: chunk %d mapped %d bytes, want %d", ErrMapping, i, len(data), n)
	}

	c := &chunk{region: r, data: data}
	s.strong = c

	if s.shadow != nil {
		// A shadow left over from a mode change; reclaim it.
		s.shadow = nil
		t.shadows.Remove(i)
	}

	t.stats.maps++

	t.log.Debug("chunk mapped", "chunk", i, "offset", off, "length", n)

	return c, nil
}

// evict drops the strong reference to chunk i according to the cache mode.
func (t *sliceTable) evict(i int) {
	if t.mode == CacheNoEvict {
		return
	}

	s := &t.slots[i]

	c := s.strong
	if c == nil || c == placeholder {
		return
	}

	s.strong = nil

	if t.mode == CacheHardEvict {
		if t.releaseNow(c) {
			return
		}

		t.mode = CacheSoftEvict
		t.stats.downgrades++

		t.log.Debug("explicit release unavailable, falling back to soft eviction", "chunk", i)
	}

	s.shadow = c
	t.shadows.Add(i, c)
}

// release drops both references to chunk i and unmaps it. Never fails.
func (t *sliceTable) release(i int) {
	s := &t.slots[i]

	if c := s.strong; c != nil {
		s.strong = nil

		if c.region != nil && !t.releaseNow(c) {
			t.reclaim(c)
		}
	}

	if s.shadow != nil {
		s.shadow = nil
		t.shadows.Remove(i)
	}
}

func (t *sliceTable) releaseAll() {
	for i := range t.slots {
		t.release(i)
	}
}

// releaseNow attempts an explicit release of c.
func (t *sliceTable) releaseNow(c *chunk) bool {
	err := t.probe.release(c.region)
	if err != nil {
		t.log.Debug("explicit release failed", "error", err)

		return false
	}

	t.stats.releases++

	return true
}

// reclaim unmaps c through its own Close. Errors are dropped.
func (t *sliceTable) reclaim(c *chunk) {
	if c.region == nil {
		return
	}

	err := c.region.Close()
	if err != nil {
		t.log.Debug("unmap failed", "error", err)
	}

	t.stats.reclaims++
}

// onShadowEvicted runs whenever a chunk leaves the shadow cache: capacity
// overflow, Remove or Purge.
func (t *sliceTable) onShadowEvicted(i int, c *chunk) {
	if i < len(t.slots) {
		s := &t.slots[i]
		if s.strong == c {
			return
		}

		if s.shadow == c {
			s.shadow = nil
		}
	}

	t.log.Debug("shadow chunk reclaimed", "chunk", i)

	t.reclaim(c)
}

// counts returns the number of mapped and shadowed slots.
func (t *sliceTable) counts() (mapped, shadowed int) {
	for _, s := range t.slots {
		if s.strong != nil && s.strong != placeholder {
			mapped++
		}

		if s.shadow != nil {
			shadowed++
		}
	}

	return mapped, shadowed
}

// releaseProbe caches whether explicit release works.
type releaseProbe struct {
	releaser  Releaser
	probed    bool
	supported bool
}

var errReleaseUnsupported = fmt.Errorf("explicit release unsupported")

func (p *releaseProbe) release(r Region) error {
	if !p.probed {
		p.probed = true
		p.supported = p.releaser != nil

		if prober, ok := p.releaser.(Prober); ok && p.supported {
			p.supported = prober.Probe()
		}
	}

	if !p.supported {
		return errReleaseUnsupported
	}

	err := p.releaser.Release(r)
	if err != nil {
		p.supported = false

		return err
	}

	return nil
}
