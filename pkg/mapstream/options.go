package mapstream

import (
	"fmt"
	"log/slog"
	"strings"
)

// MapMode selects how chunks are mapped.
type MapMode int

const (
	// MapReadOnly maps chunks read-only. This is the default.
	MapReadOnly MapMode = iota

	// MapReadWrite maps chunks shared and writable; writes reach the file.
	MapReadWrite

	// MapPrivate maps chunks copy-on-write; writes stay in memory.
	MapPrivate
)

func (m MapMode) String() string {
	switch m {
	case MapReadOnly:
		return "read-only"
	case MapReadWrite:
		return "read-write"
	case MapPrivate:
		return "private"
	default:
		return fmt.Sprintf("MapMode(%d)", int(m))
	}
}

// Writable reports whether views derived from a stream in this mode may write.
func (m MapMode) Writable() bool {
	return m == MapReadWrite || m == MapPrivate
}

// ParseMapMode parses the [MapMode.String] form.
func ParseMapMode(s string) (MapMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "read-only", "ro":
		return MapReadOnly, nil
	case "read-write", "rw":
		return MapReadWrite, nil
	case "private", "cow":
		return MapPrivate, nil
	default:
		return 0, fmt.Errorf("unknown map mode %q: %w", s, ErrInvalidArgument)
	}
}

// CacheMode controls what happens to a chunk when the cursor leaves it.
type CacheMode int

const (
	// CacheSoftEvict drops the chunk but keeps it in a small bounded shadow
	// cache, so hopping back shortly afterwards resurrects it without
	// remapping. Useful for forward readers and short-range hopping. This is
	// the default.
	CacheSoftEvict CacheMode = iota

	// CacheNoEvict keeps every chunk mapped until the stream is closed or
	// resized. Useful for random access, but the mapped footprint is
	// unbounded and mapping may fail once address space runs out.
	CacheNoEvict

	// CacheHardEvict releases the chunk immediately through the [Releaser].
	// If no Releaser is available, or one fails, the stream falls back to
	// [CacheSoftEvict] for the rest of its lifetime.
	CacheHardEvict
)

func (c CacheMode) String() string {
	switch c {
	case CacheSoftEvict:
		return "soft-evict"
	case CacheNoEvict:
		return "no-evict"
	case CacheHardEvict:
		return "hard-evict"
	default:
		return fmt.Sprintf("CacheMode(%d)", int(c))
	}
}

// ParseCacheMode parses the [CacheMode.String] form.
func ParseCacheMode(s string) (CacheMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "soft-evict", "soft":
		return CacheSoftEvict, nil
	case "no-evict", "none":
		return CacheNoEvict, nil
	case "hard-evict", "hard":
		return CacheHardEvict, nil
	default:
		return 0, fmt.Errorf("unknown cache mode %q: %w", s, ErrInvalidArgument)
	}
}

// Options configures a [Stream] created with [New].
type Options struct {
	// MapMode selects read-only, shared writable or copy-on-write mappings.
	//
	// Default is [MapReadOnly].
	MapMode MapMode

	// CacheMode selects the eviction policy.
	//
	// Default is [CacheSoftEvict].
	CacheMode CacheMode

	// ChunkShift sets the chunk size to 1<<ChunkShift bytes.
	//
	// Must be within [MinChunkShift, MaxChunkShift]. Zero selects
	// [DefaultChunkShift] (1 GiB on 64-bit, 512 MiB on 32-bit). Smaller
	// values trade more map calls for less address space:
	//   - 29 -> 512 MiB
	//   - 28 -> 256 MiB
	//   - 27 -> 128 MiB
	//   - 26 ->  64 MiB
	ChunkShift int

	// ShadowCapacity bounds the number of soft-evicted chunks kept mapped for
	// resurrection. The least recently evicted chunk beyond this bound is
	// unmapped.
	//
	// Zero selects [DefaultShadowCapacity].
	ShadowCapacity int

	// StartChunk is the chunk the cursor starts at (offset 0).
	StartChunk int

	// Mapper maps chunks of the backing store. Required.
	Mapper Mapper

	// Releaser optionally unmaps a chunk immediately. Without one,
	// [CacheHardEvict] degrades to [CacheSoftEvict].
	Releaser Releaser

	// Resizer optionally resizes the backing store. Equivalent to calling
	// [Stream.SetResizer] right after construction.
	Resizer Resizer

	// Logger receives debug events (chunk mapped, resurrected, reclaimed,
	// cache mode downgrades, resizes). Nil discards them.
	Logger *slog.Logger
}

// normalize applies defaults and validates o.
func (o Options) normalize() (Options, error) {
	if o.ChunkShift == 0 {
		o.ChunkShift = DefaultChunkShift
	}

	if o.ChunkShift < MinChunkShift || o.ChunkShift > MaxChunkShift {
		return o, fmt.Errorf("chunk_shift must be within [%d, %d], got %d: %w", MinChunkShift, MaxChunkShift, o.ChunkShift, ErrInvalidArgument)
	}

	if o.ShadowCapacity == 0 {
		o.ShadowCapacity = DefaultShadowCapacity
	}

	if o.ShadowCapacity < 0 || o.ShadowCapacity > maxShadowCapacity {
		return o, fmt.Errorf("shadow_capacity must be within [1, %d], got %d: %w", maxShadowCapacity, o.ShadowCapacity, ErrInvalidArgument)
	}

	switch o.MapMode {
	case MapReadOnly, MapReadWrite, MapPrivate:
	default:
		return o, fmt.Errorf("unknown map mode %d: %w", o.MapMode, ErrInvalidArgument)
	}

	switch o.CacheMode {
	case CacheSoftEvict, CacheNoEvict, CacheHardEvict:
	default:
		return o, fmt.Errorf("unknown cache mode %d: %w", o.CacheMode, ErrInvalidArgument)
	}

	if o.StartChunk < 0 {
		return o, fmt.Errorf("start_chunk must be >= 0, got %d: %w", o.StartChunk, ErrInvalidArgument)
	}

	if o.Mapper == nil {
		return o, fmt.Errorf("mapper is required: %w", ErrInvalidArgument)
	}

	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}

	return o, nil
}
