package mapstream

// Region is one mapped byte range of the backing store.
//
// Close unmaps it; the slice returned by Bytes must not be used afterwards.
// A Region may additionally implement Flush() error to write dirty pages
// back (msync); [Stream.Flush] calls it on every mapped chunk.
type Region interface {
	Bytes() []byte
	Close() error
}

// Mapper maps byte ranges of the backing store.
//
// Map must return a Region whose Bytes() has exactly length bytes covering
// [offset, offset+length). Errors are propagated to the caller as [ErrMapping].
type Mapper interface {
	Map(mode MapMode, offset int64, length int) (Region, error)
}

// Releaser releases a mapping immediately ("unmap now").
//
// It is consulted lazily: the first release attempt checks whether the
// Releaser is usable (see [Prober]) and caches the answer for the stream's
// lifetime. A Release error marks it unusable from then on.
type Releaser interface {
	Release(r Region) error
}

// Prober is optionally implemented by a [Releaser] to report whether the host
// supports explicit release at all. Probe is called at most once per stream.
type Prober interface {
	Probe() bool
}

// Store is the backing file.
type Store interface {
	// Size returns the current size of the backing file.
	Size() (int64, error)

	// Sync flushes written data to durable storage.
	Sync() error

	// Close closes the backing file. Called once, by the last Close.
	Close() error
}

// Resizer changes the length of the backing store.
//
// Implementations must be comparable (typically a pointer); registration
// compares them with ==.
type Resizer interface {
	SetLength(n int64) error
}
