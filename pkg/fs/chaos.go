package fs

import (
	"errors"
	"io/fs"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
//
// The zero value disables all fault injection. Unset fields default to 0.0.
//
// Only the operations a mapped stream depends on are covered: opening the
// backing file, sizing it, resizing it, syncing it and closing it. Memory
// mapped reads and writes bypass the file handle and cannot be intercepted.
type ChaosConfig struct {
	// OpenFailRate controls how often FS.Open and FS.OpenFile fail.
	// Returns EACCES, EIO, EMFILE or ENFILE.
	OpenFailRate float64

	// ReadFailRate controls how often FS.ReadFile and File.Read fail with EIO.
	ReadFailRate float64

	// StatFailRate controls how often FS.Stat and FS.Exists fail on a path.
	// Returns EACCES or EIO.
	StatFailRate float64

	// FileStatFailRate controls how often File.Stat fails on an open handle,
	// returning EIO. A stream uses it to learn the store size.
	FileStatFailRate float64

	// SyncFailRate controls how often File.Sync fails. Returns EIO, ENOSPC,
	// EDQUOT or EROFS.
	SyncFailRate float64

	// TruncateFailRate controls how often File.Truncate fails. Returns EIO,
	// ENOSPC, EFBIG or EROFS. The file size is left unchanged.
	TruncateFailRate float64

	// CloseFailRate controls how often File.Close reports an error. The
	// underlying file descriptor is always closed (to avoid leaks) even when
	// an error is returned. Returns EIO.
	CloseFailRate float64
}

// ChaosMode controls how [Chaos] behaves.
type ChaosMode uint8

const (
	// ChaosModeActive enables fault-rate injection.
	// This is the default mode for a new [Chaos].
	ChaosModeActive ChaosMode = iota

	// ChaosModeNoOp passes every operation directly to the underlying FS.
	ChaosModeNoOp
)

// ChaosStats contains counts of injected faults.
type ChaosStats struct {
	OpenFails     int64
	ReadFails     int64
	StatFails     int64
	FileStatFails int64
	SyncFails     int64
	TruncateFails int64
	CloseFails    int64
}

// Total returns the sum of all counters.
func (s ChaosStats) Total() int64 {
	return s.OpenFails + s.ReadFails + s.StatFails + s.FileStatFails +
		s.SyncFails + s.TruncateFails + s.CloseFails
}

// chaosError marks an error as intentionally injected by [Chaos].
//
// It wraps an [*fs.PathError] carrying a real [syscall.Errno], so errors.Is
// and helpers like [os.IsPermission] keep working through unwrapping.
type chaosError struct {
	Err error
}

func (e *chaosError) Error() string {
	return "chaos: " + e.Err.Error()
}

func (e *chaosError) Unwrap() error {
	return e.Err
}

// IsChaosErr reports whether err (or any wrapped error) was injected by [Chaos].
// Returns false if err is nil.
func IsChaosErr(err error) bool {
	var injected *chaosError

	return errors.As(err, &injected)
}

// Chaos wraps an [FS] and injects random failures for testing.
//
// Chaos never injects ENOENT (any os.IsNotExist result originates from the
// wrapped [FS]) and never injects EINTR. Each call independently decides
// whether to inject; there is no sticky per-path fault state.
//
// Files opened through Chaos implement Unwrap() *os.File when the wrapped
// file is an *os.File, so they can still be memory-mapped. Faults then apply
// to the handle operations only.
type Chaos struct {
	fs     FS
	config ChaosConfig
	mode   atomic.Uint32

	rngMu sync.Mutex
	rng   *rand.Rand

	openFails     atomic.Int64
	readFails     atomic.Int64
	statFails     atomic.Int64
	fileStatFails atomic.Int64
	syncFails     atomic.Int64
	truncateFails atomic.Int64
	closeFails    atomic.Int64
}

// NewChaos creates a new [Chaos] filesystem wrapping the given [FS].
// The seed controls random fault injection for reproducibility.
// Panics if underlying is nil.
func NewChaos(underlying FS, seed int64, config ChaosConfig) *Chaos {
	if underlying == nil {
		panic("underlying fs is nil")
	}

	return &Chaos{
		fs:     underlying,
		rng:    rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
		config: config,
	}
}

// SetMode updates [Chaos] behavior. Safe to call concurrently with
// filesystem operations.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// Stats returns the current fault injection counts.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		OpenFails:     c.openFails.Load(),
		ReadFails:     c.readFails.Load(),
		StatFails:     c.statFails.Load(),
		FileStatFails: c.fileStatFails.Load(),
		SyncFails:     c.syncFails.Load(),
		TruncateFails: c.truncateFails.Load(),
		CloseFails:    c.closeFails.Load(),
	}
}

// Open opens a file for reading with fault injection.
func (c *Chaos) Open(path string) (File, error) {
	return c.OpenFile(path, os.O_RDONLY, 0)
}

// OpenFile opens a file with fault injection.
func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	err := c.inject("open", path, c.config.OpenFailRate, &c.openFails,
		syscall.EACCES, syscall.EIO, syscall.EMFILE, syscall.ENFILE)
	if err != nil {
		return nil, err
	}

	f, err := c.fs.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &chaosFile{f: f, chaos: c, path: path}, nil
}

// ReadFile reads a file with fault injection.
func (c *Chaos) ReadFile(path string) ([]byte, error) {
	err := c.inject("read", path, c.config.ReadFailRate, &c.readFails, syscall.EIO)
	if err != nil {
		return nil, err
	}

	return c.fs.ReadFile(path)
}

// MkdirAll is a passthrough; directory creation is never faulted.
func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	return c.fs.MkdirAll(path, perm)
}

// Stat returns file info with fault injection.
func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	err := c.inject("stat", path, c.config.StatFailRate, &c.statFails, syscall.EACCES, syscall.EIO)
	if err != nil {
		return nil, err
	}

	return c.fs.Stat(path)
}

// Exists checks existence with fault injection.
func (c *Chaos) Exists(path string) (bool, error) {
	err := c.inject("stat", path, c.config.StatFailRate, &c.statFails, syscall.EACCES, syscall.EIO)
	if err != nil {
		return false, err
	}

	return c.fs.Exists(path)
}

// Remove is a passthrough; removal is never faulted.
func (c *Chaos) Remove(path string) error {
	return c.fs.Remove(path)
}

// inject decides whether to fail op and returns the injected error if so.
func (c *Chaos) inject(op, path string, rate float64, counter *atomic.Int64, errnos ...syscall.Errno) error {
	if ChaosMode(c.mode.Load()) == ChaosModeNoOp {
		return nil
	}

	c.rngMu.Lock()
	hit := c.rng.Float64() < rate
	errno := errnos[c.rng.IntN(len(errnos))]
	c.rngMu.Unlock()

	if !hit {
		return nil
	}

	counter.Add(1)

	return pathError(op, path, errno)
}

// pathError creates an injected [*fs.PathError] with the given operation, path, and errno.
func pathError(op, path string, errno syscall.Errno) error {
	return &chaosError{Err: &fs.PathError{Op: op, Path: path, Err: errno}}
}

type chaosFile struct {
	f     File
	chaos *Chaos
	path  string
}

var _ File = (*chaosFile)(nil)

func (cf *chaosFile) Read(p []byte) (int, error) {
	c := cf.chaos

	err := c.inject("read", cf.path, c.config.ReadFailRate, &c.readFails, syscall.EIO)
	if err != nil {
		return 0, err
	}

	return cf.f.Read(p)
}

func (cf *chaosFile) Write(p []byte) (int, error) {
	return cf.f.Write(p)
}

func (cf *chaosFile) Seek(offset int64, whence int) (int64, error) {
	return cf.f.Seek(offset, whence)
}

func (cf *chaosFile) Fd() uintptr {
	return cf.f.Fd()
}

func (cf *chaosFile) Name() string {
	return cf.f.Name()
}

func (cf *chaosFile) Stat() (os.FileInfo, error) {
	c := cf.chaos

	err := c.inject("stat", cf.path, c.config.FileStatFailRate, &c.fileStatFails, syscall.EIO)
	if err != nil {
		return nil, err
	}

	return cf.f.Stat()
}

func (cf *chaosFile) Sync() error {
	c := cf.chaos

	err := c.inject("sync", cf.path, c.config.SyncFailRate, &c.syncFails,
		syscall.EIO, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS)
	if err != nil {
		return err
	}

	return cf.f.Sync()
}

func (cf *chaosFile) Truncate(size int64) error {
	c := cf.chaos

	err := c.inject("truncate", cf.path, c.config.TruncateFailRate, &c.truncateFails,
		syscall.EIO, syscall.ENOSPC, syscall.EFBIG, syscall.EROFS)
	if err != nil {
		return err
	}

	return cf.f.Truncate(size)
}

func (cf *chaosFile) Close() error {
	c := cf.chaos

	injected := c.inject("close", cf.path, c.config.CloseFailRate, &c.closeFails, syscall.EIO)

	// Always close the underlying file to avoid descriptor leaks, even when
	// returning an injected error.
	err := cf.f.Close()
	if err != nil {
		return err
	}

	return injected
}

// Unwrap returns the wrapped *os.File, or nil if the wrapped file is not one.
func (cf *chaosFile) Unwrap() *os.File {
	osf, _ := OSFile(cf.f)

	return osf
}

var _ FS = (*Chaos)(nil)
