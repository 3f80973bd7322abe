package mapstream

import (
	"errors"
	"fmt"
	"os"

	"github.com/calvinalkan/mapstream/pkg/fs"
)

// FileOptions configures [Open].
type FileOptions struct {
	Options

	// FS opens the file and its lock file. Nil uses [fs.NewReal].
	FS fs.FS

	// Lock takes an advisory flock on "<path>.lock" for the stream's
	// lifetime: shared for [MapReadOnly], exclusive otherwise. Open fails with
	// [fs.ErrWouldBlock] if a conflicting lock is held.
	Lock bool

	// Resizable registers the file itself as the stream's [Resizer], so
	// [Stream.SetLength] and growing writes truncate or extend it. Invalid
	// with [MapReadOnly].
	Resizable bool
}

// Open maps the file at path.
//
// The file is opened read-write for [MapReadWrite] or when resizable, and
// read-only otherwise. Its current size is the stream length. Unless opts
// sets a Mapper, the stream maps with mmap and releases with munmap. The file
// and its lock are closed by the last Close.
func Open(path string, opts FileOptions) (*Stream, error) {
	if opts.Resizable && !opts.MapMode.Writable() {
		return nil, fmt.Errorf("resizable requires a writable map mode: %w", ErrInvalidArgument)
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	var lock *fs.Lock

	if opts.Lock {
		locker := fs.NewLocker(fsys)

		var err error
		if opts.MapMode.Writable() {
			lock, err = locker.TryLock(path + ".lock")
		} else {
			lock, err = locker.TryRLock(path + ".lock")
		}

		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", path, err)
		}
	}

	flag := os.O_RDONLY
	if opts.MapMode == MapReadWrite || opts.Resizable {
		flag = os.O_RDWR
	}

	f, err := fsys.OpenFile(path, flag, 0)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open %s: %w", path, err), closeLock(lock))
	}

	store := &fileStore{file: f, lock: lock}

	st, err := openStore(store, f, opts)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}

	return st, nil
}

func openStore(store *fileStore, f fs.File, opts FileOptions) (*Stream, error) {
	size, err := store.Size()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMapping, err)
	}

	osf, ok := fs.OSFile(f)
	if opts.Mapper == nil {
		if !ok {
			return nil, fmt.Errorf("%T is not backed by *os.File, set Mapper: %w", f, ErrInvalidArgument)
		}

		opts.Mapper = newMmapMapper(osf)

		if opts.Releaser == nil {
			opts.Releaser = mmapReleaser{}
		}
	}

	if opts.Resizable && opts.Resizer == nil {
		opts.Resizer = store
	}

	return New(store, size, opts.Options)
}

// fileStore is the [Store] and [Resizer] of a file opened by [Open].
type fileStore struct {
	file fs.File
	lock *fs.Lock
}

func (s *fileStore) Size() (int64, error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat: %w", err)
	}

	return info.Size(), nil
}

func (s *fileStore) Sync() error {
	return s.file.Sync()
}

// SetLength truncates or extends the file. New bytes read as zero.
func (s *fileStore) SetLength(n int64) error {
	return s.file.Truncate(n)
}

func (s *fileStore) Close() error {
	return errors.Join(s.file.Close(), closeLock(s.lock))
}

func closeLock(lk *fs.Lock) error {
	if lk == nil {
		return nil
	}

	return lk.Close()
}
