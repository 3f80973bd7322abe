package mapstream

import (
	"fmt"
	"io"
	"math"
)

// Stream is a read view over a chunked, lazily mapped store.
//
// A Stream is safe for use by multiple goroutines; every method serializes on
// a lock shared with the stream's output views.
type Stream struct {
	s      *shared
	closed bool
}

var (
	_ io.Reader     = (*Stream)(nil)
	_ io.ByteReader = (*Stream)(nil)
	_ io.Seeker     = (*Stream)(nil)
	_ io.WriterTo   = (*Stream)(nil)
	_ io.Closer     = (*Stream)(nil)
)

// New creates a stream of length bytes over store.
//
// The chunk at opts.StartChunk is mapped before New returns. store is owned
// by the stream from then on and closed by the last [Stream.Close] or
// [OutputView.Close]. On error, store is left open.
func New(store Store, length int64, opts Options) (*Stream, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required: %w", ErrInvalidArgument)
	}

	if length < 0 {
		return nil, fmt.Errorf("length %d: %w", length, ErrInvalidArgument)
	}

	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	s, err := newShared(store, length, opts)
	if err != nil {
		return nil, err
	}

	return &Stream{s: s}, nil
}

// ReadByte reads the next byte. It returns [io.EOF] at the end of the stream.
func (st *Stream) ReadByte() (byte, error) {
	s := st.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandle(st.closed); err != nil {
		return 0, err
	}

	b, ok, err := s.current()
	if err != nil {
		return 0, err
	}

	if !ok {
		return 0, io.EOF
	}

	s.cur.off++

	return b[0], nil
}

// Read reads up to len(p) bytes, crossing chunk boundaries as needed. It
// returns fewer bytes only at the end of the stream, and (0, [io.EOF]) once
// nothing remains.
func (st *Stream) Read(p []byte) (int, error) {
	s := st.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandle(st.closed); err != nil {
		return 0, err
	}

	return s.read(p)
}

func (s *shared) read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	rem := s.remaining()
	if rem == 0 {
		return 0, io.EOF
	}

	want := int(min(int64(len(p)), rem))
	n := 0

	for n < want {
		b, ok, err := s.current()
		if err != nil {
			return n, err
		}

		if !ok {
			return n, fmt.Errorf("read %d of %d bytes at %d: %w", n, want, s.position(), errInconsistent)
		}

		k := copy(p[n:want], b)
		s.cur.off += k
		n += k
	}

	return n, nil
}

// WriteTo writes the remaining bytes to w chunk by chunk, without an
// intermediate buffer.
func (st *Stream) WriteTo(w io.Writer) (int64, error) {
	s := st.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandle(st.closed); err != nil {
		return 0, err
	}

	var total int64

	for {
		b, ok, err := s.current()
		if err != nil {
			return total, err
		}

		if !ok {
			return total, nil
		}

		k, err := w.Write(b)
		s.cur.off += k
		total += int64(k)

		if err != nil {
			return total, err
		}

		if k < len(b) {
			return total, io.ErrShortWrite
		}
	}
}

// Mark records the current position for a later [Stream.Reset]. It does
// nothing on a closed stream.
func (st *Stream) Mark() {
	s := st.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.checkHandle(st.closed) != nil {
		return
	}

	s.mark = s.position()
}

// Reset moves back to the marked position. It fails with [ErrMarkNotSet] if
// no mark was recorded or a shrink cleared it.
func (st *Stream) Reset() error {
	s := st.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandle(st.closed); err != nil {
		return err
	}

	if s.mark < 0 {
		return ErrMarkNotSet
	}

	return s.setPosition(s.mark)
}

// Skip advances by min(n, Remaining) bytes and returns the amount skipped.
// Negative n skips nothing.
func (st *Stream) Skip(n int64) (int64, error) {
	s := st.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandle(st.closed); err != nil {
		return 0, err
	}

	if n <= 0 {
		return 0, nil
	}

	k := min(n, s.remaining())

	err := s.setPosition(s.position() + k)
	if err != nil {
		return 0, err
	}

	return k, nil
}

// Seek implements [io.Seeker]. Seeking outside [0, Length] fails with
// [ErrInvalidArgument].
func (st *Stream) Seek(offset int64, whence int) (int64, error) {
	s := st.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandle(st.closed); err != nil {
		return 0, err
	}

	var base int64

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = s.position()
	case io.SeekEnd:
		base = s.length()
	default:
		return 0, fmt.Errorf("whence %d: %w", whence, ErrInvalidArgument)
	}

	err := s.setPosition(base + offset)
	if err != nil {
		return s.position(), err
	}

	return s.position(), nil
}

// Position returns the absolute position.
func (st *Stream) Position() (int64, error) {
	s := st.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandle(st.closed); err != nil {
		return 0, err
	}

	return s.position(), nil
}

// SetPosition moves to p, which must be within [0, Length].
func (st *Stream) SetPosition(p int64) error {
	s := st.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandle(st.closed); err != nil {
		return err
	}

	return s.setPosition(p)
}

// Length returns the logical length. It keeps reporting the last length after
// Close.
func (st *Stream) Length() int64 {
	s := st.s

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.length()
}

// Remaining returns Length - Position.
func (st *Stream) Remaining() (int64, error) {
	s := st.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandle(st.closed); err != nil {
		return 0, err
	}

	return s.remaining(), nil
}

// Available is Remaining clamped to [math.MaxInt32].
func (st *Stream) Available() (int, error) {
	rem, err := st.Remaining()
	if err != nil {
		return 0, err
	}

	return int(min(rem, math.MaxInt32)), nil
}

// CacheMode returns the effective cache mode. [CacheHardEvict] reports
// [CacheSoftEvict] once it has fallen back.
func (st *Stream) CacheMode() CacheMode {
	s := st.s

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.table.mode
}

// Flush writes dirty pages back and syncs the store. It is a no-op unless
// the stream is mapped [MapReadWrite].
func (st *Stream) Flush() error {
	s := st.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandle(st.closed); err != nil {
		return err
	}

	return s.flush()
}

// SetLength resizes the store through the registered [Resizer] and adjusts
// the stream. It fails with [ErrUnsupportedResize] without one.
func (st *Stream) SetLength(n int64) error {
	s := st.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandle(st.closed); err != nil {
		return err
	}

	return s.setLength(n)
}

// NotifyLengthChange adjusts the stream to a store that was resized by
// someone else. No Resizer is needed.
//
// The position is clipped to n, and the mark is cleared if it lies beyond n.
func (st *Stream) NotifyLengthChange(n int64) error {
	s := st.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandle(st.closed); err != nil {
		return err
	}

	return s.notifyLengthChange(n)
}

// SetResizer registers r as the stream's resizer. A stream accepts one
// Resizer for its lifetime; registering a different one fails with
// [ErrConflictingCapability]. Nil is ignored.
func (st *Stream) SetResizer(r Resizer) error {
	s := st.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandle(st.closed); err != nil {
		return err
	}

	return s.registerResizer(r)
}

// OutputView returns a write view sharing this stream's chunks, cursor and
// lifetime, registering r as resizer if non-nil.
//
// It fails with [ErrReadOnly] on a [MapReadOnly] stream. Each view must be
// closed; the store is closed once the stream and all its views are.
func (st *Stream) OutputView(r Resizer) (*OutputView, error) {
	s := st.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mapMode.Writable() {
		return nil, fmt.Errorf("output view on %s stream: %w", s.mapMode, ErrReadOnly)
	}

	if st.closed {
		return nil, ErrClosed
	}

	err := s.acquire(r)
	if err != nil {
		return nil, err
	}

	return &OutputView{s: s}, nil
}

// Close releases this handle. The last handle to close unmaps every chunk,
// syncs the store if writable and closes it. Closing twice is a no-op.
func (st *Stream) Close() error {
	s := st.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if st.closed {
		return nil
	}

	st.closed = true

	return s.releaseRef()
}
