package mapstream

import (
	"fmt"
	"io"
)

// OutputView writes through the chunks of a writable [Stream].
//
// It shares the stream's cursor: a write at the view moves the position the
// stream reads from, and the other way round.
type OutputView struct {
	s      *shared
	closed bool
}

var (
	_ io.Writer     = (*OutputView)(nil)
	_ io.ByteWriter = (*OutputView)(nil)
	_ io.Closer     = (*OutputView)(nil)
)

// Write writes p at the current position, growing the stream through the
// registered [Resizer] if p extends past the end. Without a Resizer such a
// write fails with [ErrUnsupportedResize] and writes nothing.
func (v *OutputView) Write(p []byte) (int, error) {
	s := v.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandle(v.closed); err != nil {
		return 0, err
	}

	return s.write(p)
}

// WriteByte writes one byte, growing the stream if needed.
func (v *OutputView) WriteByte(c byte) error {
	_, err := v.Write([]byte{c})

	return err
}

func (s *shared) write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	pos := s.position()

	end := pos + int64(len(p))
	if end > s.length() {
		err := s.setLength(end)
		if err != nil {
			return 0, fmt.Errorf("grow to %d: %w", end, err)
		}
	}

	n := 0

	for n < len(p) {
		b, ok, err := s.current()
		if err != nil {
			return n, err
		}

		if !ok {
			return n, fmt.Errorf("write %d of %d bytes at %d: %w", n, len(p), s.position(), errInconsistent)
		}

		k := copy(b, p[n:])
		s.cur.off += k
		n += k
	}

	return n, nil
}

// Flush writes dirty pages back and syncs the store.
func (v *OutputView) Flush() error {
	s := v.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandle(v.closed); err != nil {
		return err
	}

	return s.flush()
}

// Position returns the shared absolute position.
func (v *OutputView) Position() (int64, error) {
	s := v.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandle(v.closed); err != nil {
		return 0, err
	}

	return s.position(), nil
}

// SetPosition moves the shared cursor to p within [0, Length].
func (v *OutputView) SetPosition(p int64) error {
	s := v.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandle(v.closed); err != nil {
		return err
	}

	return s.setPosition(p)
}

// Length returns the logical length of the stream.
func (v *OutputView) Length() int64 {
	s := v.s

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.length()
}

// SetLength resizes the stream, see [Stream.SetLength].
func (v *OutputView) SetLength(n int64) error {
	s := v.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkHandle(v.closed); err != nil {
		return err
	}

	return s.setLength(n)
}

// Close releases the view's reference. Closing twice is a no-op.
func (v *OutputView) Close() error {
	s := v.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if v.closed {
		return nil
	}

	v.closed = true

	return s.releaseRef()
}
