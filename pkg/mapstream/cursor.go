package mapstream

import "fmt"

// cursor is the stream position as (chunk index, offset within chunk).
//
// The end of the stream is represented as one past the end of the last chunk:
// chunk == last, off == capacity(last). This holds for length 0 too.
type cursor struct {
	chunk int
	off   int
}

func (s *shared) length() int64 {
	return s.table.length
}

func (s *shared) position() int64 {
	return int64(s.cur.chunk)<<s.table.shift + int64(s.cur.off)
}

func (s *shared) remaining() int64 {
	return s.table.length - s.position()
}

// setPosition moves the cursor to p and maps the chunk under it. The previous
// chunk is evicted if the cursor left it.
//
// The cursor moves even if mapping fails, so position stays within bounds
// and the next access retries the map.
func (s *shared) setPosition(p int64) error {
	t := s.table
	if p < 0 || p > t.length {
		return fmt.Errorf("position %d outside [0, %d]: %w", p, t.length, ErrInvalidArgument)
	}

	prev := s.cur.chunk
	s.cur = s.cursorFor(p)

	_, err := t.get(s.cur.chunk)
	if err != nil {
		return err
	}

	if prev != s.cur.chunk && prev < len(t.slots) {
		t.evict(prev)
	}

	return nil
}

// cursorFor converts an in-range position to a cursor.
func (s *shared) cursorFor(p int64) cursor {
	t := s.table
	if p == t.length {
		last := t.last()

		return cursor{chunk: last, off: t.capacity(last)}
	}

	return cursor{chunk: int(p >> t.shift), off: int(p & (t.chunkSize() - 1))}
}

// advance moves the cursor to offset 0 of the next chunk, evicting the
// current one. It returns false if the cursor is already in the last chunk.
func (s *shared) advance() (bool, error) {
	t := s.table
	if s.cur.chunk >= t.last() {
		return false, nil
	}

	t.evict(s.cur.chunk)
	s.cur = cursor{chunk: s.cur.chunk + 1}

	_, err := t.get(s.cur.chunk)
	if err != nil {
		return false, err
	}

	return true, nil
}

// current returns the readable bytes of the chunk under the cursor from the
// cursor on, advancing first if the cursor sits at the end of a chunk that is
// not the last one. ok is false at EOF.
func (s *shared) current() (b []byte, ok bool, err error) {
	c, err := s.table.get(s.cur.chunk)
	if err != nil {
		return nil, false, err
	}

	for s.cur.off >= s.table.capacity(s.cur.chunk) {
		ok, err = s.advance()
		if err != nil || !ok {
			return nil, false, err
		}

		c, err = s.table.get(s.cur.chunk)
		if err != nil {
			return nil, false, err
		}
	}

	return s.table.view(s.cur.chunk, c)[s.cur.off:], true, nil
}
