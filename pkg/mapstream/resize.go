package mapstream

import "fmt"

// notifyLengthChange rebuilds the slot table for length n.
//
// Slots below the old last chunk carry over untouched. The old last slot is
// always released, growing or shrinking, since its capacity depended on the
// old length. Release failures never abort the rebuild.
func (s *shared) notifyLengthChange(n int64) error {
	t := s.table

	if n < 0 {
		return fmt.Errorf("length %d: %w", n, ErrInvalidArgument)
	}

	if n == t.length {
		return nil
	}

	if n == 0 {
		t.releaseAll()
		t.length = 0
		t.slots = []slot{{strong: placeholder}}
		s.cur = cursor{}
		s.mark = -1

		s.log.Debug("stream truncated to zero")

		return nil
	}

	count, err := t.countFor(n)
	if err != nil {
		return err
	}

	pos := s.position()
	old := t.slots
	slots := make([]slot, count)
	keep := min(count, len(old)-1)

	copy(slots, old[:keep])

	for i := keep; i < len(old); i++ {
		t.release(i)
	}

	s.log.Debug("stream resized",
		"old_length", t.length, "new_length", n,
		"old_chunks", len(old), "new_chunks", count, "kept", keep)

	t.slots = slots
	t.length = n

	if s.mark > n {
		s.mark = -1
	}

	target := min(pos, n)

	// The old cursor chunk may be gone; start from the target so
	// setPosition has nothing to evict.
	if s.cur.chunk >= count {
		s.cur = s.cursorFor(target)
	}

	return s.setPosition(target)
}

// setLength resizes the backing store through the registered Resizer and
// rebuilds the table.
func (s *shared) setLength(n int64) error {
	if s.resizer == nil {
		return ErrUnsupportedResize
	}

	if n < 0 {
		return fmt.Errorf("length %d: %w", n, ErrInvalidArgument)
	}

	size, err := s.store.Size()
	if err != nil {
		return fmt.Errorf("%w: store size: %w", ErrMapping, err)
	}

	if size != n {
		err = s.resizer.SetLength(n)
		if err != nil {
			return fmt.Errorf("%w: resize to %d: %w", ErrMapping, n, err)
		}
	}

	return s.notifyLengthChange(n)
}
