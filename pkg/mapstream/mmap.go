package mapstream

import (
	"errors"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

// mmapMapper maps chunks of an *os.File with mmap-go.
//
// mmap offsets must be page aligned, chunk offsets need not be (chunk sizes
// below the page size are allowed). Each region maps from the page boundary
// below the chunk and exposes the sub-slice the chunk covers.
type mmapMapper struct {
	file     *os.File
	pageSize int64
}

func newMmapMapper(file *os.File) *mmapMapper {
	return &mmapMapper{file: file, pageSize: int64(unix.Getpagesize())}
}

func (m *mmapMapper) Map(mode MapMode, offset int64, length int) (Region, error) {
	prot := mmap.RDONLY

	switch mode {
	case MapReadWrite:
		prot = mmap.RDWR
	case MapPrivate:
		prot = mmap.COPY
	}

	delta := offset % m.pageSize

	mm, err := mmap.MapRegion(m.file, length+int(delta), prot, 0, offset-delta)
	if err != nil {
		return nil, err
	}

	return &mmapRegion{mm: mm, data: mm[delta : delta+int64(length)]}, nil
}

// mmapRegion is one mapping. data aliases mm.
type mmapRegion struct {
	mm   mmap.MMap
	data []byte
}

func (r *mmapRegion) Bytes() []byte {
	return r.data
}

// Flush msyncs the mapping.
func (r *mmapRegion) Flush() error {
	return r.mm.Flush()
}

// Close unmaps. Calling it twice is a no-op.
func (r *mmapRegion) Close() error {
	if r.mm == nil {
		return nil
	}

	err := r.mm.Unmap()
	r.mm = nil
	r.data = nil

	return err
}

var errForeignRegion = errors.New("region was not created by mmapMapper")

// mmapReleaser unmaps regions immediately.
type mmapReleaser struct{}

func (mmapReleaser) Release(r Region) error {
	mr, ok := r.(*mmapRegion)
	if !ok {
		return fmt.Errorf("%T: %w", r, errForeignRegion)
	}

	return mr.Close()
}

// Probe maps and unmaps one anonymous page to confirm munmap is usable.
func (mmapReleaser) Probe() bool {
	b, err := unix.Mmap(-1, 0, unix.Getpagesize(), unix.PROT_READ, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return false
	}

	return unix.Munmap(b) == nil
}
