package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/mapstream/pkg/mapstream"
)

// open maps path with the configured options. Writable streams are always
// mapped read-write and resizable, whatever the configured map mode.
func (e *env) open(path string, writable bool) (*mapstream.Stream, error) {
	opts, err := e.cfg.FileOptions()
	if err != nil {
		return nil, err
	}

	opts.FS = e.fs
	opts.Logger = e.log

	if writable {
		opts.MapMode = mapstream.MapReadWrite
		opts.Resizable = true
	}

	return mapstream.Open(e.resolve(path), opts)
}

// resolve makes path relative to the -C directory.
func (e *env) resolve(path string) string {
	if e.workDir == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(e.workDir, path)
}

// finish closes st and warns if the stream could not honour hard-evict.
func finish(o *IO, st *mapstream.Stream, err error) error {
	if st.Stats().Downgrades > 0 {
		o.Warn("hard-evict unavailable", "chunks were soft-evicted instead, use --cache-mode=soft-evict to silence this")
	}

	return errors.Join(err, st.Close())
}

// rangeFlags selects a byte range of a stream.
type rangeFlags struct {
	offset int64
	length int64
}

func addRangeFlags(set *flag.FlagSet) *rangeFlags {
	r := &rangeFlags{}

	set.Int64Var(&r.offset, "offset", 0, "Start at byte `n`")
	set.Int64Var(&r.length, "length", -1, "Read at most `n` bytes (default: to the end)")

	return r
}

// reader positions st at the range start and returns a reader over the range
// and its size.
func (r *rangeFlags) reader(ctx context.Context, st *mapstream.Stream) (io.Reader, int64, error) {
	if r.offset < 0 || r.offset > st.Length() {
		return nil, 0, fmt.Errorf("%w: offset %d outside [0, %d]", errInvalidArg, r.offset, st.Length())
	}

	if err := st.SetPosition(r.offset); err != nil {
		return nil, 0, err
	}

	n := st.Length() - r.offset
	if r.length >= 0 {
		n = min(n, r.length)
	}

	return &ctxReader{ctx: ctx, r: io.LimitReader(st, n)}, n, nil
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
