package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/restic/chunker"
	flag "github.com/spf13/pflag"
)

// defaultPol is the polynomial used when --pol is not given.
const defaultPol = chunker.Pol(0x3DA3358B4DC173)

// ChunksCmd returns the chunks command.
func ChunksCmd(e *env) *Command {
	fs := flag.NewFlagSet("chunks", flag.ContinueOnError)
	rng := addRangeFlags(fs)
	pol := fs.String("pol", strconv.FormatUint(uint64(defaultPol), 16), "Irreducible rabin `polynomial` in hex")
	minSize := fs.Uint("min", chunker.MinSize, "Minimum chunk size in bytes")
	maxSize := fs.Uint("max", chunker.MaxSize, "Maximum chunk size in bytes")

	return &Command{
		Flags: fs,
		Usage: "chunks [flags] <file>",
		Short: "List content-defined chunk boundaries",
		Long: `Split a byte range of <file> into content-defined chunks and print one
line per chunk: start offset, length and xxhash64.

The boundaries depend only on content, so an insertion shifts at most the
chunks around it.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := requireArgs(args, 1, "file"); err != nil {
				return err
			}

			p, err := parsePol(*pol)
			if err != nil {
				return err
			}

			if *minSize == 0 || *minSize > *maxSize {
				return fmt.Errorf("%w: --min must be within [1, --max]", errInvalidArg)
			}

			return execChunks(ctx, e, o, args[0], rng, p, *minSize, *maxSize)
		},
	}
}

func parsePol(s string) (chunker.Pol, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: --pol %q: %w", errInvalidArg, s, err)
	}

	p := chunker.Pol(v)
	if !p.Irreducible() {
		return 0, fmt.Errorf("%w: --pol %q is not irreducible", errInvalidArg, s)
	}

	return p, nil
}

func execChunks(ctx context.Context, e *env, o *IO, path string, rng *rangeFlags, pol chunker.Pol, minSize, maxSize uint) error {
	st, err := e.open(path, false)
	if err != nil {
		return err
	}

	r, _, err := rng.reader(ctx, st)
	if err != nil {
		return finish(o, st, err)
	}

	c := chunker.NewWithBoundaries(r, pol, minSize, maxSize)
	buf := make([]byte, maxSize)

	var count int

	for {
		chunk, err := c.Next(buf)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return finish(o, st, err)
		}

		o.Printf("%12d %10d %016x\n", rng.offset+int64(chunk.Start), chunk.Length, xxhash.Sum64(chunk.Data))

		count++
	}

	o.Printf("%d chunks\n", count)

	return finish(o, st, nil)
}
