package cli

import (
	"context"
	"io"

	"github.com/cespare/xxhash/v2"
	flag "github.com/spf13/pflag"
)

// SumCmd returns the sum command.
func SumCmd(e *env) *Command {
	fs := flag.NewFlagSet("sum", flag.ContinueOnError)
	rng := addRangeFlags(fs)

	return &Command{
		Flags: fs,
		Usage: "sum [flags] <file>",
		Short: "Print the xxhash64 of a byte range",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := requireArgs(args, 1, "file"); err != nil {
				return err
			}

			return execSum(ctx, e, o, args[0], rng)
		},
	}
}

func execSum(ctx context.Context, e *env, o *IO, path string, rng *rangeFlags) error {
	st, err := e.open(path, false)
	if err != nil {
		return err
	}

	r, n, err := rng.reader(ctx, st)
	if err != nil {
		return finish(o, st, err)
	}

	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return finish(o, st, err)
	}

	o.Printf("%016x  %d bytes  %s\n", h.Sum64(), n, path)

	return finish(o, st, nil)
}
