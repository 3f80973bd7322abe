package cli

import (
	"context"
	"encoding/hex"
	"errors"
	"io"

	flag "github.com/spf13/pflag"
)

// CatCmd returns the cat command.
func CatCmd(e *env) *Command {
	fs := flag.NewFlagSet("cat", flag.ContinueOnError)
	rng := addRangeFlags(fs)
	asHex := fs.Bool("hex", false, "Print a hex dump instead of raw bytes")

	return &Command{
		Flags: fs,
		Usage: "cat [flags] <file>",
		Short: "Print a byte range",
		Long:  "Stream a byte range of <file> to stdout, chunk by chunk.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := requireArgs(args, 1, "file"); err != nil {
				return err
			}

			return execCat(ctx, e, o, args[0], rng, *asHex)
		},
	}
}

func execCat(ctx context.Context, e *env, o *IO, path string, rng *rangeFlags, asHex bool) error {
	st, err := e.open(path, false)
	if err != nil {
		return err
	}

	r, _, err := rng.reader(ctx, st)
	if err != nil {
		return finish(o, st, err)
	}

	if !asHex {
		_, err = io.Copy(o.Out(), r)

		return finish(o, st, err)
	}

	dumper := hex.Dumper(o.Out())
	_, err = io.Copy(dumper, r)

	return finish(o, st, errors.Join(err, dumper.Close()))
}
