package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"
)

// ExportCmd returns the export command.
func ExportCmd(e *env) *Command {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	rng := addRangeFlags(fs)
	out := fs.StringP("out", "o", "", "Destination `path` (required)")

	return &Command{
		Flags: fs,
		Usage: "export -o <path> [flags] <file>",
		Short: "Copy a byte range to another file",
		Long: `Copy a byte range of <file> to <path>.

The destination is written to a temporary file and renamed into place, so
readers never see a partial copy.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := requireArgs(args, 1, "file"); err != nil {
				return err
			}

			if *out == "" {
				return fmt.Errorf("%w: --out", errMissingArg)
			}

			return execExport(ctx, e, o, args[0], e.resolve(*out), rng)
		},
	}
}

func execExport(ctx context.Context, e *env, o *IO, path, dest string, rng *rangeFlags) error {
	st, err := e.open(path, false)
	if err != nil {
		return err
	}

	r, n, err := rng.reader(ctx, st)
	if err != nil {
		return finish(o, st, err)
	}

	if err := e.fs.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return finish(o, st, err)
	}

	if err := atomic.WriteFile(dest, r); err != nil {
		return finish(o, st, fmt.Errorf("export to %s: %w", dest, err))
	}

	o.Printf("exported %d bytes to %s\n", n, dest)

	return finish(o, st, nil)
}
