package cli

import (
	"context"
	"fmt"
	"strconv"

	flag "github.com/spf13/pflag"
)

// ResizeCmd returns the resize command.
func ResizeCmd(e *env) *Command {
	return &Command{
		Flags: flag.NewFlagSet("resize", flag.ContinueOnError),
		Usage: "resize <file> <length>",
		Short: "Truncate or extend a file",
		Long:  "Set the length of <file> through a read-write stream. New bytes read as zero.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := requireArgs(args, 2, "file and length"); err != nil {
				return err
			}

			n, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || n < 0 {
				return fmt.Errorf("%w: length %q", errInvalidArg, args[1])
			}

			return execResize(e, o, args[0], n)
		},
	}
}

func execResize(e *env, o *IO, path string, n int64) error {
	st, err := e.open(path, true)
	if err != nil {
		return err
	}

	old := st.Length()

	if err := st.SetLength(n); err != nil {
		return finish(o, st, err)
	}

	o.Printf("%s: %d -> %d bytes\n", path, old, n)

	return finish(o, st, nil)
}
