package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/mapstream/pkg/mapstream"
)

// WriteCmd returns the write command.
func WriteCmd(e *env) *Command {
	fs := flag.NewFlagSet("write", flag.ContinueOnError)
	offset := fs.Int64("offset", -1, "Write at byte `n` (default: append)")
	stdin := fs.Bool("stdin", false, "Read the data from stdin instead of <data>")

	return &Command{
		Flags: fs,
		Usage: "write [flags] <file> [data]",
		Short: "Write bytes into a file",
		Long: `Write <data> (or stdin with --stdin) into <file> at --offset.

Writing past the end grows the file. The rest of the file is left as is.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			want := 2
			if *stdin {
				want = 1
			}

			if err := requireArgs(args, want, "file and data"); err != nil {
				return err
			}

			var src io.Reader
			if *stdin {
				if e.stdin == nil {
					return fmt.Errorf("%w: no stdin", errInvalidArg)
				}

				src = &ctxReader{ctx: ctx, r: e.stdin}
			} else {
				src = strings.NewReader(args[1])
			}

			return execWrite(e, o, args[0], *offset, src)
		},
	}
}

func execWrite(e *env, o *IO, path string, offset int64, src io.Reader) error {
	st, err := e.open(path, true)
	if err != nil {
		return err
	}

	v, err := st.OutputView(nil)
	if err != nil {
		return finish(o, st, err)
	}

	n, err := writeAt(v, st.Length(), offset, src)

	if closeErr := v.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return finish(o, st, err)
	}

	o.Printf("wrote %d bytes to %s (length %d)\n", n, path, st.Length())

	return finish(o, st, nil)
}

func writeAt(v *mapstream.OutputView, length, offset int64, src io.Reader) (int64, error) {
	if offset < 0 {
		offset = length
	}

	if offset > length {
		return 0, fmt.Errorf("%w: offset %d past end %d", errInvalidArg, offset, length)
	}

	if err := v.SetPosition(offset); err != nil {
		return 0, err
	}

	n, err := io.Copy(v, src)
	if err != nil {
		return n, err
	}

	return n, v.Flush()
}
