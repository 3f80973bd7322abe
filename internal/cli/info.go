package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// InfoCmd returns the info command.
func InfoCmd(e *env) *Command {
	return &Command{
		Flags: flag.NewFlagSet("info", flag.ContinueOnError),
		Usage: "info <file>",
		Short: "Show stream diagnostics",
		Long:  "Map <file> with the configured options and print the stream's diagnostic snapshot.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := requireArgs(args, 1, "file"); err != nil {
				return err
			}

			return execInfo(e, o, args[0])
		},
	}
}

func execInfo(e *env, o *IO, path string) error {
	st, err := e.open(path, false)
	if err != nil {
		return err
	}

	o.Println("file:", e.resolve(path))

	return finish(o, st, st.Dump(o.Out(), ""))
}
