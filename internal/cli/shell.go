package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/mapstream/pkg/mapstream"
)

var errQuit = errors.New("quit")

// ShellCmd returns the shell command.
func ShellCmd(e *env) *Command {
	fs := flag.NewFlagSet("shell", flag.ContinueOnError)
	writable := fs.BoolP("write", "w", false, "Map read-write so resize and write work")

	return &Command{
		Flags: fs,
		Usage: "shell [flags] <file>",
		Short: "Explore a stream interactively",
		Long: `Open <file> and read commands from the terminal (or stdin when it is not a
terminal). Type 'help' for the command list.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := requireArgs(args, 1, "file"); err != nil {
				return err
			}

			st, err := e.open(args[0], *writable)
			if err != nil {
				return err
			}

			sh := &shell{st: st, out: o.Out(), writable: *writable}

			if f, ok := e.stdin.(*os.File); ok && f == os.Stdin {
				err = sh.interactive(ctx, e.history)
			} else {
				err = sh.script(ctx, e.stdin)
			}

			return finish(o, st, err)
		},
	}
}

// shell runs line commands against one stream.
type shell struct {
	st       *mapstream.Stream
	out      io.Writer
	writable bool
}

var shellCommands = []string{
	"pos", "seek", "read", "skip", "mark", "reset",
	"info", "resize", "write", "help", "quit", "exit",
}

func (sh *shell) interactive(ctx context.Context, history string) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(s string) []string {
		var out []string

		for _, c := range shellCommands {
			if strings.HasPrefix(c, strings.ToLower(s)) {
				out = append(out, c)
			}
		}

		return out
	})

	if history != "" {
		if f, err := os.Open(history); err == nil {
			_, _ = line.ReadHistory(f)
			_ = f.Close()
		}

		defer func() {
			if f, err := os.Create(history); err == nil {
				_, _ = line.WriteHistory(f)
				_ = f.Close()
			}
		}()
	}

	fmt.Fprintf(sh.out, "mapstream shell (length %d). Type 'help' for commands.\n", sh.st.Length())

	for ctx.Err() == nil {
		input, err := line.Prompt("mapstream> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		if sh.exec(input) {
			return nil
		}
	}

	return ctx.Err()
}

func (sh *shell) script(ctx context.Context, r io.Reader) error {
	if r == nil {
		return nil
	}

	sc := bufio.NewScanner(r)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if sh.exec(sc.Text()) {
			return nil
		}
	}

	return sc.Err()
}

// exec runs one line and prints its result or error. It reports whether the
// shell should exit.
func (sh *shell) exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	err := sh.run(strings.ToLower(fields[0]), fields[1:], line)
	if errors.Is(err, errQuit) {
		return true
	}

	if err != nil {
		fmt.Fprintln(sh.out, "error:", err)
	}

	return false
}

func (sh *shell) run(cmd string, args []string, line string) error {
	switch cmd {
	case "quit", "exit", "q":
		return errQuit
	case "help", "?":
		sh.help()

		return nil
	case "pos":
		return sh.printPosition()
	case "seek":
		n, err := intArg(args)
		if err != nil {
			return err
		}

		if err := sh.st.SetPosition(n); err != nil {
			return err
		}

		return sh.printPosition()
	case "skip":
		n, err := intArg(args)
		if err != nil {
			return err
		}

		skipped, err := sh.st.Skip(n)
		if err != nil {
			return err
		}

		fmt.Fprintf(sh.out, "skipped %d\n", skipped)

		return nil
	case "read":
		n, err := intArg(args)
		if err != nil {
			return err
		}

		return sh.read(n)
	case "mark":
		sh.st.Mark()

		return sh.printPosition()
	case "reset":
		if err := sh.st.Reset(); err != nil {
			return err
		}

		return sh.printPosition()
	case "info":
		return sh.st.Dump(sh.out, "")
	case "resize":
		n, err := intArg(args)
		if err != nil {
			return err
		}

		if err := sh.st.SetLength(n); err != nil {
			return err
		}

		fmt.Fprintf(sh.out, "length %d\n", sh.st.Length())

		return nil
	case "write":
		return sh.write(line)
	default:
		return fmt.Errorf("unknown command %q (type 'help' for commands)", cmd)
	}
}

func (sh *shell) printPosition() error {
	pos, err := sh.st.Position()
	if err != nil {
		return err
	}

	fmt.Fprintf(sh.out, "position %d of %d\n", pos, sh.st.Length())

	return nil
}

func (sh *shell) read(n int64) error {
	if n < 0 {
		return fmt.Errorf("%w: negative count", errInvalidArg)
	}

	buf := make([]byte, min(n, 1<<20))

	k, err := io.ReadFull(sh.st, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return err
	}

	fmt.Fprintf(sh.out, "%q\n", buf[:k])

	return nil
}

// write writes the rest of the line after the command word at the cursor.
func (sh *shell) write(line string) error {
	if !sh.writable {
		return fmt.Errorf("stream is read-only, restart with --write: %w", mapstream.ErrReadOnly)
	}

	_, data, _ := strings.Cut(strings.TrimLeft(line, " \t"), " ")

	v, err := sh.st.OutputView(nil)
	if err != nil {
		return err
	}

	n, err := v.Write([]byte(data))

	if closeErr := v.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return err
	}

	fmt.Fprintf(sh.out, "wrote %d\n", n)

	return nil
}

func (sh *shell) help() {
	fmt.Fprintln(sh.out, `Commands:
  pos              Show the cursor position
  seek <n>         Move the cursor to byte n
  skip <n>         Move the cursor by n bytes (may be negative)
  read <n>         Read up to n bytes at the cursor
  mark             Remember the cursor position
  reset            Return to the marked position
  info             Show stream diagnostics
  resize <n>       Set the length (needs --write)
  write <text>     Write text at the cursor (needs --write)
  help             Show this help
  quit             Exit`)
}

func intArg(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: expected one number", errInvalidArg)
	}

	n, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errInvalidArg, args[0])
	}

	return n, nil
}
