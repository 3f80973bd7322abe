package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/mapstream/internal/config"
	"github.com/calvinalkan/mapstream/pkg/fs"
)

var (
	errMissingArg  = errors.New("missing argument")
	errTooManyArgs = errors.New("too many arguments")
	errInvalidArg  = errors.New("invalid argument")
)

// env is what every command needs besides its own flags.
type env struct {
	cfg     config.Config
	fs      fs.FS
	log     *slog.Logger
	workDir string
	stdin   io.Reader
	history string
}

// Run is the main entry point. Returns exit code.
//
// sigCh may be nil. A signal on it cancels the running command's context.
func Run(stdin io.Reader, out io.Writer, errOut io.Writer, args []string, environ map[string]string, sigCh <-chan os.Signal) int {
	globals := newGlobalFlags()

	if len(args) > 0 {
		args = args[1:]
	}

	if err := globals.set.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(out, globals.set)

			return 0
		}

		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut, globals.set)

		return 1
	}

	rest := globals.set.Args()
	if len(rest) == 0 {
		printUsage(out, globals.set)

		return 0
	}

	cfg, err := config.Load(config.Input{
		WorkDir:    globals.workDir,
		ConfigPath: globals.configPath,
		Overrides:  globals.overrides(),
		Env:        environ,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	level := slog.LevelInfo
	if globals.debug {
		level = slog.LevelDebug
	}

	e := &env{
		cfg:     cfg,
		fs:      fs.NewReal(),
		log:     slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level})),
		workDir: globals.workDir,
		stdin:   stdin,
		history: historyPath(environ),
	}

	commands := allCommands(e)

	name := rest[0]

	cmd, ok := commands[name]
	if !ok {
		fprintln(errOut, "error: unknown command:", name)
		printUsage(errOut, globals.set)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	return cmd.Run(ctx, NewIO(out, errOut), rest[1:])
}

func allCommands(e *env) map[string]*Command {
	list := commandList(e)

	m := make(map[string]*Command, len(list))
	for _, c := range list {
		m[c.Name()] = c
	}

	return m
}

func commandList(e *env) []*Command {
	return []*Command{
		InfoCmd(e),
		CatCmd(e),
		ExportCmd(e),
		SumCmd(e),
		ChunksCmd(e),
		ResizeCmd(e),
		WriteCmd(e),
		ShellCmd(e),
		PrintConfigCmd(e),
	}
}

type globalFlags struct {
	set *flag.FlagSet

	workDir    string
	configPath string
	debug      bool

	chunkShift     int
	cacheMode      string
	mapMode        string
	shadowCapacity int
	lock           bool
}

func newGlobalFlags() *globalFlags {
	g := &globalFlags{set: flag.NewFlagSet("mapstream", flag.ContinueOnError)}

	g.set.SetOutput(io.Discard)
	g.set.SetInterspersed(false)

	g.set.StringVarP(&g.workDir, "cwd", "C", "", "Run as if started in `dir`")
	g.set.StringVarP(&g.configPath, "config", "c", "", "Use specified config `file`")
	g.set.BoolVar(&g.debug, "debug", false, "Log chunk mapping events to stderr")
	g.set.IntVar(&g.chunkShift, "chunk-shift", 0, "Chunk size as a power of two")
	g.set.StringVar(&g.cacheMode, "cache-mode", "", "soft-evict, no-evict or hard-evict")
	g.set.StringVar(&g.mapMode, "map-mode", "", "read-only, read-write or private")
	g.set.IntVar(&g.shadowCapacity, "shadow-capacity", 0, "Soft-evicted chunks kept for resurrection")
	g.set.BoolVar(&g.lock, "lock", false, "Hold an advisory lock on <file>.lock")

	return g
}

// overrides returns a layer holding only the flags set on the command line.
func (g *globalFlags) overrides() config.Layer {
	var l config.Layer

	if g.set.Changed("chunk-shift") {
		l.ChunkShift = &g.chunkShift
	}

	if g.set.Changed("cache-mode") {
		l.CacheMode = &g.cacheMode
	}

	if g.set.Changed("map-mode") {
		l.MapMode = &g.mapMode
	}

	if g.set.Changed("shadow-capacity") {
		l.ShadowCapacity = &g.shadowCapacity
	}

	if g.set.Changed("lock") {
		l.Lock = &g.lock
	}

	return l
}

func historyPath(environ map[string]string) string {
	if home := environ["HOME"]; home != "" {
		return filepath.Join(home, ".mapstream_history")
	}

	return ""
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, set *flag.FlagSet) {
	fprintln(w, `mapstream - chunked memory-mapped file streams

Usage: mapstream [global flags] <command> [flags] [args]

Global flags:`)

	var buf strings.Builder

	set.SetOutput(&buf)
	set.PrintDefaults()
	set.SetOutput(io.Discard)

	_, _ = io.WriteString(w, buf.String())

	fprintln(w)
	fprintln(w, "Commands:")

	for _, c := range commandList(&env{}) {
		fprintln(w, c.HelpLine())
	}
}
