package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kobzarvs/qdoc/internal/config"
	"github.com/kobzarvs/qdoc/internal/document"
	"github.com/kobzarvs/qdoc/internal/linestream"
	"github.com/kobzarvs/qdoc/internal/logger"
	"github.com/kobzarvs/qdoc/internal/session"
	"github.com/kobzarvs/qdoc/internal/treesitter"
)

// ErrUsage is returned after usage has been printed for bad arguments.
var ErrUsage = errors.New("usage")

// App is the top-level runtime for qdoc.
type App struct {
	args   []string
	stdout io.Writer
	stderr io.Writer

	cfg      config.Config
	langs    config.Languages
	ts       *treesitter.Engine
	sessions *session.Manager
}

func New(args []string) *App {
	return &App{args: args, stdout: os.Stdout, stderr: os.Stderr}
}

// SetOutput redirects command output and diagnostics.
func (a *App) SetOutput(stdout, stderr io.Writer) {
	a.stdout = stdout
	a.stderr = stderr
}

type command struct {
	name  string
	args  string
	help  string
	watch bool
	run   func(ctx context.Context, args []string) error
}

func (a *App) commands() []command {
	return []command{
		{name: "info", args: "FILE", help: "show format and statistics", run: a.cmdInfo},
		{name: "convert", args: "FILE [-o OUT] [-encoding E] [-eol L] [-bom]", help: "re-encode a file", run: a.cmdConvert},
		{name: "tokens", args: "FILE", help: "print highlight tokens", run: a.cmdTokens},
		{name: "apply", args: "FILE SCRIPT.toml [-dry-run]", help: "run scripted edits and save", run: a.cmdApply},
		{name: "mark", args: "FILE LINE [-kind K] [-note TEXT]", help: "toggle a line marker", run: a.cmdMark},
		{name: "marks", args: "FILE [-kind K] [-near LINE] [-backward]", help: "list line markers", run: a.cmdMarks},
		{name: "watch", args: "FILE", help: "reload the file whenever it changes", watch: true, run: a.cmdWatch},
	}
}

func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext runs the command named by the arguments until it finishes or
// ctx is cancelled.
func (a *App) RunContext(ctx context.Context) error {
	flags := flag.NewFlagSet("qdoc", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	debug := flags.Bool("debug", false, "write debug messages to the log")
	cfgPath := flags.String("config", "", "configuration file")
	flags.Usage = func() { a.usage(flags) }
	if err := flags.Parse(a.args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return ErrUsage
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return ErrUsage
	}

	name := flags.Arg(0)
	for _, cmd := range a.commands() {
		if cmd.name != name {
			continue
		}
		if err := a.setup(*cfgPath, *debug, cmd.watch); err != nil {
			return err
		}
		err := cmd.run(ctx, flags.Args()[1:])
		if serr := a.shutdown(); err == nil {
			err = serr
		}
		return err
	}
	fmt.Fprintf(a.stderr, "qdoc: unknown command %q\n", name)
	flags.Usage()
	return ErrUsage
}

func (a *App) usage(flags *flag.FlagSet) {
	fmt.Fprintln(a.stderr, "usage: qdoc [-debug] [-config PATH] COMMAND ARGS")
	flags.PrintDefaults()
	fmt.Fprintln(a.stderr, "\ncommands:")
	for _, cmd := range a.commands() {
		fmt.Fprintf(a.stderr, "  %-8s %-44s %s\n", cmd.name, cmd.args, cmd.help)
	}
}

func (a *App) setup(cfgPath string, debug, watch bool) error {
	var err error
	if cfgPath != "" {
		a.cfg, err = config.LoadFile(cfgPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := logger.Init(debug); err != nil {
		fmt.Fprintln(a.stderr, "qdoc: logging disabled:", err)
	}
	a.langs, err = config.LoadLanguages()
	if err != nil {
		return err
	}
	a.ts = treesitter.New(a.langs)
	if err := a.ts.Start(); err != nil {
		return err
	}
	return a.startSession(watch)
}

func (a *App) startSession(watch bool) error {
	if !a.cfg.Session.Enabled {
		return nil
	}
	interval, err := a.cfg.AutosaveInterval()
	if err != nil {
		return err
	}
	if !watch {
		interval = 0
	}
	a.sessions, err = session.NewManager("", interval)
	return err
}

func (a *App) shutdown() error {
	var err error
	if a.sessions != nil {
		err = a.sessions.Stop()
		a.sessions = nil
	}
	if a.ts != nil {
		_ = a.ts.Stop()
		a.ts = nil
	}
	logger.Close()
	return err
}

// open loads path into a new buffer with highlighting and remembered
// markers. With allowMissing a file that does not exist yields an empty
// buffer.
func (a *App) open(path string, allowMissing bool) (*document.Buffer, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	buf := document.New(a.cfg.DocumentOptions())
	if a.highlightable(abs) {
		if h := a.ts.Highlighter(abs); h != nil {
			buf.SetHighlighter(h)
		}
	}

	var state session.FileState
	remembered := false
	if a.sessions != nil {
		state, remembered = a.sessions.FileState(abs)
	}
	if err := buf.LoadFile(abs); err != nil {
		if !allowMissing || !errors.Is(err, fs.ErrNotExist) {
			return nil, "", err
		}
		if f, ok := state.Format(); ok {
			buf.SetFormat(f)
		}
	}
	if remembered {
		if err := session.Restore(buf, state); err != nil {
			logger.Warn("markers not restored", "file", abs, "err", err)
		}
	}
	return buf, abs, nil
}

func (a *App) highlightable(path string) bool {
	limit := a.cfg.Document.MaxHighlightBytes
	if limit <= 0 {
		return true
	}
	info, err := os.Stat(path)
	return err != nil || info.Size() <= limit
}

// remember stores the markers and format of buf for the next run.
func (a *App) remember(buf *document.Buffer, abs string) {
	if a.sessions == nil {
		return
	}
	a.sessions.SetFileState(abs, session.Capture(buf))
}

// saveFormat is nil when buf should be written back in its own format.
func (a *App) saveFormat(buf *document.Buffer) (*linestream.Format, error) {
	if a.cfg.Save.KeepFormat && buf.Format().Encoding != linestream.EncodingUnknown {
		return nil, nil
	}
	f, err := a.cfg.SaveFormat()
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// parseArgs parses flags that may appear before, between or after the
// positional arguments.
func parseArgs(flags *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := flags.Parse(args); err != nil {
			return nil, err
		}
		args = flags.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func (a *App) flagSet(name string) *flag.FlagSet {
	flags := flag.NewFlagSet("qdoc "+name, flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	for _, cmd := range a.commands() {
		if cmd.name == name {
			flags.Usage = func() {
				fmt.Fprintf(a.stderr, "usage: qdoc %s %s\n", cmd.name, cmd.args)
				flags.PrintDefaults()
			}
		}
	}
	return flags
}

// positional parses args and checks the positional count.
func (a *App) positional(flags *flag.FlagSet, args []string, n int) ([]string, error) {
	pos, err := parseArgs(flags, args)
	if err != nil {
		return nil, ErrUsage
	}
	if len(pos) != n {
		flags.Usage()
		return nil, ErrUsage
	}
	return pos, nil
}
