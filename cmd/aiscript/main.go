// aiscript CLI - runs, disassembles and interactively evaluates aiscript programs
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/aiscript/manifest"
	"github.com/chazu/aiscript/pkg/bytecode"
	"github.com/chazu/aiscript/pkg/chunkcache"
	"github.com/chazu/aiscript/vm"
)

var log = commonlog.GetLogger("aiscript.cmd")

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	cmd := "repl"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var code int
	switch cmd {
	case "run":
		code = cmdRun(args)
	case "disasm":
		code = cmdDisasm(args)
	case "repl":
		code = cmdRepl(args)
	case "init":
		code = cmdInit(args)
	case "cache":
		code = cmdCache(args)
	case "help", "-h", "--help":
		usage()
	default:
		// A bare path runs the file.
		if _, err := os.Stat(cmd); err == nil {
			code = cmdRun(append([]string{cmd}, args...))
			break
		}
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		code = 2
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: aiscript <command> [options] [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  run [file]        Run a script (default: the project entry from aiscript.toml)\n")
	fmt.Fprintf(os.Stderr, "  disasm <file>     Print the compiled bytecode of a script\n")
	fmt.Fprintf(os.Stderr, "  repl              Start the interactive REPL (default)\n")
	fmt.Fprintf(os.Stderr, "  init [name]       Write an aiscript.toml in the current directory\n")
	fmt.Fprintf(os.Stderr, "  cache stats|clear Inspect or empty the compiled program cache\n")
	fmt.Fprintf(os.Stderr, "\nRun 'aiscript <command> -h' for command options.\n")
}

// options are the flags shared by commands that execute code.
type options struct {
	verbosity int
	logFile   string
	noCache   bool
	gcStress  bool
}

func (o *options) register(fs *flag.FlagSet) {
	fs.IntVar(&o.verbosity, "v", 0, "Log verbosity (0 = warnings, 1 = info, 2 = debug)")
	fs.StringVar(&o.logFile, "log", "", "Log to this file instead of stderr")
	fs.BoolVar(&o.noCache, "no-cache", false, "Do not use the compiled program cache")
	fs.BoolVar(&o.gcStress, "gc-stress", false, "Collect garbage at every instruction")
}

// project loads the manifest nearest to the working directory, if any.
func project() *manifest.Manifest {
	wd, err := os.Getwd()
	if err != nil {
		return nil
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return nil
	}
	return m
}

// configureLogging applies flags over the manifest [log] section.
func configureLogging(m *manifest.Manifest, o *options) {
	verbosity := o.verbosity
	path := o.logFile
	if m != nil {
		if verbosity == 0 {
			verbosity = m.Log.Verbosity
		}
		if path == "" {
			path = m.LogPath()
		}
	}
	if path == "" {
		commonlog.Configure(verbosity, nil)
		return
	}
	commonlog.Configure(verbosity, &path)
}

// session bundles a VM with its optional program cache.
type session struct {
	vm    *vm.VM
	cache *chunkcache.Cache
}

func newSession(m *manifest.Manifest, o *options) *session {
	cfg := vm.DefaultConfig()
	if m != nil {
		cfg = m.VMConfig()
	}
	if o.gcStress {
		cfg.GCStress = true
	}
	s := &session{vm: vm.New(cfg)}

	if m != nil && m.CacheEnabled() && !o.noCache {
		c, err := chunkcache.Open(m.CachePath())
		if err != nil {
			log.Warningf("program cache disabled: %s", err)
		} else {
			s.cache = c
		}
	}
	return s
}

func (s *session) close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

func (s *session) compile(source string) (*bytecode.Program, error) {
	if s.cache == nil {
		return s.vm.Compile(source)
	}
	return s.cache.Compile(source, s.vm.NativeSignature(), s.vm.Compile)
}

// signalContext is cancelled on the first interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var o options
	o.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	m := project()
	configureLogging(m, &o)

	var path string
	switch {
	case fs.NArg() > 0:
		path = fs.Arg(0)
	case m != nil:
		path = m.EntryPath()
	default:
		fmt.Fprintln(os.Stderr, "Error: no script given and no aiscript.toml found")
		return 2
	}

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	s := newSession(m, &o)
	defer s.close()

	prog, err := s.compile(string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(path), err)
		return 65
	}

	ctx, stop := signalContext()
	defer stop()
	if _, err := s.vm.Run(ctx, prog); err != nil {
		return reportRunError(err)
	}
	return 0
}

// reportRunError prints a failed run and picks the exit status.
func reportRunError(err error) int {
	var raised *vm.RaisedError
	if errors.As(err, &raised) {
		fmt.Fprintf(os.Stderr, "Error: %s\n", raised.Text)
		return 1
	}
	fmt.Fprintln(os.Stderr, err)
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return 70
}

func cmdDisasm(args []string) int {
	fs := flag.NewFlagSet("disasm", flag.ContinueOnError)
	var o options
	o.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: aiscript disasm <file>")
		return 2
	}
	configureLogging(nil, &o)

	source, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	prog, err := vm.New(vm.DefaultConfig()).Compile(string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(fs.Arg(0)), err)
		return 65
	}
	fmt.Print(prog.Disassemble())
	return 0
}

func cmdInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	entry := fs.String("entry", "main.ais", "Entry script")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if _, err := os.Stat(filepath.Join(wd, manifest.FileName)); err == nil {
		fmt.Fprintf(os.Stderr, "Error: %s already exists\n", manifest.FileName)
		return 1
	}

	name := filepath.Base(wd)
	if fs.NArg() > 0 {
		name = fs.Arg(0)
	}
	m := &manifest.Manifest{Project: manifest.Project{Name: name, Entry: *entry}}
	if err := manifest.Write(wd, m); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Wrote %s for project %s\n", manifest.FileName, name)
	return 0
}

func cmdCache(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: aiscript cache stats|clear")
		return 2
	}
	m := project()
	if m == nil {
		fmt.Fprintf(os.Stderr, "Error: no %s found\n", manifest.FileName)
		return 1
	}
	c, err := chunkcache.Open(m.CachePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer c.Close()

	switch args[0] {
	case "stats":
		st, err := c.Stats()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("%s: %d programs, %d bytes\n", c.Path(), st.Entries, st.Bytes)
	case "clear":
		if err := c.Clear(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("Cleared %s\n", c.Path())
	default:
		fmt.Fprintf(os.Stderr, "unknown cache command %q\n", args[0])
		return 2
	}
	return 0
}
