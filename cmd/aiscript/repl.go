package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/aiscript/compiler"
	"github.com/chazu/aiscript/vm"
)

const (
	historyFile = ".aiscript_history"
	promptMain  = ">> "
	promptCont  = ".. "
)

func cmdRepl(args []string) int {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	var o options
	o.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	m := project()
	configureLogging(m, &o)

	// REPL input is short-lived; skip the cache.
	o.noCache = true
	s := newSession(m, &o)
	defer s.close()

	fmt.Println("aiscript REPL (type :help for commands, :quit to exit)")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		code, ok := readInput(ln)
		if !ok {
			fmt.Println()
			return 0
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			if quit := handleREPLCommand(s.vm, trimmed); quit {
				return 0
			}
			continue
		}
		evalAndPrint(s.vm, code)
	}
}

// readInput prompts until the accumulated lines compile or fail for a
// reason other than running out of input.
func readInput(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			return src, true
		}
		if _, err := compiler.Parse(src); err != nil && incomplete(err) {
			continue
		}
		return src, true
	}
}

// incomplete reports whether a parse failed only because input ended early.
func incomplete(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "end of input") || strings.Contains(msg, "unterminated")
}

func evalAndPrint(v *vm.VM, code string) {
	prog, err := v.Compile(code)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}

	ctx, stop := signalContext()
	defer stop()
	result, err := v.Run(ctx, prog)
	if err != nil {
		var raised *vm.RaisedError
		if errors.As(err, &raised) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", raised.Text)
			return
		}
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Interrupted")
			return
		}
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if !result.IsNil() {
		fmt.Println(v.Format(result))
	}
}

// handleREPLCommand handles REPL meta-commands. It reports whether the
// REPL should exit.
func handleREPLCommand(v *vm.VM, cmd string) bool {
	switch strings.ToLower(cmd) {
	case ":help", ":h", ":?":
		fmt.Println("REPL Commands:")
		fmt.Println("  :help, :h, :?     Show this help")
		fmt.Println("  :globals          List defined globals")
		fmt.Println("  :heap             Show heap statistics")
		fmt.Println("  :gc               Run a garbage collection")
		fmt.Println("  :quit, :q         Exit REPL")
	case ":globals":
		for _, name := range v.Globals() {
			val, _ := v.Global(name)
			fmt.Printf("  %s = %s\n", name, v.Format(val))
		}
	case ":heap":
		printHeap(v)
	case ":gc":
		v.Collect()
		printHeap(v)
	case ":quit", ":q", ":exit":
		return true
	default:
		fmt.Printf("Unknown command %s. Type :help for commands.\n", cmd)
	}
	return false
}

func printHeap(v *vm.VM) {
	st := v.HeapStats()
	fmt.Printf("  objects: %d, bytes: %d, next gc: %d, collections: %d, freed: %d\n",
		st.Objects, st.Bytes, st.NextGC, st.Collections, st.Freed)
}
