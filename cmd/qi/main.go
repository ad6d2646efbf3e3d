package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	qi "github.com/sanohiro/qi-lang-sub002"
)

const (
	appName     = "qi"
	historyFile = ".qi_history"
	promptMain  = "qi> "
	promptCont  = "... "
)

var (
	banner   = fmt.Sprintf("Qi %s REPL\nCtrl+C cancels input, Ctrl+D exits. Type :quit to exit.", qi.Version)
	helpText = `
REPL commands:
  :help    Show this help
  :quit    Exit the REPL

(doc name) prints the docstring of a builtin, e.g. (doc pmap).
`
)

func red(s string) string  { return "\x1b[31m" + s + "\x1b[0m" }
func blue(s string) string { return "\x1b[94m" + s + "\x1b[0m" }

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch cmd := os.Args[1]; cmd {
	case "run":
		os.Exit(cmdRun(os.Args[2:]))
	case "repl":
		os.Exit(cmdRepl(os.Args[2:]))
	case "version":
		fmt.Println(qi.Version)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", appName, cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Printf(`Qi %s

Usage:
  %s run [-v] <file.qi> [--] [args...]   Run a script (args land in *argv*).
  %s repl [-v]                           Start the REPL.
  %s version                             Print the version.

-v raises runtime logging to debug.
`, qi.Version, appName, appName, appName)
}

// -----------------------------------------------------------------------------
// run
// -----------------------------------------------------------------------------

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "verbose runtime logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Fprintf(os.Stderr, "usage: %s run [-v] <file.qi> [--] [args...]\n", appName)
		return 2
	}
	if *verbose {
		_ = qi.SetLogLevel("debug")
	}

	file := rest[0]
	argv := rest[1:]
	if len(argv) > 0 && argv[0] == "--" {
		argv = argv[1:]
	}

	src, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, file, err)
		return 1
	}

	ip := qi.NewRuntime()
	ip.Global.Define("*argv*", qi.Vec(strVals(argv)))

	if _, err := ip.EvalSourceNamed(file, string(src)); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return 1
	}
	return 0
}

func strVals(xs []string) []qi.Value {
	out := make([]qi.Value, 0, len(xs))
	for _, s := range xs {
		out = append(out, qi.Str(s))
	}
	return out
}

// -----------------------------------------------------------------------------
// repl
// -----------------------------------------------------------------------------

func cmdRepl(args []string) int {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "verbose runtime logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *verbose {
		_ = qi.SetLogLevel("debug")
	}

	fmt.Println(banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	ip := qi.NewRuntime()
	ip.Global.Define("*argv*", qi.Vec(nil))

	for {
		code, ok := readForm(ln)
		if !ok {
			fmt.Println()
			return 0
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, ":") && !strings.Contains(trimmed, " ") && !strings.HasPrefix(trimmed, "::") {
			switch strings.ToLower(trimmed) {
			case ":quit":
				return 0
			case ":help":
				fmt.Print(helpText)
			default:
				// A bare keyword evaluates to itself; anything else here is a
				// typo'd command.
				if v, err := ip.EvalPersistentSource(trimmed); err == nil {
					fmt.Println(blue(qi.FormatValue(v)))
				} else {
					fmt.Println("unknown command. Type :help for commands.")
				}
			}
			ln.AppendHistory(trimmed)
			continue
		}

		v, err := ip.EvalPersistentSource(code)
		if err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
		} else {
			fmt.Println(blue(qi.FormatValue(v)))
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
	}
}

// readForm accumulates lines until the buffer parses as complete input. An
// unbalanced form keeps prompting with the continuation prompt; a hard parse
// error is returned as-is so evaluation can render the caret snippet.
func readForm(ln *liner.State) (string, bool) {
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
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if _, perr := qi.ParseSource(src); perr == nil || !qi.IsIncomplete(perr) {
			return src, true
		}
	}
}
