// Package main is a headless driver for the language server bridge: it opens
// a file, connects it to the configured server, prints the document outline,
// and streams diagnostics until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/driftwood-editor/driftwood/internal/editor"
	"github.com/driftwood-editor/driftwood/internal/lsp"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

type options struct {
	configPath string
	endpoint   string
	language   string
	debug      bool
	file       string
}

func run() int {
	opts := parseFlags()

	log, err := newLogger(opts.debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logging: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	cfg, err := lsp.LoadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.endpoint != "" {
		cfg.Endpoint = opts.endpoint
	}

	content, err := os.ReadFile(opts.file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	abs, err := filepath.Abs(opts.file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	uri := lsp.DocumentURI("file://" + abs)

	language := opts.language
	if language == "" {
		language = guessLanguage(abs)
	}

	registry := editor.NewRegistry()
	markers := editor.NewMarkerStore()
	buffer := editor.NewTextBuffer(string(content))

	conn, err := lsp.NewConnection(cfg, registry, markers, buffer, language, uri, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer conn.Dispose()

	conn.OnStateChange = func(s lsp.State) {
		log.Info("state changed", zap.Stringer("state", s))
	}
	conn.OnError = func(err error) {
		log.Warn("bridge error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout())
	err = conn.Connect(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to connect: %v\n", err)
		return 1
	}

	printOutline(registry, language, cfg.RequestTimeout())

	// Stream diagnostics until interrupted.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastCount = -1
	for {
		select {
		case <-signals:
			return 0
		case <-ticker.C:
			ms := markers.Get(string(uri), conn.Owner())
			if len(ms) == lastCount {
				continue
			}
			lastCount = len(ms)
			for _, m := range ms {
				fmt.Printf("%s %d:%d %s %s\n",
					m.Severity, m.Range.Start.Row, m.Range.Start.Column, m.Source, m.Message)
			}
			if len(ms) == 0 {
				fmt.Println("no diagnostics")
			}
		}
	}
}

func printOutline(registry *editor.Registry, language string, timeout time.Duration) {
	providers := registry.SymbolProviders(language)
	if len(providers) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	symbols, err := providers[0].Symbols(ctx)
	if err != nil || len(symbols) == 0 {
		return
	}
	fmt.Println("outline:")
	printSymbols(symbols, 1)
}

func printSymbols(symbols []editor.SymbolEntry, depth int) {
	for _, sym := range symbols {
		fmt.Printf("%s%s %s\n", strings.Repeat("  ", depth), sym.Kind, sym.Name)
		printSymbols(sym.Children, depth+1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// guessLanguage maps common file extensions to language ids. The -lang flag
// overrides it.
func guessLanguage(path string) string {
	switch filepath.Ext(path) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".rs":
		return "rust"
	case ".ts":
		return "typescript"
	case ".js":
		return "javascript"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".hpp":
		return "cpp"
	default:
		return strings.TrimPrefix(filepath.Ext(path), ".")
	}
}

func parseFlags() options {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.configPath, "config", defaultConfigPath(), "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", defaultConfigPath(), "Path to configuration file (shorthand)")
	flag.StringVar(&opts.endpoint, "endpoint", "", "Override the configured server endpoint")
	flag.StringVar(&opts.language, "lang", "", "Language id (defaults to the file extension)")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&opts.debug, "d", false, "Enable debug logging (shorthand)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "driftwood-lsp - language server bridge driver\n\n")
		fmt.Fprintf(os.Stderr, "Usage: driftwood-lsp [options] <file>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  driftwood-lsp main.go                      Connect main.go to the configured server\n")
		fmt.Fprintf(os.Stderr, "  driftwood-lsp -endpoint ws://:9257 app.py  Override the endpoint\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("driftwood-lsp %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	opts.file = flag.Arg(0)
	return opts
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "lsp.toml"
	}
	return filepath.Join(home, ".config", "driftwood", "lsp.toml")
}
