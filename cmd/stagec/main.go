// stagec - the stagecraft compiler front end
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/stagecraft/manifest"
	"github.com/chazu/stagecraft/server"
)

func main() {
	var verbose verbosity
	flag.Var(&verbose, "v", "Verbose output; repeat for debug logging")
	configDir := flag.String("C", "", "Project directory containing stagecraft.toml (default: search upward from .)")
	emitFormat := flag.String("emit", "", "Output format: listing, ir-json, ir-cbor, type (default from stagecraft.toml)")
	outPath := flag.String("o", "", "Output file, or directory when compiling several units")
	runMode := flag.Bool("run", false, "Evaluate each program with the reference interpreter")
	noPresplice := flag.Bool("no-presplice", false, "Disable presplice specialization")
	watchMode := flag.Bool("watch", false, "Recompile inputs when they change")
	lspMode := flag.Bool("lsp", false, "Start the language server on stdio")
	serveMode := flag.Bool("serve", false, "Start the compiler service (Connect HTTP/JSON)")
	servePort := flag.Int("port", 4567, "Compiler service port (used with --serve)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: stagec [options] [files...]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles JSON syntax trees. Without files, compiles the [source] dirs of stagecraft.toml.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  stagec prog.json                 # Print the listing\n")
		fmt.Fprintf(os.Stderr, "  stagec -emit type prog.json      # Print the program type\n")
		fmt.Fprintf(os.Stderr, "  stagec -emit ir-cbor -o out/     # Encode every project unit\n")
		fmt.Fprintf(os.Stderr, "  stagec -run prog.json            # Evaluate the program\n")
		fmt.Fprintf(os.Stderr, "  stagec -watch                    # Rebuild on change\n")
		fmt.Fprintf(os.Stderr, "\nServers:\n")
		fmt.Fprintf(os.Stderr, "  stagec --lsp                     # Language server on stdio\n")
		fmt.Fprintf(os.Stderr, "  stagec --serve --port 8080       # Compiler service on :8080\n")
	}
	flag.Parse()

	commonlog.Configure(int(verbose), nil)

	m, err := loadManifest(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
		os.Exit(1)
	}
	if *emitFormat != "" {
		m.Output.Format = *emitFormat
	}
	if err := m.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	p := m.Pipeline()
	if *noPresplice {
		p.Options.Presplice = false
	}

	if *lspMode {
		if err := server.NewLSP(p).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "LSP error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if *serveMode {
		addr := fmt.Sprintf(":%d", *servePort)
		if err := serve(server.New(p), addr); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	files := flag.Args()
	if len(files) == 0 {
		files, err = m.SourceFiles()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no input files")
		flag.Usage()
		os.Exit(2)
	}

	out := m.OutputPath()
	if *outPath != "" {
		out = *outPath
	}

	b := &builder{
		pipeline: p,
		format:   m.Output.Format,
		out:      out,
		multi:    len(files) > 1,
		run:      *runMode,
		verbose:  verbose > 0,
	}

	if *watchMode {
		if err := watch(context.Background(), b, files); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := b.build(context.Background(), files); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadManifest reads stagecraft.toml from dir, or searches upward from the
// working directory. Without one the defaults apply.
func loadManifest(dir string) (*manifest.Manifest, error) {
	if dir != "" {
		return manifest.Load(dir)
	}
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
		m.Dir = "."
	}
	return m, nil
}

// service is what -serve runs.
type service interface {
	ListenAndServe(addr string) error
	Stop()
}

// serve runs s until it fails and stops it before returning, so callers
// may exit right after.
func serve(s service, addr string) error {
	defer s.Stop()
	return s.ListenAndServe(addr)
}
