package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/stagecraft/compiler"
	"github.com/chazu/stagecraft/manifest"
	"github.com/chazu/stagecraft/pkg/emit/listing"
	"github.com/chazu/stagecraft/pkg/interp"
	"github.com/chazu/stagecraft/pkg/types"
	"github.com/chazu/stagecraft/pkg/wire"
)

// builder compiles input files and writes their outputs.
type builder struct {
	pipeline *compiler.Pipeline
	format   string
	// out is a file for a single unit and a directory for several; empty
	// means stdout.
	out string
	// multi keeps per-unit output when watch mode recompiles one of
	// several files.
	multi   bool
	run     bool
	verbose bool
	stdout  io.Writer
}

func (b *builder) writer() io.Writer {
	if b.stdout == nil {
		return os.Stdout
	}
	return b.stdout
}

// unitName is the file name without directory or .json suffix.
func unitName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".json")
}

// load decodes every file into a unit.
func load(files []string) ([]compiler.Unit, error) {
	units := make([]compiler.Unit, 0, len(files))
	for _, f := range files {
		tree, err := compiler.DecodeFile(f)
		if err != nil {
			return nil, err
		}
		units = append(units, compiler.NewUnit(unitName(f), tree))
	}
	return units, nil
}

// build compiles files and writes one output per unit.
func (b *builder) build(ctx context.Context, files []string) error {
	units, err := load(files)
	if err != nil {
		return err
	}
	return b.compile(ctx, units)
}

func (b *builder) compile(ctx context.Context, units []compiler.Unit) error {
	results, err := compiler.CompileUnits(ctx, b.pipeline, units)
	if err != nil {
		return err
	}

	several := b.multi || len(results) > 1
	for _, r := range results {
		data, err := b.render(r, several)
		if err != nil {
			return fmt.Errorf("%s: %w", r.Unit.Name, err)
		}
		if err := b.write(r.Unit.Name, data, several); err != nil {
			return err
		}
		if b.run {
			if err := b.evaluate(r); err != nil {
				return err
			}
		}
	}

	if b.verbose {
		fmt.Fprintf(os.Stderr, "Compiled %d units\n", len(results))
	}
	return nil
}

// render produces the configured output for one unit. Text formats get a
// header naming the unit when several are printed together.
func (b *builder) render(r compiler.UnitResult, several bool) ([]byte, error) {
	res := r.Result
	if b.format == manifest.FormatType {
		t := types.Pretty(res.Type())
		if several && b.out == "" {
			return []byte(r.Unit.Name + ": " + t + "\n"), nil
		}
		return []byte(t + "\n"), nil
	}

	text, err := listing.Emit(res.IR)
	if err != nil {
		return nil, err
	}

	switch b.format {
	case manifest.FormatIRJSON:
		data, err := wire.MarshalJSON(wire.FromResult(r.Unit.ID, r.Unit.Name, res, text))
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case manifest.FormatIRCBOR:
		return wire.MarshalCBOR(wire.FromResult(r.Unit.ID, r.Unit.Name, res, text))
	}

	var buf bytes.Buffer
	if several && b.out == "" {
		fmt.Fprintf(&buf, "; %s\n", r.Unit.Name)
	}
	buf.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func extension(format string) string {
	switch format {
	case manifest.FormatIRJSON:
		return ".ir.json"
	case manifest.FormatIRCBOR:
		return ".ir.cbor"
	case manifest.FormatType:
		return ".type"
	}
	return ".lst"
}

func (b *builder) write(name string, data []byte, several bool) error {
	if b.out == "" {
		_, err := b.writer().Write(data)
		return err
	}
	path := b.out
	if several {
		if err := os.MkdirAll(b.out, 0o755); err != nil {
			return err
		}
		path = filepath.Join(b.out, name+extension(b.format))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	if b.verbose {
		fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
	}
	return nil
}

// evaluate runs a compiled unit with the reference interpreter.
func (b *builder) evaluate(r compiler.UnitResult) error {
	in := interp.New()
	in.IR = r.Result.IR
	v, err := in.Eval(r.Result.Tree)
	if err != nil {
		return fmt.Errorf("%s: %w", r.Unit.Name, err)
	}
	fmt.Fprintf(b.writer(), "%s => %s\n", r.Unit.Name, interp.Format(v))
	return nil
}
