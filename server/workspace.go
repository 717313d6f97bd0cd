package server

import (
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/chazu/stagecraft/compiler"
	"github.com/chazu/stagecraft/pkg/ast"
)

// Analysis is what the workspace knows about one document.
type Analysis struct {
	URI  string
	Text string
	// Source is set when Text is source code and the tree came from the
	// sidecar file.
	Source bool
	// Tree and Table are set whenever elaboration succeeded, even if a
	// later pass failed.
	Tree   ast.Node
	Table  *compiler.TypeTable
	DefUse compiler.DefUse
	Result *compiler.Result
	Err    error
}

// Workspace caches the analysis of open documents. It is owned by a
// Worker and must not be used from other goroutines.
type Workspace struct {
	pipeline *compiler.Pipeline
	docs     map[string]*Analysis
}

// NewWorkspace returns an empty workspace compiling with p.
func NewWorkspace(p *compiler.Pipeline) *Workspace {
	return &Workspace{pipeline: p, docs: make(map[string]*Analysis)}
}

// Pipeline returns the pipeline documents are compiled with.
func (w *Workspace) Pipeline() *compiler.Pipeline { return w.pipeline }

// Analyze compiles a document and caches the result. A document that is
// not a JSON syntax tree is looked up as source whose tree the parser
// wrote next to it, at <path>.json.
func (w *Workspace) Analyze(uri, text string) *Analysis {
	a := &Analysis{URI: uri, Text: text}
	w.docs[uri] = a

	data := []byte(text)
	if !strings.HasPrefix(strings.TrimSpace(text), "{") {
		path, ok := uriPath(uri)
		if !ok {
			return a
		}
		sidecar, err := os.ReadFile(path + ".json")
		if err != nil {
			return a
		}
		data = sidecar
		a.Source = true
	}

	tree, err := compiler.Decode("", data)
	if err != nil {
		a.Err = err
		return a
	}
	a.Err = w.compile(a, tree)
	return a
}

func (w *Workspace) compile(a *Analysis, tree ast.Node) error {
	res, err := w.pipeline.Compile(tree)
	if err == nil {
		a.Result = res
		a.Tree, a.Table, a.DefUse = res.Tree, res.Table, res.DefUse
		return nil
	}

	// Keep whatever the checker can still say about the program.
	checked, table, checkErr := w.pipeline.Check(tree)
	if checkErr == nil {
		a.Tree, a.Table = checked, table
		if du, duErr := compiler.FindDefUse(checked, w.pipeline.Intrinsics()); duErr == nil {
			a.DefUse = du
		}
	}
	return err
}

// Get returns the cached analysis of a document.
func (w *Workspace) Get(uri string) (*Analysis, bool) {
	a, ok := w.docs[uri]
	return a, ok
}

// Forget drops a closed document.
func (w *Workspace) Forget(uri string) {
	delete(w.docs, uri)
}

// URIs lists the cached documents.
func (w *Workspace) URIs() []string {
	out := make([]string, 0, len(w.docs))
	for uri := range w.docs {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out
}

// NodeAt returns the innermost node at a 1-based position.
func (a *Analysis) NodeAt(line, col int) ast.Node {
	if a.Tree == nil {
		return nil
	}
	return ast.NodeAt(a.Tree, "", line, col)
}

// Definition returns the node defining the variable used or defined at n.
func (a *Analysis) Definition(n ast.Node) ast.Node {
	switch n.(type) {
	case *ast.Let, *ast.Alloc, *ast.Param, *ast.Extern:
		return n
	case *ast.Lookup, *ast.Assign:
		def, ok := a.DefUse[n.NodeID()]
		if !ok || def < 0 {
			return nil
		}
		return ast.Find(a.Tree, def)
	}
	return nil
}

// Uses returns every node whose definition is def.
func (a *Analysis) Uses(def ast.Node) []ast.Node {
	var out []ast.Node
	ast.Walk(a.Tree, func(n ast.Node) bool {
		if d, ok := a.DefUse[n.NodeID()]; ok && d == def.NodeID() {
			out = append(out, n)
		}
		return true
	})
	return out
}

func uriPath(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil || (u.Scheme != "" && u.Scheme != "file") {
		return "", false
	}
	return u.Path, u.Path != ""
}
