package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/stagecraft/compiler"
	"github.com/chazu/stagecraft/pkg/ast"
	"github.com/chazu/stagecraft/pkg/types"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "stagecraft-lsp"

var lspLog = commonlog.GetLogger("stagecraft.lsp")

// LspServer answers editor requests from the workspace analysis of each
// open document.
type LspServer struct {
	worker *Worker

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates an LSP server compiling documents with p.
func NewLSP(p *compiler.Pipeline) *LspServer {
	s := &LspServer{
		worker:  NewWorker(NewWorkspace(p)),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	lspLog.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.analyze(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.analyze(ctx, params.TextDocument.URI, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.worker.Do(func(ws *Workspace) any {
		ws.Forget(string(uri))
		return nil
	})

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) analyze(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	result, err := s.worker.Do(func(ws *Workspace) any {
		return diagnostics(ws.Analyze(string(uri), text))
	})
	if err != nil {
		lspLog.Errorf("analyzing %s: %v", uri, err)
		return
	}
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: result.([]protocol.Diagnostic),
	})
}

// --- Language features ---

// withNode runs fn on the worker with the analysis of uri and the node at
// pos. fn is not called when either is missing.
func (s *LspServer) withNode(uri protocol.DocumentUri, pos protocol.Position, fn func(*Analysis, ast.Node) any) any {
	result, err := s.worker.Do(func(ws *Workspace) any {
		a, ok := ws.Get(string(uri))
		if !ok {
			return nil
		}
		n := a.NodeAt(int(pos.Line)+1, int(pos.Character)+1)
		if n == nil {
			return nil
		}
		return fn(a, n)
	})
	if err != nil {
		lspLog.Errorf("%s: %v", uri, err)
		return nil
	}
	return result
}

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	result := s.withNode(params.TextDocument.URI, params.Position, func(a *Analysis, n ast.Node) any {
		prefix := ""
		if a.Source {
			prefix = extractPrefix(a.Text, params.Position)
		}
		return complete(a, n, prefix)
	})
	if result == nil {
		return nil, nil
	}
	return result, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	result := s.withNode(params.TextDocument.URI, params.Position, func(a *Analysis, n ast.Node) any {
		return hover(a, n)
	})
	if result == nil {
		return nil, nil
	}
	return result.(*protocol.Hover), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	result := s.withNode(uri, params.Position, func(a *Analysis, n ast.Node) any {
		def := a.Definition(n)
		if def == nil || def.Location() == nil {
			return nil
		}
		return []protocol.Location{{URI: uri, Range: toRange(*def.Location())}}
	})
	if result == nil {
		return nil, nil
	}
	return result, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	result := s.withNode(uri, params.Position, func(a *Analysis, n ast.Node) any {
		return references(a, n, uri, params.Context.IncludeDeclaration)
	})
	if result == nil {
		return nil, nil
	}
	return result.([]protocol.Location), nil
}

// --- Workspace-backed logic (called on worker goroutine) ---

func hover(a *Analysis, n ast.Node) *protocol.Hover {
	if a.Table == nil {
		return nil
	}
	t := a.Table.Type(n.NodeID())
	if t == nil {
		return nil
	}

	var b strings.Builder
	switch n := n.(type) {
	case *ast.Lookup:
		fmt.Fprintf(&b, "**%s**: `%s`", n.Ident, types.Pretty(t))
	case *ast.Let:
		fmt.Fprintf(&b, "let **%s**: `%s`", n.Ident, types.Pretty(t))
	case *ast.Param:
		fmt.Fprintf(&b, "param **%s**: `%s`", n.Name, types.Pretty(t))
	case *ast.Extern:
		fmt.Fprintf(&b, "extern **%s**: `%s`", n.Name, types.Pretty(t))
	default:
		fmt.Fprintf(&b, "`%s`", types.Pretty(t))
	}
	if entry, ok := a.Table.Lookup(n.NodeID()); ok && entry.Env != nil && entry.Env.Depth() > 0 {
		fmt.Fprintf(&b, "\n\nstage %d", entry.Env.Depth())
		if ann := entry.Env.Annotation(); ann != "" {
			fmt.Fprintf(&b, " (`%s`)", ann)
		}
	}

	loc := n.Location()
	h := &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
	if loc != nil {
		r := toRange(*loc)
		h.Range = &r
	}
	return h
}

func references(a *Analysis, n ast.Node, uri protocol.DocumentUri, includeDecl bool) []protocol.Location {
	def := a.Definition(n)
	if def == nil {
		return nil
	}
	var nodes []ast.Node
	if includeDecl {
		nodes = append(nodes, def)
	}
	nodes = append(nodes, a.Uses(def)...)

	var locations []protocol.Location
	for _, m := range nodes {
		if loc := m.Location(); loc != nil {
			locations = append(locations, protocol.Location{URI: uri, Range: toRange(*loc)})
		}
	}
	return locations
}

// complete offers the variables and externs in scope at n.
func complete(a *Analysis, n ast.Node, prefix string) []protocol.CompletionItem {
	if a.Table == nil {
		return nil
	}
	entry, ok := a.Table.Lookup(n.NodeID())
	if !ok || entry.Env == nil {
		return nil
	}

	var items []protocol.CompletionItem
	add := func(name string, kind protocol.CompletionItemKind, t types.Type) {
		if !strings.HasPrefix(name, prefix) || !isIdent(name) {
			return
		}
		detail := types.Pretty(t)
		nameCopy := name
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &nameCopy,
		})
	}

	env := entry.Env
	for _, name := range env.Names() {
		t, _, _ := env.Lookup(name)
		add(name, protocol.CompletionItemKindVariable, t)
	}
	for _, name := range env.ExternNames() {
		t, _ := env.Extern(name)
		add(name, protocol.CompletionItemKindFunction, t)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

// --- Diagnostics ---

func diagnostics(a *Analysis) []protocol.Diagnostic {
	diags := []protocol.Diagnostic{}
	if a.Err == nil {
		return diags
	}

	severity := protocol.DiagnosticSeverityError
	source := lspName
	d := protocol.Diagnostic{
		Severity: &severity,
		Source:   &source,
		Message:  a.Err.Error(),
	}
	var ferr *compiler.Error
	if errors.As(a.Err, &ferr) {
		d.Range = toRange(ferr.Location)
		d.Message = ferr.Message
		code := protocol.IntegerOrString{Value: string(ferr.Kind)}
		d.Code = &code
	}
	return append(diags, d)
}

// --- Position helpers ---

// toRange converts a 1-based source location to a 0-based LSP range.
func toRange(loc ast.Location) protocol.Range {
	start := toPosition(loc.Start)
	end := start
	if loc.End.Line > 0 {
		end = toPosition(loc.End)
	}
	return protocol.Range{Start: start, End: end}
}

func toPosition(p ast.Position) protocol.Position {
	line, col := p.Line-1, p.Column-1
	if line < 0 {
		line = 0
	}
	if col < 0 {
		col = 0
	}
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
}

// extractPrefix returns the identifier fragment before the cursor.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 {
		ch := rune(line[start-1])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			start--
		} else {
			break
		}
	}
	return line[start:col]
}

func isIdent(name string) bool {
	for i, r := range name {
		if !(unicode.IsLetter(r) || r == '_' || (i > 0 && unicode.IsDigit(r))) {
			return false
		}
	}
	return name != ""
}

func boolPtr(b bool) *bool {
	return &b
}
