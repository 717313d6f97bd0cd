package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"

	"github.com/chazu/stagecraft/compiler"
	"github.com/chazu/stagecraft/pkg/ast"
	"github.com/chazu/stagecraft/pkg/emit/listing"
	"github.com/chazu/stagecraft/pkg/types"
	"github.com/chazu/stagecraft/pkg/wire"
)

// Procedure paths of the compiler service.
const (
	CompilerServiceName      = "stagecraft.v1.CompilerService"
	CheckProcedure           = "/" + CompilerServiceName + "/Check"
	CompileProcedure         = "/" + CompilerServiceName + "/Compile"
	compilerServicePathMatch = "/" + CompilerServiceName + "/"
)

// jsonCodec carries plain Go messages as JSON. The service has no protobuf
// schema, so it replaces connect's default codecs.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) { return json.Marshal(msg) }

func (jsonCodec) Unmarshal(data []byte, msg any) error { return json.Unmarshal(data, msg) }

// Codec returns the codec clients of the compiler service must use.
func Codec() connect.Codec { return jsonCodec{} }

// Diagnostic is a located error in a request.
type Diagnostic struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
	StartCol  int    `json:"start_col,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
	EndCol    int    `json:"end_col,omitempty"`
}

// CheckRequest carries one JSON syntax tree.
type CheckRequest struct {
	Name string          `json:"name"`
	Tree json.RawMessage `json:"tree"`
}

// CheckResponse reports the program type or why it has none.
type CheckResponse struct {
	Unit        string       `json:"unit"`
	Valid       bool         `json:"valid"`
	Type        string       `json:"type,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// CompileRequest carries one JSON syntax tree to compile.
type CompileRequest struct {
	Name string          `json:"name"`
	Tree json.RawMessage `json:"tree"`
}

// CompileResponse holds the listing and IR artifact of a compiled tree.
type CompileResponse struct {
	Unit        string         `json:"unit"`
	Success     bool           `json:"success"`
	Artifact    *wire.Artifact `json:"artifact,omitempty"`
	Diagnostics []Diagnostic   `json:"diagnostics,omitempty"`
}

// CompileService implements the compiler service on top of the worker.
type CompileService struct {
	worker *Worker
}

// NewCompileService creates a CompileService.
func NewCompileService(worker *Worker) *CompileService {
	return &CompileService{worker: worker}
}

// Handler returns the path prefix and handler serving the service.
func (s *CompileService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	mux := http.NewServeMux()
	mux.Handle(CheckProcedure, connect.NewUnaryHandler(CheckProcedure, s.Check, opts...))
	mux.Handle(CompileProcedure, connect.NewUnaryHandler(CompileProcedure, s.Compile, opts...))
	return compilerServicePathMatch, mux
}

func decodeTree(name string, raw json.RawMessage) (ast.Node, error) {
	if len(raw) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("tree is required"))
	}
	tree, err := compiler.Decode(name, raw)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return tree, nil
}

// Check type-checks a tree without lowering it.
func (s *CompileService) Check(
	ctx context.Context,
	req *connect.Request[CheckRequest],
) (*connect.Response[CheckResponse], error) {
	tree, err := decodeTree(req.Msg.Name, req.Msg.Tree)
	if err != nil {
		return nil, err
	}
	unit := compiler.NewUnit(req.Msg.Name, tree)

	result, err := s.worker.DoContext(ctx, func(ws *Workspace) any {
		resp := &CheckResponse{Unit: unit.ID}
		checked, table, err := ws.Pipeline().Check(unit.Tree)
		if err != nil {
			resp.Diagnostics = toDiagnostics(err)
			return resp
		}
		resp.Valid = true
		resp.Type = types.Pretty(table.Type(checked.NodeID()))
		return resp
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(result.(*CheckResponse)), nil
}

// Compile runs the whole front end and returns the IR artifact.
func (s *CompileService) Compile(
	ctx context.Context,
	req *connect.Request[CompileRequest],
) (*connect.Response[CompileResponse], error) {
	tree, err := decodeTree(req.Msg.Name, req.Msg.Tree)
	if err != nil {
		return nil, err
	}
	unit := compiler.NewUnit(req.Msg.Name, tree)

	result, err := s.worker.DoContext(ctx, func(ws *Workspace) any {
		resp := &CompileResponse{Unit: unit.ID}
		res, err := ws.Pipeline().Compile(unit.Tree)
		if err != nil {
			resp.Diagnostics = toDiagnostics(err)
			return resp
		}
		text, err := listing.Emit(res.IR)
		if err != nil {
			resp.Diagnostics = toDiagnostics(err)
			return resp
		}
		resp.Success = true
		resp.Artifact = wire.FromResult(unit.ID, unit.Name, res, text)
		return resp
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(result.(*CompileResponse)), nil
}

func toDiagnostics(err error) []Diagnostic {
	var ferr *compiler.Error
	if !errors.As(err, &ferr) {
		return []Diagnostic{{Kind: "internal", Message: err.Error()}}
	}
	loc := ferr.Location
	return []Diagnostic{{
		Kind:      string(ferr.Kind),
		Message:   ferr.Message,
		File:      loc.Filename,
		StartLine: loc.Start.Line,
		StartCol:  loc.Start.Column,
		EndLine:   loc.End.Line,
		EndCol:    loc.End.Column,
	}}
}
