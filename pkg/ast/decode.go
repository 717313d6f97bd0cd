package ast

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Decode reads one tree in the parser's JSON form: objects tagged with a
// "tag" field naming the node kind ("literal", "quote", "type_fun", ...).
func Decode(data []byte) (Node, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("ast: empty document")
	}
	n, err := decodeNode(data)
	if err != nil {
		return nil, fmt.Errorf("ast: %w", err)
	}
	return n, nil
}

// DecodeReader reads and decodes a whole document from r.
func DecodeReader(r io.Reader) (Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ast: read: %w", err)
	}
	return Decode(data)
}

// DecodeFile decodes the JSON tree stored at path. Nodes without a
// filename in their location are attributed to path.
func DecodeFile(path string) (Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	n, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	SetFilename(n, path)
	return n, nil
}

// SetFilename fills in the filename of every location that lacks one.
func SetFilename(n Node, filename string) {
	Walk(n, func(c Node) bool {
		if loc := c.Location(); loc != nil && loc.Filename == "" {
			loc.Filename = filename
		}
		return true
	})
}

// fields holds the raw members of one JSON object. The first decoding
// failure is kept in err so callers can read several members and check
// once.
type fields struct {
	tag string
	m   map[string]json.RawMessage
	err error
}

func (f *fields) fail(format string, args ...any) {
	if f.err == nil {
		f.err = fmt.Errorf("%s: "+format, append([]any{f.tag}, args...)...)
	}
}

func (f *fields) raw(key string) json.RawMessage {
	r, ok := f.m[key]
	if !ok || string(r) == "null" {
		return nil
	}
	return r
}

func (f *fields) str(key string) string {
	var s string
	if r := f.raw(key); r != nil {
		if err := json.Unmarshal(r, &s); err != nil {
			f.fail("field %s: %v", key, err)
		}
	}
	return s
}

func (f *fields) int(key string) int {
	var i int
	if r := f.raw(key); r != nil {
		if err := json.Unmarshal(r, &i); err != nil {
			f.fail("field %s: %v", key, err)
		}
	}
	return i
}

func (f *fields) bool(key string) bool {
	var b bool
	if r := f.raw(key); r != nil {
		if err := json.Unmarshal(r, &b); err != nil {
			f.fail("field %s: %v", key, err)
		}
	}
	return b
}

func (f *fields) expr(key string) Expr {
	r := f.raw(key)
	if r == nil {
		f.fail("missing field %s", key)
		return nil
	}
	n, err := decodeNode(r)
	if err != nil {
		f.fail("%v", err)
		return nil
	}
	e, ok := n.(Expr)
	if !ok {
		f.fail("field %s: %T is not an expression", key, n)
		return nil
	}
	return e
}

func (f *fields) exprs(key string) []Expr {
	var items []json.RawMessage
	if r := f.raw(key); r != nil {
		if err := json.Unmarshal(r, &items); err != nil {
			f.fail("field %s: %v", key, err)
			return nil
		}
	}
	out := make([]Expr, 0, len(items))
	for _, item := range items {
		n, err := decodeNode(item)
		if err != nil {
			f.fail("%v", err)
			return nil
		}
		e, ok := n.(Expr)
		if !ok {
			f.fail("field %s: %T is not an expression", key, n)
			return nil
		}
		out = append(out, e)
	}
	return out
}

func (f *fields) typ(key string) TypeNode {
	r := f.raw(key)
	if r == nil {
		f.fail("missing field %s", key)
		return nil
	}
	n, err := decodeNode(r)
	if err != nil {
		f.fail("%v", err)
		return nil
	}
	t, ok := n.(TypeNode)
	if !ok {
		f.fail("field %s: %T is not a type", key, n)
		return nil
	}
	return t
}

func (f *fields) typs(key string) []TypeNode {
	var items []json.RawMessage
	if r := f.raw(key); r != nil {
		if err := json.Unmarshal(r, &items); err != nil {
			f.fail("field %s: %v", key, err)
			return nil
		}
	}
	out := make([]TypeNode, 0, len(items))
	for _, item := range items {
		n, err := decodeNode(item)
		if err != nil {
			f.fail("%v", err)
			return nil
		}
		t, ok := n.(TypeNode)
		if !ok {
			f.fail("field %s: %T is not a type", key, n)
			return nil
		}
		out = append(out, t)
	}
	return out
}

func (f *fields) params(key string) []*Param {
	var items []json.RawMessage
	if r := f.raw(key); r != nil {
		if err := json.Unmarshal(r, &items); err != nil {
			f.fail("field %s: %v", key, err)
			return nil
		}
	}
	out := make([]*Param, 0, len(items))
	for _, item := range items {
		n, err := decodeNode(item)
		if err != nil {
			f.fail("%v", err)
			return nil
		}
		p, ok := n.(*Param)
		if !ok {
			f.fail("field %s: %T is not a param", key, n)
			return nil
		}
		out = append(out, p)
	}
	return out
}

func decodeNode(data json.RawMessage) (Node, error) {
	var head struct {
		Tag      string    `json:"tag"`
		ID       int       `json:"id"`
		Location *Location `json:"location"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	f := &fields{tag: head.Tag}
	if err := json.Unmarshal(data, &f.m); err != nil {
		return nil, err
	}
	b := Base{ID: head.ID, Loc: head.Location}

	var n Node
	switch head.Tag {
	case "root":
		n = &Root{Base: b, Children: f.exprs("children")}
	case "literal":
		n = decodeLiteral(b, f)
	case "seq":
		n = &Seq{Base: b, LHS: f.expr("lhs"), RHS: f.expr("rhs")}
	case "let":
		n = &Let{Base: b, Ident: f.str("ident"), Expr: f.expr("expr")}
	case "assign":
		n = &Assign{Base: b, Ident: f.str("ident"), Expr: f.expr("expr")}
	case "lookup":
		n = &Lookup{Base: b, Ident: f.str("ident")}
	case "unary":
		n = &Unary{Base: b, Op: f.str("op"), Expr: f.expr("expr")}
	case "binary":
		n = &Binary{Base: b, Op: f.str("op"), LHS: f.expr("lhs"), RHS: f.expr("rhs")}
	case "quote":
		n = &Quote{Base: b, Expr: f.expr("expr"), Annotation: f.str("annotation"), Snippet: f.bool("snippet")}
	case "escape":
		kind := EscapeKind(f.str("kind"))
		switch kind {
		case Splice, Persist, Snippet:
		default:
			f.fail("unknown escape kind %q", kind)
		}
		n = &Escape{Base: b, Expr: f.expr("expr"), Kind: kind, Count: f.int("count")}
	case "run":
		n = &Run{Base: b, Expr: f.expr("expr")}
	case "fun":
		n = &Fun{Base: b, Params: f.params("params"), Body: f.expr("body")}
	case "param":
		n = &Param{Base: b, Name: f.str("name"), Type: f.typ("type")}
	case "call":
		n = &Call{Base: b, Fun: f.expr("fun"), Args: f.exprs("args")}
	case "extern":
		n = &Extern{Base: b, Name: f.str("name"), Type: f.typ("type"), Expansion: f.str("expansion")}
	case "if":
		n = &If{Base: b, Cond: f.expr("cond"), True: f.expr("truex"), False: f.expr("falsex")}
	case "while":
		n = &While{Base: b, Cond: f.expr("cond"), Body: f.expr("body")}
	case "macrocall":
		n = &MacroCall{Base: b, Macro: f.str("macro"), Args: f.exprs("args")}
	case "type_alias":
		n = &TypeAlias{Base: b, Ident: f.str("ident"), Type: f.typ("type")}
	case "tuple":
		n = &Tuple{Base: b, Exprs: f.exprs("exprs")}
	case "tupleind":
		n = &TupleIndex{Base: b, Tuple: f.expr("tuple"), Index: f.int("index")}
	case "alloc":
		n = &Alloc{Base: b, Ident: f.str("ident"), Expr: f.expr("expr")}
	case "persist":
		return nil, fmt.Errorf("persist nodes cannot appear in source")
	case "type_primitive":
		n = &PrimitiveType{Base: b, Name: f.str("name")}
	case "type_instance":
		n = &InstanceType{Base: b, Name: f.str("name"), Arg: f.typ("arg")}
	case "type_fun":
		n = &FunType{Base: b, Params: f.typs("params"), Ret: f.typ("ret")}
	case "type_code":
		n = &CodeType{Base: b, Inner: f.typ("inner"), Annotation: f.str("annotation"), Snippet: f.bool("snippet")}
	case "type_tuple":
		n = &TupleType{Base: b, Components: f.typs("components")}
	case "type_overloaded":
		n = &OverloadedType{Base: b, Types: f.typs("types")}
	case "":
		return nil, fmt.Errorf("node without tag")
	default:
		return nil, fmt.Errorf("unknown node tag %q", head.Tag)
	}
	if f.err != nil {
		return nil, f.err
	}
	return n, nil
}

func decodeLiteral(b Base, f *fields) Node {
	lit := &Literal{Base: b, Kind: LiteralKind(f.str("type"))}
	raw := f.raw("value")
	if raw == nil {
		f.fail("missing field value")
		return lit
	}
	var err error
	switch lit.Kind {
	case IntLiteral:
		var v int64
		err = json.Unmarshal(raw, &v)
		lit.Value = v
	case FloatLiteral:
		var v float64
		err = json.Unmarshal(raw, &v)
		lit.Value = v
	case StringLiteral:
		var v string
		err = json.Unmarshal(raw, &v)
		lit.Value = v
	case BoolLiteral:
		var v bool
		err = json.Unmarshal(raw, &v)
		lit.Value = v
	default:
		f.fail("unknown literal type %q", lit.Kind)
		return lit
	}
	if err != nil {
		f.fail("value: %v", err)
	}
	return lit
}
