package hash

import (
	"encoding/binary"
	"math"

	"github.com/chazu/stagecraft/pkg/ast"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of syntax trees.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width (int64=8B, uint32=4B, uint16=2B)
//   - Floats: IEEE 754 big-endian 8B
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Booleans: single byte (0/1)
//   - Child lists: uint32 count, then each child inline
//   - Bound names are never written; references carry the distance to
//     the innermost binder of the same name
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of a tree.
// The returned bytes are suitable for hashing with SHA-256.
func Serialize(tree ast.Node) []byte {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	s.node(tree)
	return s.buf
}

type serializer struct {
	buf []byte
	// env holds the names in scope, innermost last.
	env []string
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeFloat64(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) writeBool(v bool) {
	if v {
		s.writeByte(1)
	} else {
		s.writeByte(0)
	}
}

func (s *serializer) bind(name string) {
	s.env = append(s.env, name)
}

// ref writes a reference to name: its binder distance when bound, or the
// name itself when free.
func (s *serializer) ref(name string) {
	for i := len(s.env) - 1; i >= 0; i-- {
		if s.env[i] == name {
			s.writeByte(TagLocalRef)
			s.writeUint32(uint32(len(s.env) - 1 - i))
			return
		}
	}
	s.writeByte(TagFreeRef)
	s.writeString(name)
}

func (s *serializer) exprs(es []ast.Expr) {
	s.writeUint32(uint32(len(es)))
	for _, e := range es {
		s.node(e)
	}
}

// scoped serializes n without letting its bindings leak.
func (s *serializer) scoped(n ast.Node) {
	depth := len(s.env)
	s.node(n)
	s.env = s.env[:depth]
}

func (s *serializer) node(n ast.Node) {
	switch n := n.(type) {
	case *ast.Root:
		s.writeByte(TagRoot)
		s.exprs(n.Children)

	case *ast.Literal:
		s.literal(n)

	case *ast.Seq:
		s.writeByte(TagSeq)
		s.node(n.LHS)
		s.node(n.RHS)

	case *ast.Let:
		s.writeByte(TagLet)
		s.scoped(n.Expr)
		s.bind(n.Ident)

	case *ast.Alloc:
		s.writeByte(TagAlloc)
		s.scoped(n.Expr)
		s.bind(n.Ident)

	case *ast.Assign:
		s.writeByte(TagAssign)
		s.ref(n.Ident)
		s.scoped(n.Expr)

	case *ast.Lookup:
		s.ref(n.Ident)

	case *ast.Unary:
		s.writeByte(TagUnary)
		s.writeString(n.Op)
		s.scoped(n.Expr)

	case *ast.Binary:
		s.writeByte(TagBinary)
		s.writeString(n.Op)
		s.scoped(n.LHS)
		s.scoped(n.RHS)

	case *ast.Quote:
		s.writeByte(TagQuote)
		s.writeString(n.Annotation)
		s.writeBool(n.Snippet)
		s.scoped(n.Expr)

	case *ast.Escape:
		s.writeByte(TagEscape)
		s.writeByte(escapeKind(n.Kind))
		s.writeUint16(uint16(n.Count))
		s.scoped(n.Expr)

	case *ast.Run:
		s.writeByte(TagRun)
		s.scoped(n.Expr)

	case *ast.Fun:
		s.writeByte(TagFun)
		s.writeUint32(uint32(len(n.Params)))
		for _, p := range n.Params {
			s.typ(p.Type)
		}
		depth := len(s.env)
		for _, p := range n.Params {
			s.bind(p.Name)
		}
		s.node(n.Body)
		s.env = s.env[:depth]

	case *ast.Call:
		s.writeByte(TagCall)
		s.scoped(n.Fun)
		s.writeUint32(uint32(len(n.Args)))
		for _, a := range n.Args {
			s.scoped(a)
		}

	case *ast.Extern:
		s.writeByte(TagExtern)
		s.writeString(n.Name)
		s.writeString(n.Expansion)
		s.typ(n.Type)

	case *ast.If:
		s.writeByte(TagIf)
		s.scoped(n.Cond)
		s.scoped(n.True)
		s.scoped(n.False)

	case *ast.While:
		s.writeByte(TagWhile)
		s.scoped(n.Cond)
		s.scoped(n.Body)

	case *ast.MacroCall:
		s.writeByte(TagMacroCall)
		s.writeString(n.Macro)
		s.writeUint32(uint32(len(n.Args)))
		for _, a := range n.Args {
			s.scoped(a)
		}

	case *ast.TypeAlias:
		s.writeByte(TagTypeAlias)
		s.writeString(n.Ident)
		s.typ(n.Type)

	case *ast.Tuple:
		s.writeByte(TagTuple)
		s.writeUint32(uint32(len(n.Exprs)))
		for _, e := range n.Exprs {
			s.scoped(e)
		}

	case *ast.TupleIndex:
		s.writeByte(TagTupleIndex)
		s.writeUint32(uint32(n.Index))
		s.scoped(n.Tuple)

	case *ast.PersistRef:
		s.writeByte(TagPersistRef)
		s.writeUint32(uint32(n.Index))

	case ast.TypeNode:
		s.typ(n)

	default:
		panic("hash: unknown node type")
	}
}

func (s *serializer) literal(n *ast.Literal) {
	switch v := n.Value.(type) {
	case int64:
		s.writeByte(TagIntLiteral)
		s.writeInt64(v)
	case float64:
		s.writeByte(TagFloatLiteral)
		s.writeFloat64(v)
	case string:
		s.writeByte(TagStringLiteral)
		s.writeString(v)
	case bool:
		s.writeByte(TagBoolLiteral)
		s.writeBool(v)
	default:
		panic("hash: literal without value")
	}
}

func (s *serializer) typ(t ast.TypeNode) {
	switch t := t.(type) {
	case nil:
		s.writeByte(TagNoType)

	case *ast.PrimitiveType:
		s.writeByte(TagPrimitiveType)
		s.writeString(t.Name)

	case *ast.InstanceType:
		s.writeByte(TagInstanceType)
		s.writeString(t.Name)
		s.typ(t.Arg)

	case *ast.FunType:
		s.writeByte(TagFunType)
		s.writeUint32(uint32(len(t.Params)))
		for _, p := range t.Params {
			s.typ(p)
		}
		s.typ(t.Ret)

	case *ast.CodeType:
		s.writeByte(TagCodeType)
		s.writeString(t.Annotation)
		s.writeBool(t.Snippet)
		s.typ(t.Inner)

	case *ast.TupleType:
		s.writeByte(TagTupleType)
		s.writeUint32(uint32(len(t.Components)))
		for _, c := range t.Components {
			s.typ(c)
		}

	case *ast.OverloadedType:
		s.writeByte(TagOverloadedType)
		s.writeUint32(uint32(len(t.Types)))
		for _, c := range t.Types {
			s.typ(c)
		}

	default:
		panic("hash: unknown type node")
	}
}

func escapeKind(k ast.EscapeKind) byte {
	switch k {
	case ast.Persist:
		return EscapePersist
	case ast.Snippet:
		return EscapeSnippet
	}
	return EscapeSplice
}
