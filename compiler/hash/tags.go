package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the tree serialization format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// every previously computed content hash.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing content hashes.
const HashVersion byte = 1

// Expression tags.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Literal values
	TagIntLiteral    byte = 0x01
	TagFloatLiteral  byte = 0x02
	TagStringLiteral byte = 0x03
	TagBoolLiteral   byte = 0x04

	// Variable references
	TagLocalRef byte = 0x05 // distance to the binder
	TagFreeRef  byte = 0x06 // extern or intrinsic, by name

	// Reserved 0x07-0x0F

	TagRoot       byte = 0x10
	TagSeq        byte = 0x11
	TagLet        byte = 0x12
	TagAssign     byte = 0x13
	TagUnary      byte = 0x14
	TagBinary     byte = 0x15
	TagQuote      byte = 0x16
	TagEscape     byte = 0x17
	TagRun        byte = 0x18
	TagFun        byte = 0x19
	TagCall       byte = 0x1A
	TagExtern     byte = 0x1B
	TagIf         byte = 0x1C
	TagWhile      byte = 0x1D
	TagMacroCall  byte = 0x1E
	TagTypeAlias  byte = 0x1F
	TagTuple      byte = 0x20
	TagTupleIndex byte = 0x21
	TagAlloc      byte = 0x22
	TagPersistRef byte = 0x23
)

// Type syntax tags.
const (
	TagPrimitiveType  byte = 0x30
	TagInstanceType   byte = 0x31
	TagFunType        byte = 0x32
	TagCodeType       byte = 0x33
	TagTupleType      byte = 0x34
	TagOverloadedType byte = 0x35
	TagNoType         byte = 0x36
)

// Escape kind bytes, written after TagEscape.
const (
	EscapeSplice  byte = 0x01
	EscapePersist byte = 0x02
	EscapeSnippet byte = 0x03
)

// allTags lists every tag for uniqueness checks.
var allTags = []byte{
	TagReservedZero,
	TagIntLiteral, TagFloatLiteral, TagStringLiteral, TagBoolLiteral,
	TagLocalRef, TagFreeRef,
	TagRoot, TagSeq, TagLet, TagAssign, TagUnary, TagBinary,
	TagQuote, TagEscape, TagRun, TagFun, TagCall, TagExtern,
	TagIf, TagWhile, TagMacroCall, TagTypeAlias, TagTuple,
	TagTupleIndex, TagAlloc, TagPersistRef,
	TagPrimitiveType, TagInstanceType, TagFunType, TagCodeType,
	TagTupleType, TagOverloadedType, TagNoType,
}
