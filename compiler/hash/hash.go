package hash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/chazu/stagecraft/pkg/ast"
)

// HashTree computes the SHA-256 content hash of a syntax tree.
//
// The hash covers a deterministic serialization that ignores node ids and
// source locations, and refers to bound variables by their distance to the
// binder. Two trees that differ only in the names of locals hash the same.
// Externs and intrinsics are kept by name.
func HashTree(tree ast.Node) [32]byte {
	return sha256.Sum256(Serialize(tree))
}

// Hex returns HashTree as a lowercase hex string.
func Hex(tree ast.Node) string {
	h := HashTree(tree)
	return hex.EncodeToString(h[:])
}
