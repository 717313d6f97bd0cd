package compiler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/chazu/stagecraft/pkg/ast"
)

// Decode reads a JSON syntax tree. A malformed document is a parse error
// located in filename, at the offending byte for malformed JSON.
func Decode(filename string, data []byte) (ast.Node, error) {
	n, err := ast.Decode(data)
	if err != nil {
		return nil, parseError(filename, data, err)
	}
	if filename != "" {
		ast.SetFilename(n, filename)
	}
	return n, nil
}

// DecodeFile reads and decodes the tree stored at path.
func DecodeFile(path string) (ast.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return Decode(path, data)
}

func parseError(filename string, data []byte, err error) *Error {
	// Only syntax errors carry an offset into the whole document; the
	// decoder reads nested nodes from sub-slices.
	var offset int64
	var syntax *json.SyntaxError
	if errors.As(err, &syntax) && syntax.Offset > 0 {
		// Offset counts the offending byte.
		offset = syntax.Offset - 1
	}
	pos := position(data, offset)
	return &Error{
		Location: ast.Location{Filename: filename, Start: pos, End: pos},
		Kind:     ParseError,
		Message:  strings.TrimPrefix(err.Error(), "ast: "),
	}
}

// position converts a byte offset into a 1-based line and column.
func position(data []byte, offset int64) ast.Position {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	pos := ast.Position{Offset: int(offset), Line: 1, Column: 1}
	for _, c := range data[:offset] {
		if c == '\n' {
			pos.Line++
			pos.Column = 1
		} else {
			pos.Column++
		}
	}
	return pos
}
