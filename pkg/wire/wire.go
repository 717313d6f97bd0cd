// Package wire encodes compiled IR as a portable artifact, in CBOR or JSON.
// Artifacts carry the unit id, the program type, the scope tables and the
// presplice variants, but not the trees themselves.
package wire

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/stagecraft/compiler"
	"github.com/chazu/stagecraft/compiler/hash"
	"github.com/chazu/stagecraft/pkg/types"
)

// FormatVersion is written into every artifact.
const FormatVersion = "1.1.0"

// compatibleFormats is what this build can read.
const compatibleFormats = ">= 1.0.0, < 2.0.0"

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Scope is the table entry for a function or quote.
type Scope struct {
	ID       int   `cbor:"id" json:"id"`
	Parent   int   `cbor:"parent" json:"parent"`
	Bound    []int `cbor:"bound" json:"bound"`
	Free     []int `cbor:"free" json:"free"`
	Children []int `cbor:"children" json:"children"`
	Persist  []int `cbor:"persist" json:"persist"`
}

// Proc is a lifted function.
type Proc struct {
	Scope
	Params []int `cbor:"params" json:"params"`
}

// Prog is a lifted quote.
type Prog struct {
	Scope
	Annotation    string `cbor:"annotation,omitempty" json:"annotation,omitempty"`
	QuoteParent   int    `cbor:"quote_parent" json:"quote_parent"`
	QuoteChildren []int  `cbor:"quote_children" json:"quote_children"`
	SnippetEscape int    `cbor:"snippet_escape,omitempty" json:"snippet_escape,omitempty"`
	Splices       []int  `cbor:"splices" json:"splices"`
	Persists      []int  `cbor:"persists" json:"persists"`
	Snippets      []int  `cbor:"snippets" json:"snippets"`
}

// Variant is one presplice specialization. Outer is the 1-based index in
// Artifact.Variants of the variant it was built on, or 0.
type Variant struct {
	Prog   int   `cbor:"prog" json:"prog"`
	Config []int `cbor:"config" json:"config"`
	Outer  int   `cbor:"outer,omitempty" json:"outer,omitempty"`
}

// Artifact is the encoded result of compiling one unit.
type Artifact struct {
	Format   string         `cbor:"format" json:"format"`
	Unit     string         `cbor:"unit" json:"unit"`
	Name     string         `cbor:"name" json:"name"`
	Type     string         `cbor:"type" json:"type"`
	Hash     string         `cbor:"hash" json:"hash"`
	Main     Proc           `cbor:"main" json:"main"`
	Procs    []Proc         `cbor:"procs" json:"procs"`
	Progs    []Prog         `cbor:"progs" json:"progs"`
	Variants []Variant      `cbor:"variants" json:"variants"`
	DefUse   map[int]int    `cbor:"defuse" json:"defuse"`
	Externs  map[int]string `cbor:"externs" json:"externs"`
	Listing  string         `cbor:"listing,omitempty" json:"listing,omitempty"`
}

// FromResult builds the artifact of a compiled unit.
func FromResult(unit, name string, res *compiler.Result, listing string) *Artifact {
	ir := res.IR
	a := &Artifact{
		Format:  FormatVersion,
		Unit:    unit,
		Name:    name,
		Type:    types.Pretty(res.Type()),
		Hash:    hash.Hex(res.Tree),
		Main:    proc(ir.Main),
		DefUse:  map[int]int(ir.DefUse),
		Externs: ir.Externs,
		Listing: listing,
	}
	for _, id := range ir.ProcIDs() {
		a.Procs = append(a.Procs, proc(ir.Procs[id]))
	}
	for _, id := range ir.ProgIDs() {
		p := ir.Progs[id]
		a.Progs = append(a.Progs, Prog{
			Scope:         scope(p.Scope, p.Persist),
			Annotation:    p.Annotation,
			QuoteParent:   p.QuoteParent,
			QuoteChildren: p.QuoteChildren,
			SnippetEscape: p.SnippetEscape,
			Splices:       escapeIDs(p.OwnedSplice),
			Persists:      escapeIDs(p.OwnedPersist),
			Snippets:      escapeIDs(p.OwnedSnippet),
		})
		a.addVariants(id, ir.Variants[id], 0)
	}
	return a
}

func (a *Artifact) addVariants(id int, vs []*compiler.Variant, outer int) {
	for _, v := range vs {
		a.Variants = append(a.Variants, Variant{Prog: id, Config: v.Config, Outer: outer})
		index := len(a.Variants)
		for _, inner := range sortedKeys(v.Nested) {
			a.addVariants(inner, v.Nested[inner], index)
		}
	}
}

func sortedKeys(m map[int][]*compiler.Variant) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func proc(p *compiler.Proc) Proc {
	return Proc{Scope: scope(p.Scope, p.Persist), Params: p.Params}
}

func scope(s compiler.Scope, persist []*compiler.Escape) Scope {
	return Scope{
		ID:       s.ID,
		Parent:   s.Parent,
		Bound:    s.Bound,
		Free:     s.Free,
		Children: s.Children,
		Persist:  escapeIDs(persist),
	}
}

func escapeIDs(es []*compiler.Escape) []int {
	ids := make([]int, len(es))
	for i, e := range es {
		ids[i] = e.ID
	}
	return ids
}

// CheckFormat reports whether an artifact format version can be read.
func CheckFormat(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("wire: bad format version %q: %w", version, err)
	}
	c, err := semver.NewConstraint(compatibleFormats)
	if err != nil {
		return fmt.Errorf("wire: %w", err)
	}
	if !c.Check(v) {
		return fmt.Errorf("wire: unsupported format %s (want %s)", version, compatibleFormats)
	}
	return nil
}

// MarshalCBOR serializes an artifact to canonical CBOR.
func MarshalCBOR(a *Artifact) ([]byte, error) {
	return cborEncMode.Marshal(a)
}

// UnmarshalCBOR deserializes and version-checks a CBOR artifact.
func UnmarshalCBOR(data []byte) (*Artifact, error) {
	var a Artifact
	if err := cbor.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("wire: unmarshal artifact: %w", err)
	}
	if err := CheckFormat(a.Format); err != nil {
		return nil, err
	}
	return &a, nil
}

// MarshalJSON serializes an artifact to indented JSON.
func MarshalJSON(a *Artifact) ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}

// UnmarshalJSON deserializes and version-checks a JSON artifact.
func UnmarshalJSON(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("wire: unmarshal artifact: %w", err)
	}
	if err := CheckFormat(a.Format); err != nil {
		return nil, err
	}
	return &a, nil
}
