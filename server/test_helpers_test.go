package server

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/stagecraft/compiler"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for server package tests.
//
// sumSource is the program the trees below were parsed from. Every node
// carries a location on line 1 so position lookups can be tested.
// ---------------------------------------------------------------------------

const sumSource = "let x = 20; x + 22"

// loc renders a JSON location spanning columns start..end of line 1.
func loc(start, end int) string {
	return fmt.Sprintf(`"location":{"start":{"offset":%d,"line":1,"column":%d},"end":{"offset":%d,"line":1,"column":%d}}`,
		start-1, start, end-1, end)
}

// sumTree is the tree of sumSource.
var sumTree = fmt.Sprintf(`{"tag":"root","id":1,%s,"children":[
  {"tag":"seq","id":2,%s,
   "lhs":{"tag":"let","id":3,%s,"ident":"x","expr":{"tag":"literal","id":4,%s,"type":"int","value":20}},
   "rhs":{"tag":"binary","id":5,%s,"op":"+",
          "lhs":{"tag":"lookup","id":6,%s,"ident":"x"},
          "rhs":{"tag":"literal","id":7,%s,"type":"int","value":22}}}]}`,
	loc(1, 18), loc(1, 18), loc(1, 10), loc(9, 10), loc(13, 18), loc(13, 13), loc(17, 18))

// badTree adds a boolean to an integer: true + 1.
var badTree = fmt.Sprintf(`{"tag":"root","id":1,%s,"children":[
  {"tag":"binary","id":2,%s,"op":"+",
   "lhs":{"tag":"literal","id":3,%s,"type":"boolean","value":true},
   "rhs":{"tag":"literal","id":4,%s,"type":"int","value":1}}]}`,
	loc(1, 8), loc(1, 8), loc(1, 4), loc(8, 8))

func newTestPipeline() *compiler.Pipeline {
	return compiler.NewPipeline(compiler.Options{Presplice: true})
}

// newTestWorker starts a worker over an empty workspace and stops it when
// the test ends.
func newTestWorker(t *testing.T) *Worker {
	t.Helper()
	w := NewWorker(NewWorkspace(newTestPipeline()))
	t.Cleanup(w.Stop)
	return w
}

// writeSidecar stores source text at dir/name and its tree next to it.
func writeSidecar(t *testing.T, dir, name, source, tree string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	if err := os.WriteFile(path+".json", []byte(tree), 0o644); err != nil {
		t.Fatalf("write tree: %v", err)
	}
	return path
}
