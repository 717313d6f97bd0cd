package server

import (
	"net/http"

	"github.com/tliron/commonlog"

	"github.com/chazu/stagecraft/compiler"
)

var log = commonlog.GetLogger("stagecraft.server")

// CompilerServer serves the compiler service over Connect (HTTP/JSON).
type CompilerServer struct {
	worker *Worker
	mux    *http.ServeMux
}

// New creates a CompilerServer compiling with p.
func New(p *compiler.Pipeline) *CompilerServer {
	worker := NewWorker(NewWorkspace(p))
	s := &CompilerServer{
		worker: worker,
		mux:    http.NewServeMux(),
	}

	path, handler := NewCompileService(worker).Handler()
	s.mux.Handle(path, handler)

	return s
}

// Handler exposes the server's routes, for tests and embedding.
func (s *CompilerServer) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *CompilerServer) ListenAndServe(addr string) error {
	log.Infof("compiler service listening on %s", addr)
	log.Infof("  Connect (HTTP/JSON): http://%s%s", addr, CompileProcedure)
	return http.ListenAndServe(addr, s.mux)
}

// Stop shuts down the server.
func (s *CompilerServer) Stop() {
	s.worker.Stop()
}
