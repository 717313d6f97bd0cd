package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrWorkerStopped is returned for work submitted after Stop.
var ErrWorkerStopped = errors.New("worker stopped")

type workRequest struct {
	fn   func(*Workspace) any
	done chan workResult
}

type workResult struct {
	value any
	err   error
}

// Worker owns the workspace and runs every operation on it from a single
// goroutine, so LSP and Connect handlers never race on the document cache.
type Worker struct {
	ws       *Workspace
	requests chan workRequest
	quit     chan struct{}
	stopOnce sync.Once
}

// NewWorker starts a worker for ws.
func NewWorker(ws *Workspace) *Worker {
	w := &Worker{
		ws:       ws,
		requests: make(chan workRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, turning a panic in a compiler pass into an error.
func (w *Worker) execute(fn func(*Workspace) any) (result workResult) {
	defer func() {
		if r := recover(); r != nil {
			result.err = fmt.Errorf("workspace panic: %v", r)
		}
	}()
	result.value = fn(w.ws)
	return result
}

// Do runs fn on the worker goroutine and waits for it.
func (w *Worker) Do(fn func(*Workspace) any) (any, error) {
	return w.DoContext(context.Background(), fn)
}

// DoContext is Do with cancellation. A request abandoned by its caller
// still runs; only the wait is cut short.
func (w *Worker) DoContext(ctx context.Context, fn func(*Workspace) any) (any, error) {
	req := workRequest{fn: fn, done: make(chan workResult, 1)}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.quit:
		return nil, ErrWorkerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop shuts the worker down. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}
