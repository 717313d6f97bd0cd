package compiler

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/stagecraft/pkg/ast"
)

// Unit is one independently compiled program.
type Unit struct {
	ID   string
	Name string
	Tree ast.Node
}

// NewUnit gives tree a fresh unit id.
func NewUnit(name string, tree ast.Node) Unit {
	return Unit{ID: "unit_" + uuid.New().String(), Name: name, Tree: tree}
}

// UnitResult pairs a unit with its compilation result.
type UnitResult struct {
	Unit   Unit
	Result *Result
}

// CompileUnits compiles units concurrently. Results are in input order; the
// first error cancels the rest. Units share nothing, so each gets its own
// type table and IR.
func CompileUnits(ctx context.Context, p *Pipeline, units []Unit) ([]UnitResult, error) {
	out := make([]UnitResult, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, u := range units {
		i, u := i, u
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := p.Compile(u.Tree)
			if err != nil {
				var ferr *Error
				if errors.As(err, &ferr) {
					return err
				}
				return fmt.Errorf("%s: %w", u.Name, err)
			}
			log.Debugf("compiled %s (%s)", u.Name, u.ID)
			out[i] = UnitResult{Unit: u, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
