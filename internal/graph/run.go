package graph

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/natefinch/atomic"
	toposort "github.com/philopon/go-toposort"
	"go.uber.org/zap"
)

// Runner produces stale artifacts in dependency order.
type Runner struct {
	Log *zap.Logger

	// AbortOnError stops at the first failed artifact instead of collecting
	// failures across independent chains.
	AbortOnError bool
}

// Run toposorts the set by its input→output edges and produces every stale
// artifact. A failure withholds the failed node's descendants but leaves
// independent chains untouched; failures are reported joined at the end.
func (r *Runner) Run(ctx context.Context, s *Set) error {
	order, err := r.sort(s)
	if err != nil {
		return err
	}

	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	failed := make(map[string]bool)
	var errs []error
	for _, a := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if upstream := r.failedInput(a, failed); upstream != "" {
			failed[a.OutputPath] = true
			log.Debug("withholding artifact, upstream failed",
				zap.String("output", a.OutputPath), zap.String("upstream", upstream))
			continue
		}
		if !a.Stale() {
			log.Debug("artifact up to date", zap.String("output", a.OutputPath))
			continue
		}
		data, err := a.Produce(ctx)
		if err == nil {
			err = atomic.WriteFile(a.OutputPath, bytes.NewReader(data))
		}
		if err != nil {
			failed[a.OutputPath] = true
			err = fmt.Errorf("produce %s (%s): %w", a.OutputPath, a.Stage, err)
			if r.AbortOnError {
				return err
			}
			errs = append(errs, err)
			continue
		}
		log.Info("generated", zap.String("output", a.OutputPath), zap.String("stage", a.Stage.String()))
	}
	return errors.Join(errs...)
}

// sort orders artifacts so that every artifact follows the artifacts that
// produce its inputs. Edges are explicit input→output dependencies, never
// declaration order.
func (r *Runner) sort(s *Set) ([]*Artifact, error) {
	g := toposort.NewGraph(s.Len())
	for _, a := range s.Artifacts() {
		g.AddNode(a.OutputPath)
	}
	for _, a := range s.Artifacts() {
		for _, in := range a.Inputs {
			if _, produced := s.Lookup(in); produced {
				g.AddEdge(in, a.OutputPath)
			}
		}
	}
	order, ok := g.Toposort()
	if !ok {
		return nil, errors.New("generated artifact graph has a cycle")
	}
	out := make([]*Artifact, 0, len(order))
	for _, output := range order {
		if a, found := s.Lookup(output); found {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *Runner) failedInput(a *Artifact, failed map[string]bool) string {
	for _, in := range a.Inputs {
		if failed[in] {
			return in
		}
	}
	return ""
}
