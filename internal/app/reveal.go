package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/corey/aswin/internal/adapters/modelfile"
	"github.com/corey/aswin/internal/domain/revealing"
	"github.com/corey/aswin/internal/errors"
	"github.com/corey/aswin/internal/ports"
)

// RevealRequest configures a strongly-revealing check.
type RevealRequest struct {
	POMDPPath string
	POMDP     *ports.POMDP

	// Transform refines the observations when the check fails and writes
	// the result to Output (default .aswin/out/<model>-revealing.yaml).
	Transform bool
	Output    string
}

// RevealResult is the outcome of Reveal.
type RevealResult struct {
	Model  *ports.POMDP
	Report *revealing.Report

	// Set when Transform was requested.
	Transformed *ports.POMDP
	OutputPath  string
	// TransformErr is a TransformationFailed error: the written model is
	// refined but still not strongly revealing.
	TransformErr error
}

// Reveal checks whether a POMDP is strongly revealing and optionally
// transforms it.
func (a *App) Reveal(ctx context.Context, req RevealRequest) (*RevealResult, error) {
	p := req.POMDP
	if p == nil {
		if req.POMDPPath == "" {
			return nil, fmt.Errorf("no POMDP given")
		}
		loaded, err := modelfile.LoadPOMDP(req.POMDPPath)
		if err != nil {
			return nil, err
		}
		p = loaded
	}
	log := a.Logger.WithModel(p.Name).WithPhase("reveal")
	opts := revealing.Options{Lookahead: a.Settings.Reveal.Lookahead, Budget: a.budget()}

	ctx, end := a.Tracer.Start(ctx, "reveal", attribute.String("aswin.model", p.Name))
	start := time.Now()
	rep, err := revealing.Check(ctx, p, opts)
	if err != nil {
		end(err)
		return nil, err
	}
	a.observe(ctx, "reveal", time.Since(start))
	log.Info("revealing check", "revealing", rep.Revealing, "violations", len(rep.Violations), "supports", rep.Nodes)

	res := &RevealResult{Model: p, Report: rep}
	if !req.Transform {
		end(nil)
		return res, nil
	}

	start = time.Now()
	out, err := revealing.MakeStronglyRevealing(ctx, p, opts)
	switch {
	case errors.Is(err, errors.ErrTransformationFailed):
		res.TransformErr = err
		log.Warn("transformation not certified", "err", err.Error())
	case err != nil:
		end(err)
		return nil, err
	}
	a.observe(ctx, "transform", time.Since(start))
	out.Name = p.Name + "-revealing"
	res.Transformed = out

	path := req.Output
	if path == "" {
		path = filepath.Join(a.Paths.OutDir, out.Name+".yaml")
	}
	if err := writeModel(path, out); err != nil {
		end(err)
		return nil, err
	}
	res.OutputPath = path
	end(nil)
	return res, nil
}

func writeModel(path string, p *ports.POMDP) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := modelfile.EncodePOMDP(f, p); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
