package app

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/corey/aswin/internal/domain/belief"
	"github.com/corey/aswin/internal/domain/product"
)

// ExploreRequest configures an exploration without solving.
type ExploreRequest struct {
	Models
	LabelMode product.LabelMode
	MaxDepth  int
}

// ExploreResult is the explored belief-support MDP of the product.
type ExploreResult struct {
	Product *product.Product
	MDP     *belief.MDP
	Stats   belief.Stats
}

// Explore builds the product and explores its belief-support MDP.
func (a *App) Explore(ctx context.Context, req ExploreRequest) (*ExploreResult, error) {
	p, aut, err := req.load()
	if err != nil {
		return nil, err
	}
	log := a.Logger.WithModel(p.Name).WithPhase("explore")

	ctx, end := a.Tracer.Start(ctx, "explore",
		attribute.String("aswin.model", p.Name),
		attribute.String("aswin.automaton", aut.Name))

	start := time.Now()
	pr, err := product.Build(p, aut, product.Options{LabelMode: req.LabelMode})
	if err != nil {
		end(err)
		return nil, err
	}
	a.observe(ctx, "product", time.Since(start))

	start = time.Now()
	mdp, err := belief.Explore(ctx, pr, belief.Options{
		Budget:   a.budget(),
		Workers:  a.Settings.Explore.Workers,
		MaxDepth: req.MaxDepth,
	})
	end(err)
	if err != nil {
		return nil, err
	}
	a.observe(ctx, "explore", time.Since(start))

	stats := mdp.Stats()
	a.Metrics.ExploredNodes.Set(float64(stats.Nodes))
	a.dumpMetrics()
	log.Info("explored", "nodes", stats.Nodes, "edges", stats.Edges, "frontier", stats.Frontier)
	return &ExploreResult{Product: pr, MDP: mdp, Stats: stats}, nil
}

// observe records a stage in metrics and as a span.
func (a *App) observe(ctx context.Context, stage string, d time.Duration) {
	a.Metrics.ObserveStage(stage, d)
	a.Tracer.RecordStage(ctx, stage, d)
}
