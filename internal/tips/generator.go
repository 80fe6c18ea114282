package tips

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rafaeljc/tipsengine/internal/logger"
	"github.com/rafaeljc/tipsengine/internal/query"
	"github.com/rafaeljc/tipsengine/internal/ruleengine"
	"github.com/rafaeljc/tipsengine/internal/validation"
)

// Generator runs the selection pipeline.
type Generator struct {
	engine   *ruleengine.Engine
	clock    query.Clock
	location *time.Location
	logger   *slog.Logger
}

// Option customizes a Generator.
type Option func(*Generator)

// WithClock sets the clock used for the activation window gate.
func WithClock(c query.Clock) Option {
	return func(g *Generator) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithLocation sets the time zone in which "today" is determined.
func WithLocation(loc *time.Location) Option {
	return func(g *Generator) {
		if loc != nil {
			g.location = loc
		}
	}
}

// NewGenerator creates a Generator. It panics if engine is nil.
// If logger is nil, it defaults to slog.Default().
func NewGenerator(engine *ruleengine.Engine, logger *slog.Logger, opts ...Option) *Generator {
	validation.AssertNotNil(engine, "rule engine")
	if logger == nil {
		logger = slog.Default()
	}

	g := &Generator{
		engine:   engine,
		clock:    time.Now,
		location: time.UTC,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Include reports whether a tip passes the filter gates, checked in order:
// visibility, active flag, activation window, then the tip's rules.
//
// Errors are configuration defects (unknown references, reference cycles)
// and are never folded into a false result.
func (g *Generator) Include(tip *Tip, tree query.Tree, optIn bool, table ruleengine.Table) (bool, error) {
	if !tip.AlwaysVisible && tip.IsPersonalized != optIn {
		return false, nil
	}
	if !tip.Active {
		return false, nil
	}

	today := DateOf(g.clock().In(g.location))
	if tip.DateActiveStart != nil && today.Before(*tip.DateActiveStart) {
		return false, nil
	}
	if tip.DateActiveEnd != nil && tip.DateActiveEnd.Before(today) {
		return false, nil
	}

	if len(tip.Rules) == 0 {
		return true, nil
	}

	ok, err := g.engine.Apply(tree, tip.Rules, table)
	if err != nil {
		return false, fmt.Errorf("failed to apply rules of tip %q: %w", tip.ID, err)
	}
	return ok, nil
}

// Generate returns the ranked, normalized tips for a request.
func (g *Generator) Generate(ctx context.Context, catalog *Catalog, req Request) ([]Output, error) {
	validation.AssertNotNil(catalog, "catalog")
	log := logger.FromContext(ctx)

	var tree query.Tree
	if req.OptIn {
		tree = query.NewTree(req.UserData)
	} else {
		tree = query.NewTree(map[string]any{})
	}

	sourceTips, err := IngestSourceTips(req.SourceTips)
	if err != nil {
		return nil, err
	}

	var embedded []Tip
	if req.OptIn {
		embedded, err = CollectEmbeddedTips(tree.Root())
		if err != nil {
			return nil, err
		}
	}

	candidates := make([]Tip, 0, len(catalog.Tips)+len(sourceTips)+len(embedded))
	candidates = append(candidates, catalog.Tips...)
	candidates = append(candidates, sourceTips...)
	candidates = append(candidates, embedded...)
	candidates = FilterAudience(candidates, req.Audience)

	outputs := make([]Output, 0, len(candidates))
	for i := range candidates {
		ok, err := g.Include(&candidates[i], tree, req.OptIn, catalog.Rules)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		enriched, err := Enrich(candidates[i], catalog.Enrichments)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, Normalize(enriched))
	}

	Rank(outputs)

	log.Debug("tips generated",
		slog.String("catalog_version", catalog.Version),
		slog.Int("candidates", len(candidates)),
		slog.Int("selected", len(outputs)),
		slog.Bool("opt_in", req.OptIn),
	)
	return outputs, nil
}
