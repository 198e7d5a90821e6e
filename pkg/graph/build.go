package graph

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/soundprediction/ontoreason/pkg/ontology"
	"github.com/soundprediction/ontoreason/pkg/types"
)

// Build creates a graph with one node per class and property, and one
// edge per subclass, domain and range relation of the ontology. Relation
// instances, when the adapter lists them, become Relation nodes linked to
// their endpoints by edges carrying the relation label.
//
// Building twice from the same adapter yields the same node and edge sets.
// Any adapter failure or duplicate symbol is returned as an
// *ontology.LoadError.
func Build(adapter ontology.Adapter, logger *slog.Logger) (*KnowledgeGraph, error) {
	if adapter == nil {
		return nil, &ontology.LoadError{Err: errors.New("nil ontology adapter")}
	}
	g := New(logger)
	describe := func(string) string { return "" }
	if d, ok := adapter.(ontology.Describer); ok {
		describe = d.Describe
	}

	classes, err := adapter.Classes()
	if err != nil {
		return nil, asLoadError(err, "failed to list classes")
	}
	for _, c := range classes {
		if err := g.AddNode(types.KindClass, c, describe(c)); err != nil {
			return nil, asLoadError(err, "failed to add class")
		}
	}

	properties, err := adapter.Properties()
	if err != nil {
		return nil, asLoadError(err, "failed to list properties")
	}
	for _, p := range properties {
		if err := g.AddNode(types.KindProperty, p, describe(p)); err != nil {
			return nil, asLoadError(err, "failed to add property")
		}
	}

	for _, c := range classes {
		subs, err := adapter.SubclassesOf(c)
		if err != nil {
			return nil, asLoadError(err, fmt.Sprintf("failed to list subclasses of %s", c))
		}
		for _, sub := range subs {
			if _, err := g.AddEdge(sub, c, types.EdgeSubclassOf); err != nil {
				return nil, asLoadError(err, "failed to add subclass edge")
			}
		}
	}

	for _, p := range properties {
		domain, err := adapter.DomainOf(p)
		if err != nil {
			return nil, asLoadError(err, fmt.Sprintf("failed to read domain of %s", p))
		}
		if domain != "" {
			if _, err := g.AddEdge(p, domain, types.EdgeDomain); err != nil {
				return nil, asLoadError(err, "failed to add domain edge")
			}
		}

		rng, err := adapter.RangeOf(p)
		if err != nil {
			return nil, asLoadError(err, fmt.Sprintf("failed to read range of %s", p))
		}
		if rng != "" {
			if _, err := g.AddEdge(p, rng, types.EdgeRange); err != nil {
				return nil, asLoadError(err, "failed to add range edge")
			}
		}
	}

	if rs, ok := adapter.(ontology.RelationSource); ok {
		relations, err := rs.Relations()
		if err != nil {
			return nil, asLoadError(err, "failed to list relations")
		}
		for _, r := range relations {
			if err := AddRelation(g, r); err != nil {
				return nil, asLoadError(err, "failed to add relation")
			}
		}
	}

	g.logger.Info("Knowledge graph built",
		"classes", len(classes),
		"properties", len(properties),
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount())
	return g, nil
}

// AddRelation adds a relation instance node and its two labelled edges.
func AddRelation(g *KnowledgeGraph, r ontology.Relation) error {
	if err := g.AddNode(types.KindRelation, r.ID, r.Description); err != nil {
		return err
	}
	if _, err := g.AddEdge(r.Source, r.ID, r.Label); err != nil {
		return err
	}
	if _, err := g.AddEdge(r.ID, r.Target, r.Label); err != nil {
		return err
	}
	return nil
}

func asLoadError(err error, msg string) error {
	var loadErr *ontology.LoadError
	if errors.As(err, &loadErr) {
		return err
	}
	return &ontology.LoadError{Err: fmt.Errorf("%s: %w", msg, err)}
}
