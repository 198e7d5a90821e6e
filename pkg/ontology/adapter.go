// Package ontology provides the adapters that feed ontology schemas into
// the knowledge graph builder.
//
// The builder only depends on the Adapter interface. Static is an
// in-memory implementation that can be assembled in code or decoded from
// YAML/JSON files with LoadFile. Onboarding returns the user onboarding
// ontology the agent layer ships with.
package ontology

// Adapter exposes an ontology schema: classes with subclass links and
// properties with a domain and a range class.
type Adapter interface {
	// Classes returns every declared class name.
	Classes() ([]string, error)
	// SubclassesOf returns the direct subclasses of class.
	SubclassesOf(class string) ([]string, error)
	// Properties returns every declared property name.
	Properties() ([]string, error)
	// DomainOf returns the domain class of property, or "" when unset.
	DomainOf(property string) (string, error)
	// RangeOf returns the range class of property, or "" when unset.
	RangeOf(property string) (string, error)
}

// Describer is implemented by adapters that carry human readable
// descriptions for classes and properties.
type Describer interface {
	Describe(symbol string) string
}

// Relation is a labelled instance relation between two symbols.
type Relation struct {
	ID          string `yaml:"id" json:"id"`
	Label       string `yaml:"label" json:"label"`
	Source      string `yaml:"source" json:"source"`
	Target      string `yaml:"target" json:"target"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// RelationSource is implemented by adapters that also list relation
// instances.
type RelationSource interface {
	Relations() ([]Relation, error)
}
