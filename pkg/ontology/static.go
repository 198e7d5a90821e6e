package ontology

import (
	"fmt"
	"sort"
)

// ClassDef declares a class and its direct superclasses.
type ClassDef struct {
	Name        string   `yaml:"name" json:"name"`
	SubclassOf  []string `yaml:"subclass_of,omitempty" json:"subclass_of,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
}

// PropertyDef declares a property with its domain and range classes.
type PropertyDef struct {
	Name        string `yaml:"name" json:"name"`
	Domain      string `yaml:"domain,omitempty" json:"domain,omitempty"`
	Range       string `yaml:"range,omitempty" json:"range,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Document is the serialized form of an ontology.
type Document struct {
	Classes    []ClassDef    `yaml:"classes" json:"classes"`
	Properties []PropertyDef `yaml:"properties" json:"properties"`
	Relations  []Relation    `yaml:"relations,omitempty" json:"relations,omitempty"`
}

// Static is an in-memory Adapter. It is not safe for concurrent mutation;
// assemble it fully before handing it to the graph builder.
type Static struct {
	classes     []string
	subclasses  map[string][]string
	properties  []string
	domains     map[string]string
	ranges      map[string]string
	relations   []Relation
	description map[string]string
}

var (
	_ Adapter        = (*Static)(nil)
	_ Describer      = (*Static)(nil)
	_ RelationSource = (*Static)(nil)
)

// NewStatic returns an empty ontology.
func NewStatic() *Static {
	return &Static{
		subclasses:  make(map[string][]string),
		domains:     make(map[string]string),
		ranges:      make(map[string]string),
		description: make(map[string]string),
	}
}

// FromDocument builds a Static adapter and validates it. Every problem is
// reported as a *LoadError attributed to source.
func FromDocument(source string, doc Document) (*Static, error) {
	s := NewStatic()
	declared := make(map[string]bool)

	for _, c := range doc.Classes {
		if c.Name == "" {
			return nil, newLoadError(source, "class with empty name")
		}
		if declared[c.Name] {
			return nil, newLoadError(source, "duplicate symbol %q", c.Name)
		}
		declared[c.Name] = true
	}
	for _, p := range doc.Properties {
		if p.Name == "" {
			return nil, newLoadError(source, "property with empty name")
		}
		if declared[p.Name] {
			return nil, newLoadError(source, "duplicate symbol %q", p.Name)
		}
		declared[p.Name] = true
	}

	for _, c := range doc.Classes {
		for _, super := range c.SubclassOf {
			if super == c.Name {
				return nil, newLoadError(source, "class %q cannot be its own superclass", c.Name)
			}
			if !declared[super] {
				return nil, newLoadError(source, "class %q has undeclared superclass %q", c.Name, super)
			}
		}
		s.AddClass(c.Name, c.Description, c.SubclassOf...)
	}
	for _, p := range doc.Properties {
		s.AddProperty(p.Name, p.Domain, p.Range, p.Description)
	}
	for i, r := range doc.Relations {
		if r.Label == "" || r.Source == "" || r.Target == "" {
			return nil, newLoadError(source, "relation %d is missing label, source or target", i)
		}
		if r.ID == "" {
			r.ID = fmt.Sprintf("%s_%s_%s", r.Source, r.Label, r.Target)
		}
		if declared[r.ID] {
			return nil, newLoadError(source, "duplicate symbol %q", r.ID)
		}
		declared[r.ID] = true
		s.AddRelation(r)
	}
	return s, nil
}

// AddClass declares a class with optional direct superclasses.
func (s *Static) AddClass(name, description string, superclasses ...string) *Static {
	if _, ok := s.subclasses[name]; !ok {
		s.classes = append(s.classes, name)
		s.subclasses[name] = nil
	}
	for _, super := range superclasses {
		if _, ok := s.subclasses[super]; !ok {
			s.classes = append(s.classes, super)
		}
		s.subclasses[super] = appendUnique(s.subclasses[super], name)
	}
	if description != "" {
		s.description[name] = description
	}
	return s
}

// AddProperty declares a property. Domain and range may name classes the
// ontology never declares.
func (s *Static) AddProperty(name, domain, rng, description string) *Static {
	if _, ok := s.domains[name]; !ok {
		s.properties = append(s.properties, name)
	}
	s.domains[name] = domain
	s.ranges[name] = rng
	if description != "" {
		s.description[name] = description
	}
	return s
}

// AddRelation records a relation instance.
func (s *Static) AddRelation(r Relation) *Static {
	s.relations = append(s.relations, r)
	if r.Description != "" {
		s.description[r.ID] = r.Description
	}
	return s
}

func (s *Static) Classes() ([]string, error) {
	return append([]string(nil), s.classes...), nil
}

func (s *Static) SubclassesOf(class string) ([]string, error) {
	subs := append([]string(nil), s.subclasses[class]...)
	sort.Strings(subs)
	return subs, nil
}

func (s *Static) Properties() ([]string, error) {
	return append([]string(nil), s.properties...), nil
}

func (s *Static) DomainOf(property string) (string, error) {
	return s.domains[property], nil
}

func (s *Static) RangeOf(property string) (string, error) {
	return s.ranges[property], nil
}

func (s *Static) Relations() ([]Relation, error) {
	return append([]Relation(nil), s.relations...), nil
}

func (s *Static) Describe(symbol string) string {
	return s.description[symbol]
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
