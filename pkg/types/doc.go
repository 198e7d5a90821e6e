// Package types defines the core data types shared across ontoreason.
//
// This package contains the fundamental types used throughout the module:
//   - Node: classes, properties, relation instances and retained cases in the graph
//   - Edge: typed, directed links between graph symbols
//   - Triple, Pattern and Binding: the fact store vocabulary
//   - QueryResult: the ranked answer produced by the retrieval engine
//
// # Node Kinds
//
// Nodes can be of several kinds:
//   - KindClass: an ontology class
//   - KindProperty: an ontology property with a domain and a range
//   - KindRelation: a labelled relation instance between two symbols
//   - KindCase: a retained case-based reasoning record
//
// # Validation
//
// Types provide Validate() methods for input validation:
//
//	node := &types.Node{ID: "Dog", Kind: types.KindClass}
//	if err := node.Validate(); err != nil {
//	    // Handle validation error
//	}
package types
