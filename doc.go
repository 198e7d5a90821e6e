// Package ontoreason builds a knowledge graph from an ontology and answers
// natural-language queries and reasoning requests over it.
//
// A Client owns the graph, the derived state computed from it and a fact
// store shared with a BDI agent and a reasoning dispatcher.
//
// # Basic Usage
//
//	adapter, err := ontoreason.LoadOntology("ontology.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := ontoreason.NewClient(adapter, nil, ontoreason.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Embeddings, communities and the dendrogram are computed here.
//	if _, err := client.Rebuild(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// # Querying
//
// Queries are ranked by a local search over node embeddings merged with a
// global search over the community dendrogram:
//
//	result, err := client.ProcessQuery(ctx, "what is a dog")
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, hit := range result.Results {
//		fmt.Printf("%s %.3f\n", hit.ID, hit.Score)
//	}
//
// Text that names no known symbol yields an empty result, not an error.
//
// # Facts and Reasoning
//
// Facts go into the triple store and never invalidate embeddings. Reason
// dispatches the strategies selected for a (plan, task, action) decision
// point; cases retained by case-based reasoning become graph nodes, so the
// client reports Stale until the next Rebuild:
//
//	client.InsertFact(ctx, "alice", "rdf:type", "User")
//	report, err := client.Reason(ctx, plan, task, action)
//
// # Export
//
// Export writes the graph and facts to Parquet files, Neo4j or PostgreSQL
// through the sinks in pkg/driver. Checkpoint and Restore persist facts
// and retained cases between processes.
package ontoreason
