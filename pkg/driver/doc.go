// Package driver exports knowledge graph snapshots to external stores.
//
// A Sink receives nodes, edges and triple-store facts. Three sinks exist:
// utils.ParquetGraphWriter for files, Neo4jSink for a Neo4j database and
// PostgresSink for PostgreSQL tables.
// Exports are one-way; the in-process graph stays the graph of record.
//
// # Usage
//
//	sink, err := driver.NewNeo4jSink(cfg.Export.Neo4j, logger)
//	if err != nil {
//		return err
//	}
//	defer sink.Close(ctx)
//	if err := sink.CreateIndices(ctx); err != nil {
//		return err
//	}
//	err = client.Export(ctx, sink)
//
// Node labels come from node kinds and relationship types from edge
// labels. Both are sanitized before they reach Cypher text, since Cypher
// cannot parameterize them.
package driver
