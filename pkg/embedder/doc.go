// Package embedder trains graph-native symbol embeddings.
//
// Every node id and edge-type label of a knowledge graph is a symbol. A
// corpus of short "sentences" is generated from the graph (one per edge,
// one per node, plus uniform random walks) and a skip-gram model with
// negative sampling is fitted on it. Symbols that co-occur in the corpus
// end up close in cosine space.
//
// # Usage
//
//	corpus := embedder.CorpusFromGraph(g, cfg)
//	model, err := embedder.Fit(corpus, cfg, logger)
//	vec, err := model.Vector("Dog")
//	q, err := model.EmbedText("dog owner")
//
// Training is single-threaded and seeded, so the same corpus and config
// always produce the same vectors.
package embedder
