// Package nlp provides the optional chat model used to summarize
// hierarchy clusters.
//
// OpenAIClient talks to OpenAI or any OpenAI-compatible endpoint (Ollama,
// vLLM, LM Studio) through go-openai. CircuitBreakerClient wraps any
// Client with a gobreaker breaker that raises an alert when it opens.
// LLMSummarizer adapts a Client to hierarchy.Summarizer.
//
// # Usage
//
//	client, err := nlp.New(cfg.NLP, cfg.CircuitBreaker, alert.New(cfg.Alert, logger), logger)
//	if err != nil {
//		return err
//	}
//	summarizer := nlp.NewLLMSummarizer(client, nlp.SummarizerOptions{Logger: logger})
//	summaries, err := hierarchy.Summaries(ctx, dendrogram, labels, summarizer, 4)
//
// Rate limits surface as *RateLimitError and support errors.Is.
package nlp
