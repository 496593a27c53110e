// Package summarizer turns one day of raw notes into memory candidates
// through an LLM backend. Backends return a JSON array; parsing tolerates
// fenced or chatty output and validates each element before it reaches
// the ingestion pipeline.
package summarizer
