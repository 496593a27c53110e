// Package memory stores daily note summaries as embedded records and
// answers hybrid semantic plus keyword queries over them.
//
// Invariants:
// - A record is visible to semantic search only after its vector, mapping row and ready status commit in one transaction.
// - Vector handles and record UUIDs map one to one; violations are fatal and never repaired in place.
// - Noise candidates are never persisted; re-running a day's ingestion never duplicates records.
// - Ingestion and retrieval emit tracing spans, metrics and journal events.
//
// Usage:
//
//	store, _ := memory.NewStore("/data/memory.db", 1024, logger)
//	defer store.Close()
//	ing, _ := memory.NewIngestor(memory.IngestorConfig{Store: store, Provider: provider, Summarizer: sum, NotesDir: "/data/notes"})
//	report, _ := ing.SummarizeDay(ctx, "2026-02-05")
//	_ = report
//	ret, _ := memory.NewRetriever(memory.RetrieverConfig{Store: store, Provider: provider, NotesDir: "/data/notes"})
//	results, _ := ret.Retrieve(ctx, "sqlite-vec on macos", nil)
//	_ = results
package memory
