// Package rag assembles retrieval-augmented context for the clone's
// response generator. Given an incoming message, it decides which past
// messages and memories are relevant, scores and filters them, and folds
// the survivors into a bounded, channel-aware text block ready to append
// to a system prompt.
//
// Pipeline, in fixed order per call:
//
//	greeting short-circuit -> embed -> retrieve -> filter -> score -> render
//
// Architecture:
//   - Retriever: candidate lookup (vector-based, or keyword fallback when
//     the embedding provider is down)
//   - filter: repetition and quality rejection
//   - score: composite relevance ranking
//   - memory: tiered durable knowledge (core/episodic/archival)
//   - Assembler: orchestrates the above and renders the final block
//   - Registry: lazily-created per-user sessions
//
// The assembler favors availability over completeness: transient failures
// of the embedding provider or the vector index degrade the result (keyword
// matching, memory-only context, or static instructions) and are never
// surfaced to the caller as errors. The one error it raises is a missing
// user ID, since proceeding without a namespace risks cross-user leakage.
package rag
