// Package memory provides the layered memory store used to ground the
// clone's responses: durable knowledge partitioned into core, episodic,
// and archival tiers per user.
//
// Tier semantics:
//   - core: small curated set of identity facts, always eligible
//   - episodic: bounded recent interactions; overflow demotes the least
//     recently accessed item to archival, one at a time
//   - archival: unbounded long-term store, surfaced only when a query
//     scores it as relevant
//
// Retrieval is recency-biased by construction: every item selected for a
// response has its last-accessed timestamp bumped, which in turn protects
// it from demotion. Memories are namespaced by user ID; operations without
// a user ID fail rather than fall through to a shared namespace.
package memory
