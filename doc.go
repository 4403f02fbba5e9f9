// Package srgresolver is the resolver at the heart of a distributed
// sensor-fusion middleware.
//
// Clients announce three kinds of things: base facts (known spatial and
// temporal relationships), patterns (parametrised rules saying "if these
// input relationships exist, I can compute these output relationships with
// these qualities") and queries (descriptions of desired relationships).
//
// The resolver maintains a live spatial-relationship graph (SRG) of known
// relationships, repeatedly applies patterns to derive new relationships,
// answers queries by finding concrete pattern matches that cover them, and
// emits for each client an incremental dataflow plan describing which
// component instances it must run.
//
// # Architecture
//
//	announcements -> server -> resolver -> (SRG mutation + query responses)
//	              -> per-client delta -> outbound documents
//
// The packages, leaves first:
//
//   - attribute: key/value attributes with lazily coerced values
//   - sourceset: information-source provenance sets
//   - expr: expression and predicate trees, evaluation, textual form
//   - graph: generic directed labelled graph
//   - subgraph: pattern/query/base data model and the JSON document codec
//   - srg: the spatial-relationship graph with provenance
//   - resolver: pattern compiler, matcher, apply decision, query responses
//   - server: announcement tracking, fixed point, per-client diffs
//   - gateway: NATS boundary adapter
//
// The resolver is single-threaded and cooperative. All SRG and repository
// mutations run under one logical thread; concurrency is pushed to the
// boundary, where the gateway serialises announcements and delivery.
package srgresolver
