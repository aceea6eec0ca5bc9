// Package sync holds the decisions shared by the roster sync engines: field
// level change detection and the choice between a full reconciliation and an
// incremental replay.
//
// The subpackages implement the moving parts:
//
//   - upsert: writes batches of roster records through an identity map
//   - lock: the cross-process advisory lock keyed by scope
//   - baseline: the per-tenant event baseline
//   - history: the per-entity-type audit rows of every run
//   - engine: the full and incremental sync engines
//   - orchestrator: scope resolution and bounded fan-out across tenants
//   - coordinator: the scheduled trigger used by serve
package sync
