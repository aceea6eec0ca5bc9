// Package coordinator schedules periodic sync runs for the serve command.
//
// Every interval (with a random jitter so several instances do not poll in
// lockstep) the coordinator asks the orchestrator to sync every active
// tenant in auto mode. A run is also started immediately on Start.
//
// Runs execute in the background. When a tick arrives while the previous
// run is still going, the tick is skipped rather than queued: per-tenant
// locks already prevent double syncs, and queueing would only pile up work
// behind a slow tenant.
//
// Stop cancels the coordinator context and waits for the in-flight run.
// Cancellation reaches the orchestrator, which stops starting new tenants
// and lets running tenants finish their current entity type.
package coordinator
