// Package store defines the persistence contract consumed by the governance
// engine: agent identities, per-action policy rules, human-approval requests
// and the append-only audit log.  The engine treats the store as the single
// source of truth and re-reads it on every decision; implementations live in
// sub-packages (memory, rest, postgres).
package store
