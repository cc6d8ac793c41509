/*
store.go - Persistence interface for saved missions

PURPOSE:
  Defines the interface between the editing session and whatever keeps
  missions between runs. The contract is the one of the mobile app's local
  list: last write wins, keyed by mission id.

KEY INTERFACES:
  MissionStore: List, Get, Save (upsert), Delete, Clear

SEMANTICS:
  - Save inserts when the id is new and replaces the record otherwise.
  - Delete of an unknown id is not an error.
  - List returns missions newest first (by CreatedAt).
  - Stored totals are caches; readers recompute against a rate table.

IMPLEMENTATIONS:
  - diaria/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: Local SQLite file
  - store/postgres/postgres.go: Shared PostgreSQL database

SEE ALSO:
  - session.go: Save/Edit use this interface
*/
package diaria

import (
	"context"
	"sort"
)

// =============================================================================
// MISSION STORE
// =============================================================================

// MissionStore persists mission snapshots.
type MissionStore interface {
	// List returns all saved missions, newest first.
	List(ctx context.Context) ([]Mission, error)

	// Get returns one mission or ErrMissionNotFound.
	Get(ctx context.Context, id MissionID) (Mission, error)

	// Save inserts or replaces the mission with m.ID.
	Save(ctx context.Context, m Mission) error

	// Delete removes the mission. Unknown ids are ignored.
	Delete(ctx context.Context, id MissionID) error

	// Clear removes every mission.
	Clear(ctx context.Context) error
}

// SortNewestFirst orders missions by creation time, newest first, with the
// id as a tie breaker so the order is stable across stores.
func SortNewestFirst(ms []Mission) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].ID < ms[j].ID
		}
		return ms[i].CreatedAt.After(ms[j].CreatedAt)
	})
}
