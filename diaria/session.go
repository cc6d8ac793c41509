/*
session.go - Editing state for the mission being built

PURPOSE:
  Holds the periods, allowance flag and name of the mission currently on
  screen (or in a CLI run), and keeps its total in sync. Every mutation
  recomputes the total from scratch with MissionTotal; there is no
  incremental update path.

LIFECYCLE:
  NewSession(table)
    -> AddPeriod / UpdatePeriod / RemovePeriod / SetIncludeAllowance
    -> Save(store)    insert (no id) or replace (id from Edit)
    -> Reset          (done automatically after a successful Save)

  Edit(store, id) loads a saved mission for changes; Import(m) loads an
  external snapshot as a fresh, unsaved copy.

CONCURRENCY:
  Session is safe for concurrent use. The rate table is replaced wholesale
  by SetRateTable, which also recomputes the total.

SEE ALSO:
  - calc.go: MissionTotal
  - store.go: MissionStore
*/
package diaria

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session is the in-progress mission.
type Session struct {
	mu sync.RWMutex

	id               MissionID
	name             string
	createdAt        time.Time
	periods          []Period
	includeAllowance bool
	table            RateTable
	hasTable         bool
	total            decimal.Decimal

	// NewID and Now are replaceable for deterministic tests.
	NewID func() string
	Now   func() time.Time
}

// NewSession creates an empty session bound to a rate table. The table may
// be the zero value while the remote source is still loading.
func NewSession(table RateTable) *Session {
	s := &Session{
		NewID: uuid.NewString,
		Now:   time.Now,
		total: decimal.Zero,
	}
	if !table.IsEmpty() {
		s.table = table
		s.hasTable = true
	}
	return s
}

// =============================================================================
// READ ACCESS
// =============================================================================

// ID returns the id of the mission being edited, or "" when unsaved.
func (s *Session) ID() MissionID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Name returns the current mission name.
func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Periods returns a copy of the current periods in insertion order.
func (s *Session) Periods() []Period {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Period(nil), s.periods...)
}

// IncludeAllowance returns the mission-wide AED flag.
func (s *Session) IncludeAllowance() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.includeAllowance
}

// Total returns the cached total, always consistent with the last mutation.
func (s *Session) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// RateTable returns the table the total was computed against.
func (s *Session) RateTable() (RateTable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table, s.hasTable
}

// =============================================================================
// MUTATIONS - each one recomputes the total
// =============================================================================

// SetName sets the mission name.
func (s *Session) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

// SetID fixes the id the next Save stores the mission under. Used when a
// client supplies its own id for a mission the store does not know yet.
func (s *Session) SetID(id MissionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}

// SetRateTable swaps the table (after a reload) and recomputes.
func (s *Session) SetRateTable(table RateTable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = table
	s.hasTable = !table.IsEmpty()
	s.recomputeLocked()
}

// SetIncludeAllowance toggles the AED for the whole mission.
func (s *Session) SetIncludeAllowance(include bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.includeAllowance = include
	s.recomputeLocked()
}

// AddPeriod validates p, gives it a fresh id and appends it.
func (s *Session) AddPeriod(p Period) (Period, error) {
	if err := s.validate(p); err != nil {
		return Period{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = PeriodID(s.NewID())
	s.periods = append(s.periods, p)
	s.recomputeLocked()
	return p, nil
}

// UpdatePeriod replaces the period with the same id, keeping its position.
func (s *Session) UpdatePeriod(p Period) error {
	if err := s.validate(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.periods {
		if s.periods[i].ID == p.ID {
			s.periods[i] = p
			s.recomputeLocked()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrPeriodNotFound, p.ID)
}

// SetPeriods replaces every period at once. Periods keep their ids; the ones
// without an id get a fresh one. Nothing changes if any period is invalid.
func (s *Session) SetPeriods(periods []Period) error {
	for i, p := range periods {
		if err := s.validate(p); err != nil {
			return fmt.Errorf("period %d: %w", i+1, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods = make([]Period, len(periods))
	for i, p := range periods {
		if p.ID == "" {
			p.ID = PeriodID(s.NewID())
		}
		s.periods[i] = p
	}
	s.recomputeLocked()
	return nil
}

// RemovePeriod drops the period with the given id.
func (s *Session) RemovePeriod(id PeriodID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.periods {
		if s.periods[i].ID == id {
			s.periods = append(s.periods[:i], s.periods[i+1:]...)
			s.recomputeLocked()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrPeriodNotFound, id)
}

// Reset clears the session back to a new, unsaved mission.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.id = ""
	s.name = ""
	s.createdAt = time.Time{}
	s.periods = nil
	s.includeAllowance = false
	s.total = decimal.Zero
}

func (s *Session) recomputeLocked() {
	if !s.hasTable {
		s.total = decimal.Zero
		return
	}
	s.total = MissionTotal(s.periods, s.includeAllowance, s.table)
}

// validate checks against the table when one is loaded; stale keys are
// still accepted by the calculation, but not from new input.
func (s *Session) validate(p Period) error {
	s.mu.RLock()
	table, hasTable := s.table, s.hasTable
	s.mu.RUnlock()

	if hasTable {
		return ValidateAgainst(p, table)
	}
	return ValidatePeriod(p)
}

// =============================================================================
// SNAPSHOT / PERSISTENCE
// =============================================================================

// Snapshot builds the mission as it would be saved, without saving it.
// Used for report export of an unsaved mission.
func (s *Session) Snapshot() (Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() (Mission, error) {
	if !s.hasTable {
		return Mission{}, ErrRateTableUnavailable
	}
	if len(s.periods) == 0 {
		return Mission{}, ErrNoPeriods
	}

	name := strings.TrimSpace(s.name)
	if name == "" {
		name = DefaultMissionName
	}
	createdAt := s.createdAt
	if createdAt.IsZero() {
		createdAt = s.Now().UTC()
	}

	m := Mission{
		ID:               s.id,
		Name:             name,
		CreatedAt:        createdAt,
		Periods:          append([]Period(nil), s.periods...),
		IncludeAllowance: s.includeAllowance,
		LegalReferences:  s.table.LegalReferences(),
	}
	m.Recompute(s.table)
	return m, nil
}

// Save persists the mission (insert when new, replace when editing) and
// resets the session on success. The saved mission is returned.
func (s *Session) Save(ctx context.Context, store MissionStore) (Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.snapshotLocked()
	if err != nil {
		return Mission{}, err
	}
	if m.ID == "" {
		m.ID = MissionID(s.NewID())
	}

	if err := store.Save(ctx, m); err != nil {
		return Mission{}, fmt.Errorf("save mission %s: %w", m.ID, err)
	}

	s.resetLocked()
	return m, nil
}

// Edit loads a saved mission into the session. Saving afterwards replaces
// the stored record and keeps its creation time.
func (s *Session) Edit(ctx context.Context, store MissionStore, id MissionID) error {
	m, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = m.ID
	s.name = m.Name
	s.createdAt = m.CreatedAt
	s.periods = append([]Period(nil), m.Periods...)
	s.includeAllowance = m.IncludeAllowance
	s.recomputeLocked()
	return nil
}

// Import loads an external snapshot as a new, unsaved mission. Period ids
// without a value get one; the cached total of the file is discarded.
func (s *Session) Import(m Mission) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.id = ""
	s.name = m.Name
	s.createdAt = time.Time{}
	s.periods = make([]Period, len(m.Periods))
	for i, p := range m.Periods {
		if p.ID == "" {
			p.ID = PeriodID(s.NewID())
		}
		s.periods[i] = p
	}
	s.includeAllowance = m.IncludeAllowance
	s.recomputeLocked()
}
