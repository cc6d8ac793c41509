/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Keeps saved missions and the last fetched rate table in a single local
  file, the way the mobile app keeps them in device storage. The CLI and a
  single-node server both use it; a shared deployment uses store/postgres.

INTERFACES IMPLEMENTED:
  diaria.MissionStore: Saved missions (upsert by id, newest first)
  ratesource.Cache:    Last successfully fetched rate table

KEY TABLES:
  missions:          One row per mission, legal references as JSON
  mission_periods:   Ordered periods, one row each, cascade on delete
  rate_table_cache:  Single row holding the last rate document

ENCODING:
  - Money as TEXT (decimal string, never float)
  - Dates as YYYY-MM-DD, timestamps as fixed-width RFC3339 UTC so that
    ORDER BY created_at sorts chronologically

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Writes to a mission and its periods
  happen in one SQL transaction.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers don't block the
  single writer.

USAGE:
  store, err := sqlite.New("./cadrimil.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  session.Save(ctx, store)

MIGRATION:
  Schema is auto-migrated on New(). store/postgres uses goose with
  versioned migrations instead.

SEE ALSO:
  - diaria/store.go: Interface definition
  - diaria/store/memory.go: In-memory implementation for testing
  - ratesource/provider.go: Cache consumer
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/cadrimil/engine/diaria"
	"github.com/cadrimil/engine/factory"
	"github.com/cadrimil/engine/ratesource"
)

// timeLayout is RFC3339 with a fixed nine-digit fraction.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ diaria.MissionStore = (*Store)(nil)
	_ ratesource.Cache    = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS missions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		include_allowance INTEGER NOT NULL DEFAULT 0,
		total TEXT NOT NULL DEFAULT '0',
		legal_refs_json TEXT NOT NULL DEFAULT '[]',
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_missions_created_at
		ON missions(created_at DESC, id);

	CREATE TABLE IF NOT EXISTS mission_periods (
		mission_id TEXT NOT NULL REFERENCES missions(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		id TEXT NOT NULL,
		group_key TEXT NOT NULL,
		locality_key TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		headcount INTEGER NOT NULL,
		last_day_full INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (mission_id, position)
	);

	CREATE TABLE IF NOT EXISTS rate_table_cache (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		document TEXT NOT NULL,
		fetched_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// MISSION STORE (diaria.MissionStore interface)
// =============================================================================

// Save inserts or replaces a mission and all its periods.
func (s *Store) Save(ctx context.Context, m diaria.Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := make([]diaria.LegalReferenceDoc, len(m.LegalReferences))
	for i, r := range m.LegalReferences {
		refs[i] = diaria.LegalReferenceDoc{Decree: r.Decree, Date: r.Date}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("failed to encode legal references: %w", err)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	query := `
		INSERT INTO missions (id, name, created_at, include_allowance, total, legal_refs_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			created_at = excluded.created_at,
			include_allowance = excluded.include_allowance,
			total = excluded.total,
			legal_refs_json = excluded.legal_refs_json,
			updated_at = excluded.updated_at
	`
	_, err = sqlTx.ExecContext(ctx, query,
		string(m.ID),
		m.Name,
		formatTime(m.CreatedAt),
		m.IncludeAllowance,
		m.Total.String(),
		string(refsJSON),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save mission: %w", err)
	}

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM mission_periods WHERE mission_id = ?", string(m.ID)); err != nil {
		return fmt.Errorf("failed to replace periods: %w", err)
	}

	for i, p := range m.Periods {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO mission_periods
			(mission_id, position, id, group_key, locality_key, start_date, end_date, headcount, last_day_full)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(m.ID), i, string(p.ID), string(p.Group), string(p.Locality),
			p.Start.String(), p.End.String(), p.Headcount, p.CountLastDayFull,
		)
		if err != nil {
			return fmt.Errorf("failed to save period %d: %w", i+1, err)
		}
	}

	return sqlTx.Commit()
}

// Get retrieves a mission by ID.
func (s *Store) Get(ctx context.Context, id diaria.MissionID) (diaria.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, created_at, include_allowance, total, legal_refs_json FROM missions WHERE id = ?",
		string(id),
	)
	m, err := scanMission(row)
	if err == sql.ErrNoRows {
		return diaria.Mission{}, diaria.ErrMissionNotFound
	}
	if err != nil {
		return diaria.Mission{}, err
	}

	periods, err := s.loadPeriods(ctx, m.ID)
	if err != nil {
		return diaria.Mission{}, err
	}
	m.Periods = periods[m.ID]
	return m, nil
}

// List returns all missions, newest first.
func (s *Store) List(ctx context.Context) ([]diaria.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, created_at, include_allowance, total, legal_refs_json FROM missions ORDER BY created_at DESC, id ASC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missions []diaria.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	periods, err := s.loadPeriods(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range missions {
		missions[i].Periods = periods[missions[i].ID]
	}
	return missions, nil
}

// Delete removes a mission and its periods. Unknown ids are ignored.
func (s *Store) Delete(ctx context.Context, id diaria.MissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM missions WHERE id = ?", string(id))
	return err
}

// Clear removes every mission. The rate table cache is kept.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"mission_periods", "missions"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// loadPeriods returns periods grouped by mission, in position order. An
// empty id loads the periods of every mission.
func (s *Store) loadPeriods(ctx context.Context, id diaria.MissionID) (map[diaria.MissionID][]diaria.Period, error) {
	query := `
		SELECT mission_id, id, group_key, locality_key, start_date, end_date, headcount, last_day_full
		FROM mission_periods
	`
	var args []any
	if id != "" {
		query += " WHERE mission_id = ?"
		args = append(args, string(id))
	}
	query += " ORDER BY mission_id, position"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[diaria.MissionID][]diaria.Period)
	for rows.Next() {
		var (
			missionID, pid, group, locality, start, end string
			headcount                                   int
			lastDayFull                                 bool
		)
		if err := rows.Scan(&missionID, &pid, &group, &locality, &start, &end, &headcount, &lastDayFull); err != nil {
			return nil, err
		}
		p := diaria.Period{
			ID:               diaria.PeriodID(pid),
			Group:            diaria.GroupKey(group),
			Locality:         diaria.LocalityKey(locality),
			Headcount:        headcount,
			CountLastDayFull: lastDayFull,
		}
		p.Start, _ = diaria.ParseDate(start)
		p.End, _ = diaria.ParseDate(end)
		out[diaria.MissionID(missionID)] = append(out[diaria.MissionID(missionID)], p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMission(row scanner) (diaria.Mission, error) {
	var (
		m                    diaria.Mission
		id, createdAt, total string
		refsJSON             string
		includeAllowance     bool
	)
	if err := row.Scan(&id, &m.Name, &createdAt, &includeAllowance, &total, &refsJSON); err != nil {
		return diaria.Mission{}, err
	}

	m.ID = diaria.MissionID(id)
	m.IncludeAllowance = includeAllowance
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	m.Total = parseDecimal(total)

	var refs []diaria.LegalReferenceDoc
	if err := json.Unmarshal([]byte(refsJSON), &refs); err != nil {
		return diaria.Mission{}, fmt.Errorf("failed to decode legal references of %s: %w", id, err)
	}
	for _, r := range refs {
		m.LegalReferences = append(m.LegalReferences, diaria.LegalReference{Decree: r.Decree, Date: r.Date})
	}
	return m, nil
}

// =============================================================================
// RATE TABLE CACHE (ratesource.Cache interface)
// =============================================================================

// SaveRateTable replaces the cached table.
func (s *Store) SaveRateTable(ctx context.Context, table diaria.RateTable, fetchedAt time.Time) error {
	doc, err := factory.MarshalTable(table)
	if err != nil {
		return fmt.Errorf("failed to encode rate table: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rate_table_cache (id, document, fetched_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document = excluded.document,
			fetched_at = excluded.fetched_at
	`, string(doc), formatTime(fetchedAt))
	return err
}

// LoadRateTable returns the cached table or ratesource.ErrNoCachedTable.
func (s *Store) LoadRateTable(ctx context.Context) (diaria.RateTable, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc, fetchedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT document, fetched_at FROM rate_table_cache WHERE id = 1",
	).Scan(&doc, &fetchedAt)
	if err == sql.ErrNoRows {
		return diaria.RateTable{}, time.Time{}, ratesource.ErrNoCachedTable
	}
	if err != nil {
		return diaria.RateTable{}, time.Time{}, err
	}

	table, err := factory.ParseRateTable([]byte(doc))
	if err != nil {
		return diaria.RateTable{}, time.Time{}, err
	}
	at, _ := time.Parse(time.RFC3339Nano, fetchedAt)
	return table, at, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data, including the rate cache (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"mission_periods", "missions", "rate_table_cache"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
