/*
Package postgres provides a PostgreSQL-backed implementation of the storage interfaces.

PURPOSE:
  Shares saved missions and the rate table cache between several server
  instances. Same contract as store/sqlite; the schema is versioned with
  goose migrations embedded in the binary.

INTERFACES IMPLEMENTED:
  diaria.MissionStore: Saved missions (upsert by id, newest first)
  ratesource.Cache:    Last successfully fetched rate table

ENCODING:
  - Money as NUMERIC, read back as text into decimal.Decimal
  - Dates as DATE, timestamps as TIMESTAMPTZ
  - Legal references and the rate document as JSONB

USAGE:
  store, err := postgres.Connect(ctx, os.Getenv("DATABASE_URL"))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - migrations/: goose migrations
  - store/sqlite/sqlite.go: Single-file equivalent
*/
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/cadrimil/engine/diaria"
	"github.com/cadrimil/engine/factory"
	"github.com/cadrimil/engine/ratesource"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements all storage interfaces on a pgx connection pool.
type Store struct {
	Pool *pgxpool.Pool
}

var (
	_ diaria.MissionStore = (*Store)(nil)
	_ ratesource.Cache    = (*Store)(nil)
)

// Connect opens a pool, checks it and applies pending migrations.
func Connect(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	s := &Store{Pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.Pool.Close()
}

// Migrate applies every pending migration.
func (s *Store) Migrate(ctx context.Context) error {
	dir, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}

	db := stdlib.OpenDBFromPool(s.Pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, dir)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// =============================================================================
// MISSION STORE (diaria.MissionStore interface)
// =============================================================================

const missionColumns = "id, name, created_at, include_allowance, total::text, legal_refs::text"

// Save inserts or replaces a mission and all its periods in one transaction.
func (s *Store) Save(ctx context.Context, m diaria.Mission) error {
	refs := make([]diaria.LegalReferenceDoc, len(m.LegalReferences))
	for i, r := range m.LegalReferences {
		refs[i] = diaria.LegalReferenceDoc{Decree: r.Decree, Date: r.Date}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("failed to encode legal references: %w", err)
	}

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO missions (id, name, created_at, include_allowance, total, legal_refs, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::jsonb, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			created_at = EXCLUDED.created_at,
			include_allowance = EXCLUDED.include_allowance,
			total = EXCLUDED.total,
			legal_refs = EXCLUDED.legal_refs,
			updated_at = now()
	`, string(m.ID), m.Name, m.CreatedAt.UTC(), m.IncludeAllowance, m.Total.String(), string(refsJSON))
	if err != nil {
		return fmt.Errorf("failed to save mission: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue("DELETE FROM mission_periods WHERE mission_id = $1", string(m.ID))
	for i, p := range m.Periods {
		batch.Queue(`
			INSERT INTO mission_periods
			(mission_id, position, id, group_key, locality_key, start_date, end_date, headcount, last_day_full)
			VALUES ($1, $2, $3, $4, $5, $6::date, $7::date, $8, $9)`,
			string(m.ID), i, string(p.ID), string(p.Group), string(p.Locality),
			p.Start.String(), p.End.String(), p.Headcount, p.CountLastDayFull,
		)
	}
	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to save periods: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to save periods: %w", err)
	}

	return tx.Commit(ctx)
}

// Get retrieves a mission by ID.
func (s *Store) Get(ctx context.Context, id diaria.MissionID) (diaria.Mission, error) {
	row := s.Pool.QueryRow(ctx, "SELECT "+missionColumns+" FROM missions WHERE id = $1", string(id))
	m, err := scanMission(row)
	if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := s.Pool.Query(ctx, "SELECT "+missionColumns+" FROM missions ORDER BY created_at DESC, id ASC")
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

// Delete removes a mission; periods go with it through the foreign key.
func (s *Store) Delete(ctx context.Context, id diaria.MissionID) error {
	_, err := s.Pool.Exec(ctx, "DELETE FROM missions WHERE id = $1", string(id))
	return err
}

// Clear removes every mission. The rate table cache is kept.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, "TRUNCATE mission_periods, missions")
	return err
}

func (s *Store) loadPeriods(ctx context.Context, id diaria.MissionID) (map[diaria.MissionID][]diaria.Period, error) {
	query := `
		SELECT mission_id, id, group_key, locality_key, start_date::text, end_date::text, headcount, last_day_full
		FROM mission_periods
	`
	var args []any
	if id != "" {
		query += " WHERE mission_id = $1"
		args = append(args, string(id))
	}
	query += " ORDER BY mission_id, position"

	rows, err := s.Pool.Query(ctx, query, args...)
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

func scanMission(row pgx.Row) (diaria.Mission, error) {
	var (
		m               diaria.Mission
		id, total, refs string
	)
	if err := row.Scan(&id, &m.Name, &m.CreatedAt, &m.IncludeAllowance, &total, &refs); err != nil {
		return diaria.Mission{}, err
	}
	m.ID = diaria.MissionID(id)
	m.CreatedAt = m.CreatedAt.UTC()

	d, err := decimal.NewFromString(total)
	if err != nil {
		return diaria.Mission{}, fmt.Errorf("bad total for %s: %w", id, err)
	}
	m.Total = d

	var docs []diaria.LegalReferenceDoc
	if err := json.Unmarshal([]byte(refs), &docs); err != nil {
		return diaria.Mission{}, fmt.Errorf("failed to decode legal references of %s: %w", id, err)
	}
	for _, r := range docs {
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
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO rate_table_cache (id, document, fetched_at)
		VALUES (1, $1::jsonb, $2)
		ON CONFLICT (id) DO UPDATE SET
			document = EXCLUDED.document,
			fetched_at = EXCLUDED.fetched_at
	`, string(doc), fetchedAt.UTC())
	return err
}

// LoadRateTable returns the cached table or ratesource.ErrNoCachedTable.
func (s *Store) LoadRateTable(ctx context.Context) (diaria.RateTable, time.Time, error) {
	var (
		doc       string
		fetchedAt time.Time
	)
	err := s.Pool.QueryRow(ctx,
		"SELECT document::text, fetched_at FROM rate_table_cache WHERE id = 1",
	).Scan(&doc, &fetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return diaria.RateTable{}, time.Time{}, ratesource.ErrNoCachedTable
	}
	if err != nil {
		return diaria.RateTable{}, time.Time{}, err
	}

	table, err := factory.ParseRateTable([]byte(doc))
	if err != nil {
		return diaria.RateTable{}, time.Time{}, err
	}
	return table, fetchedAt.UTC(), nil
}

// Reset clears all data, including the rate cache.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, "TRUNCATE mission_periods, missions, rate_table_cache")
	return err
}
