package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadrimil/engine/diaria"
	"github.com/cadrimil/engine/factory"
	"github.com/cadrimil/engine/ratesource"
)

// newTestStore connects to CADRIMIL_TEST_DATABASE_URL. The database is
// wiped before and after each test.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("CADRIMIL_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CADRIMIL_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := Connect(ctx, url)
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx))
	t.Cleanup(func() {
		_ = store.Reset(context.Background())
		store.Close()
	})
	return store
}

func testMission(id string, created time.Time) diaria.Mission {
	m := diaria.Mission{
		ID:               diaria.MissionID(id),
		Name:             "Missão " + id,
		CreatedAt:        created,
		IncludeAllowance: true,
		Periods: []diaria.Period{
			{ID: "p-1", Group: "A", Locality: "l1", Start: diaria.NewDate(2025, 3, 1), End: diaria.NewDate(2025, 3, 3), Headcount: 2},
			{ID: "p-2", Group: "G", Locality: "l4", Start: diaria.NewDate(2025, 3, 4), End: diaria.NewDate(2025, 3, 4), Headcount: 1, CountLastDayFull: true},
		},
		LegalReferences: []diaria.LegalReference{{Decree: "Decreto nº 4.307", Date: "18/07/2002"}},
	}
	m.Recompute(factory.DefaultRateTable())
	return m
}

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	m := testMission("m-1", time.Date(2025, 3, 10, 14, 22, 5, 123000000, time.UTC))

	require.NoError(t, store.Save(ctx, m))
	got, err := store.Get(ctx, "m-1")
	require.NoError(t, err)

	assert.Equal(t, m.Name, got.Name)
	assert.True(t, m.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, m.Total.Equal(got.Total), "%s != %s", m.Total, got.Total)
	assert.Equal(t, m.Periods, got.Periods)
	assert.Equal(t, m.LegalReferences, got.LegalReferences)
}

func TestStore_GetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, diaria.ErrMissionNotFound)
}

func TestStore_ListAndReplace(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, testMission("old", base)))
	newer := testMission("new", base.Add(time.Hour))
	require.NoError(t, store.Save(ctx, newer))

	newer.Periods = newer.Periods[:1]
	require.NoError(t, store.Save(ctx, newer))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, diaria.MissionID("new"), list[0].ID)
	assert.Len(t, list[0].Periods, 1)
	assert.Len(t, list[1].Periods, 2)

	require.NoError(t, store.Delete(ctx, "old"))
	require.NoError(t, store.Clear(ctx))
	list, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_RateTableCache(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, _, err := store.LoadRateTable(ctx)
	assert.ErrorIs(t, err, ratesource.ErrNoCachedTable)

	table := factory.DefaultRateTable()
	table.Rates["A"]["l1"] = decimal.NewFromInt(500)
	fetched := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRateTable(ctx, table, fetched))

	got, at, err := store.LoadRateTable(ctx)
	require.NoError(t, err)
	assert.True(t, at.Equal(fetched))
	assert.True(t, decimal.NewFromInt(500).Equal(diaria.UnitRate("A", "l1", got)))
}
