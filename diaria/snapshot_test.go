package diaria_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadrimil/engine/diaria"
	"github.com/cadrimil/engine/factory"
)

func sampleMission() diaria.Mission {
	m := diaria.Mission{
		ID:               "m-1",
		Name:             "Missão Sudeste",
		CreatedAt:        time.Date(2025, time.March, 10, 14, 22, 5, 0, time.UTC),
		IncludeAllowance: true,
		Periods: []diaria.Period{
			{ID: "p-1", Group: "A", Locality: "l1", Start: march(1), End: march(3), Headcount: 2},
			{ID: "p-2", Group: "E", Locality: "l3", Start: march(4), End: march(6), Headcount: 3, CountLastDayFull: true},
		},
		LegalReferences: []diaria.LegalReference{{Decree: "Decreto nº 4.307", Date: "18/07/2002"}},
	}
	m.Recompute(factory.DefaultRateTable())
	return m
}

func TestSnapshot_RoundTrip(t *testing.T) {
	// GIVEN: A saved mission
	m := sampleMission()

	// WHEN: Exporting and importing it
	data, err := diaria.MarshalMission(m)
	require.NoError(t, err)
	got, err := diaria.UnmarshalMission(data)
	require.NoError(t, err)

	// THEN: Every field survives
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, m.Name, got.Name)
	assert.True(t, m.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, m.IncludeAllowance, got.IncludeAllowance)
	assert.True(t, m.Total.Equal(got.Total), "total %s != %s", m.Total, got.Total)
	assert.Equal(t, m.Periods, got.Periods)
	assert.Equal(t, m.LegalReferences, got.LegalReferences)
}

func TestSnapshot_FieldNames(t *testing.T) {
	data, err := diaria.MarshalMission(sampleMission())
	require.NoError(t, err)

	for _, key := range []string{
		`"nomeMissao"`, `"dataCriacao"`, `"periodos"`, `"incluirAED"`, `"valorTotal"`,
		`"decretosReferencia"`, `"grupo"`, `"localidade"`, `"dataInicio"`, `"dataFim"`,
		`"quantidadeMilitares"`, `"contarUltimoDiaInteiro"`,
	} {
		assert.Contains(t, string(data), key)
	}
	assert.Contains(t, string(data), `"dataInicio": "2025-03-01"`)
}

func TestSnapshot_LenientInput(t *testing.T) {
	// GIVEN: A file from an older app version with timestamps, a string
	// headcount and a missing total
	data := []byte(`{
		"id": "old",
		"nomeMissao": "Antiga",
		"dataCriacao": "2024-11-02T09:00:00.000Z",
		"periodos": [
			{"id": "a", "grupo": "A", "localidade": "l1",
			 "dataInicio": "2025-03-01T03:00:00.000Z", "dataFim": "2025-03-03",
			 "quantidadeMilitares": "2", "contarUltimoDiaInteiro": false},
			{"id": "b", "grupo": "B", "localidade": "l2",
			 "dataInicio": "2025-03-01", "dataFim": "2025-03-01",
			 "quantidadeMilitares": "muitos"}
		],
		"incluirAED": true
	}`)

	m, err := diaria.UnmarshalMission(data)
	require.NoError(t, err)

	require.Len(t, m.Periods, 2)
	assert.Equal(t, march(1), m.Periods[0].Start)
	assert.Equal(t, 2, m.Periods[0].Headcount)
	assert.Equal(t, 0, m.Periods[1].Headcount)
	assert.True(t, m.Total.IsZero())
	assert.Empty(t, m.LegalReferences)

	m.Recompute(factory.DefaultRateTable())
	assertDecimal(t, "recomputed", "2223.50", m.Total)
}

func TestSnapshot_Malformed(t *testing.T) {
	_, err := diaria.UnmarshalMission([]byte(`{"periodos": "nope"`))
	assert.ErrorIs(t, err, diaria.ErrInvalidSnapshot)
	assert.True(t, diaria.IsClientError(err))
}

func TestSnapshot_MissingDates(t *testing.T) {
	// GIVEN: Files whose period lacks a start or an end date
	cases := map[string]string{
		"no start": `{"periodos": [{"grupo": "A", "localidade": "l1", "dataFim": "2025-03-03", "quantidadeMilitares": 1}]}`,
		"no end":   `{"periodos": [{"grupo": "A", "localidade": "l1", "dataInicio": "2025-03-01", "quantidadeMilitares": 1}]}`,
		"empty":    `{"periodos": [{"grupo": "A", "localidade": "l1", "dataInicio": "", "dataFim": "", "quantidadeMilitares": 1}]}`,
	}

	for name, data := range cases {
		// WHEN: Decoding
		_, err := diaria.UnmarshalMission([]byte(data))

		// THEN: The file is rejected instead of priced from year 1
		assert.ErrorIs(t, err, diaria.ErrInvalidSnapshot, name)
		assert.True(t, diaria.IsClientError(err), name)
	}

	_, err := diaria.UnmarshalMissions([]byte(`[{"periodos": [{"grupo": "A", "localidade": "l1", "dataFim": "2025-03-03"}]}]`))
	assert.ErrorIs(t, err, diaria.ErrInvalidSnapshot)
}

func TestSnapshot_List(t *testing.T) {
	a := sampleMission()
	b := sampleMission()
	b.ID = "m-2"

	data, err := diaria.MarshalMissions([]diaria.Mission{a, b})
	require.NoError(t, err)
	got, err := diaria.UnmarshalMissions(data)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, diaria.MissionID("m-2"), got[1].ID)
}

func TestParseDate(t *testing.T) {
	d, err := diaria.ParseDate("2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, march(1), d)

	d, err = diaria.ParseDate("2025-03-01T23:30:00-03:00")
	require.NoError(t, err)
	assert.Equal(t, march(1), d)

	_, err = diaria.ParseDate("01/03/2025")
	assert.Error(t, err)

	assert.Equal(t, march(1), diaria.MustParseDate("2025-03-01"))
	assert.Panics(t, func() { diaria.MustParseDate("") })

	assert.Equal(t, 2, diaria.DaysBetween(march(1), march(3)))
	assert.Equal(t, -2, diaria.DaysBetween(march(3), march(1)))
}
