/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Rate table endpoints and the 503 before any table is loaded
- Stateless calculation
- Mission save/replace/delete through the router
- Export, import and report downloads
*/
package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadrimil/engine/diaria"
	"github.com/cadrimil/engine/diaria/store"
	"github.com/cadrimil/engine/factory"
	"github.com/cadrimil/engine/ratesource"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testNow = time.Date(2025, time.March, 10, 14, 0, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	handler *Handler
	store   *store.Memory
	router  http.Handler
}

// newTestServer serves the built-in table from an in-memory store, with
// sequential ids and a fixed clock.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, ratesource.Static(factory.DefaultRateTable()))
}

func newTestServerWith(t *testing.T, rates *ratesource.Provider) *testServer {
	t.Helper()
	mem := store.NewMemory()
	h := NewHandler(mem, rates)
	n := 0
	h.NewID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	h.Now = func() time.Time { return testNow }
	return &testServer{t: t, handler: h, store: mem, router: NewRouter(h, nil)}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func march(day int) diaria.Date {
	return diaria.NewDate(2025, time.March, day)
}

func missionRequest() SaveMissionRequest {
	return SaveMissionRequest{
		Name:             "Operação Ágata",
		IncludeAllowance: true,
		Periods: []PeriodDTO{
			{Group: "A", Locality: "l1", Start: march(1), End: march(3), Headcount: 2},
		},
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

// =============================================================================
// RATE TABLE TESTS
// =============================================================================

func TestRateTable_Current(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/tables", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[RateTableResponse](t, rec)
	assert.Equal(t, "static", resp.Source)
	assert.Contains(t, resp.Table.Groups, "A")
	assertDecimal(t, "95.00", resp.Table.Allowance.Value.Value)
}

func TestRateTable_NotLoaded(t *testing.T) {
	// GIVEN: A provider that never loaded anything
	s := newTestServerWith(t, ratesource.NewProvider(nil, ratesource.WithDefaultFallback(false)))

	// THEN: Everything that needs a table answers 503
	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodGet, "/api/tables", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodPost, "/api/calculate", CalculateRequest{}).Code)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodPost, "/api/missions", missionRequest()).Code)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodGet, "/healthz", nil).Code)

	// AND: The built-in table is still readable
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/tables/default", nil).Code)
}

func TestRateTable_ReloadFallsBackToDefault(t *testing.T) {
	s := newTestServerWith(t, ratesource.NewProvider(nil))

	rec := s.do(http.MethodPost, "/api/tables/reload", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[RateTableResponse](t, rec)
	assert.Equal(t, "default", resp.Source)
	assert.NotEmpty(t, resp.LastError)
}

// =============================================================================
// CALCULATION TESTS
// =============================================================================

func TestCalculate(t *testing.T) {
	// GIVEN: Two officers in group A for 1..3 March, with AED
	s := newTestServer(t)
	req := CalculateRequest{
		IncludeAllowance: true,
		Periods: []PeriodDTO{
			{Group: "A", Locality: "l1", Start: march(1), End: march(3), Headcount: 2},
		},
	}

	// WHEN: Calculating
	rec := s.do(http.MethodPost, "/api/calculate", req)

	// THEN: 2.5 days x 406.70 x 2 + 2 x 95.00
	require.Equal(t, http.StatusOK, rec.Code)
	b := decode[BreakdownDTO](t, rec)
	require.Len(t, b.Lines, 1)
	assertDecimal(t, "2.5", b.Lines[0].Days)
	assertDecimal(t, "406.70", b.Lines[0].UnitRate)
	assertDecimal(t, "2033.50", b.Lines[0].Cost)
	assertDecimal(t, "190", b.AllowanceTotal)
	assertDecimal(t, "2223.50", b.Total)
	assert.Equal(t, "2.223,50", b.TotalFormatted)
}

func TestCalculate_UnknownKeysCostNothing(t *testing.T) {
	s := newTestServer(t)
	req := CalculateRequest{Periods: []PeriodDTO{
		{Group: "Z", Locality: "l9", Start: march(1), End: march(3), Headcount: 2},
		{Group: "A", Locality: "l1", Start: march(3), End: march(1), Headcount: 2},
	}}

	rec := s.do(http.MethodPost, "/api/calculate", req)

	require.Equal(t, http.StatusOK, rec.Code)
	assertDecimal(t, "0", decode[BreakdownDTO](t, rec).Total)
}

func TestCalculate_BadBody(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/calculate", `{"periods":[{"start":"03/01/2025"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decode[ErrorResponse](t, rec).Error)
}

// =============================================================================
// MISSION TESTS
// =============================================================================

func TestMissions_SaveAndGet(t *testing.T) {
	s := newTestServer(t)

	// WHEN: Saving a new mission
	rec := s.do(http.MethodPost, "/api/missions", missionRequest())

	// THEN: It is created with an id, a creation time and the recomputed total
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saved := decode[MissionDTO](t, rec)
	assert.Equal(t, "id-2", saved.ID) // id-1 went to the period
	assert.Equal(t, testNow.Format(time.RFC3339), saved.CreatedAt)
	assertDecimal(t, "2223.50", saved.Total)
	assert.Equal(t, "Decreto nº 4.307", saved.LegalReferences[0].Decree)

	rec = s.do(http.MethodGet, "/api/missions/"+saved.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Operação Ágata", decode[MissionDTO](t, rec).Name)
}

func TestMissions_ReplaceKeepsCreatedAt(t *testing.T) {
	s := newTestServer(t)
	saved := decode[MissionDTO](t, s.do(http.MethodPost, "/api/missions", missionRequest()))

	// GIVEN: The clock moved on
	s.handler.Now = func() time.Time { return testNow.Add(48 * time.Hour) }

	// WHEN: Saving again with the id and without the AED
	req := missionRequest()
	req.ID = saved.ID
	req.IncludeAllowance = false
	rec := s.do(http.MethodPost, "/api/missions", req)

	// THEN: Same record, same creation time, new total
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	replaced := decode[MissionDTO](t, rec)
	assert.Equal(t, saved.ID, replaced.ID)
	assert.Equal(t, saved.CreatedAt, replaced.CreatedAt)
	assertDecimal(t, "2033.50", replaced.Total)

	list := decode[[]MissionDTO](t, s.do(http.MethodGet, "/api/missions", nil))
	assert.Len(t, list, 1)
}

func TestMissions_SaveErrors(t *testing.T) {
	s := newTestServer(t)

	backwards := missionRequest()
	backwards.Periods[0].Start, backwards.Periods[0].End = march(3), march(1)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/missions", backwards).Code)

	unknownGroup := missionRequest()
	unknownGroup.Periods[0].Group = "Z"
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/missions", unknownGroup).Code)

	empty := missionRequest()
	empty.Periods = nil
	rec := s.do(http.MethodPost, "/api/missions", empty)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "no periods")

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/missions/nope", nil).Code)
}

func TestMissions_SaveWithUnknownIDInserts(t *testing.T) {
	s := newTestServer(t)

	// WHEN: Saving with an id the store has never seen
	req := missionRequest()
	req.ID = "from-phone"
	rec := s.do(http.MethodPost, "/api/missions", req)

	// THEN: The mission is created under that id
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saved := decode[MissionDTO](t, rec)
	assert.Equal(t, "from-phone", saved.ID)
	assert.Equal(t, testNow.Format(time.RFC3339), saved.CreatedAt)
	assertDecimal(t, "2223.50", saved.Total)

	rec = s.do(http.MethodGet, "/api/missions/from-phone", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Operação Ágata", decode[MissionDTO](t, rec).Name)
}

// swappableFetcher serves whatever table the test put in it last.
type swappableFetcher struct {
	table diaria.RateTable
}

func (f *swappableFetcher) Fetch(context.Context) (diaria.RateTable, error) {
	return f.table, nil
}

func TestMissions_TotalFollowsTableReload(t *testing.T) {
	// GIVEN: A mission saved against the built-in rates
	f := &swappableFetcher{table: factory.DefaultRateTable()}
	rates := ratesource.NewProvider(f)
	require.NoError(t, rates.Load(context.Background()))
	s := newTestServerWith(t, rates)
	saved := decode[MissionDTO](t, s.do(http.MethodPost, "/api/missions", missionRequest()))
	assertDecimal(t, "2223.50", saved.Total)

	// WHEN: A new decree raises A/l1 to 500.00 and the table is reloaded
	raised := factory.DefaultRateTable()
	raised.Rates["A"]["l1"] = decimal.RequireFromString("500.00")
	f.table = raised
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/tables/reload", nil).Code)

	// THEN: Reads price the mission with the new rate: 2.5 x 500 x 2 + 2 x 95
	rec := s.do(http.MethodGet, "/api/missions/"+saved.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[MissionDTO](t, rec)
	assertDecimal(t, "2690.00", got.Total)
	assert.Equal(t, "2.690,00", got.TotalFormatted)

	list := decode[[]MissionDTO](t, s.do(http.MethodGet, "/api/missions", nil))
	require.Len(t, list, 1)
	assertDecimal(t, "2690.00", list[0].Total)
}

func TestMissions_DeleteAndClear(t *testing.T) {
	s := newTestServer(t)
	a := decode[MissionDTO](t, s.do(http.MethodPost, "/api/missions", missionRequest()))
	s.do(http.MethodPost, "/api/missions", missionRequest())

	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/missions/"+a.ID, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/missions/"+a.ID, nil).Code)
	assert.Len(t, decode[[]MissionDTO](t, s.do(http.MethodGet, "/api/missions", nil)), 1)

	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/missions", nil).Code)
	assert.Empty(t, decode[[]MissionDTO](t, s.do(http.MethodGet, "/api/missions", nil)))
}

// =============================================================================
// IMPORT / EXPORT TESTS
// =============================================================================

func TestExportThenImport(t *testing.T) {
	s := newTestServer(t)
	saved := decode[MissionDTO](t, s.do(http.MethodPost, "/api/missions", missionRequest()))

	// WHEN: Exporting the mission
	rec := s.do(http.MethodGet, "/api/missions/"+saved.ID+"/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="Operao_gata.json"`)
	assert.Contains(t, rec.Body.String(), `"nomeMissao": "Operação Ágata"`)

	// AND: Tampering with the cached total before importing it back
	file := strings.Replace(rec.Body.String(), `"valorTotal": 2223.5`, `"valorTotal": 1`, 1)
	rec = s.do(http.MethodPost, "/api/missions/import", file)

	// THEN: The import is an unsaved copy with the real total
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	imported := decode[MissionDTO](t, rec)
	assert.Empty(t, imported.ID)
	assertDecimal(t, "2223.50", imported.Total)
	assert.Len(t, decode[[]MissionDTO](t, s.do(http.MethodGet, "/api/missions", nil)), 1)
}

func TestImport_Save(t *testing.T) {
	s := newTestServer(t)
	m := diaria.Mission{
		Name: "Importada",
		Periods: []diaria.Period{
			{Group: "G", Locality: "l4", Start: march(5), End: march(5), Headcount: 1},
		},
	}
	data, err := diaria.MarshalMission(m)
	require.NoError(t, err)

	rec := s.do(http.MethodPost, "/api/missions/import?save=true", data)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saved := decode[MissionDTO](t, rec)
	assert.NotEmpty(t, saved.ID)
	assertDecimal(t, "73.50", saved.Total)
}

func TestImport_Malformed(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/missions/import", "{not json").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/missions/import", `{"nomeMissao":"x","periodos":[]}`).Code)
}

func TestImport_MissingDate(t *testing.T) {
	s := newTestServer(t)
	file := `{"nomeMissao": "x", "periodos": [{"grupo": "A", "localidade": "l1", "dataFim": "2025-03-03", "quantidadeMilitares": 1}]}`

	rec := s.do(http.MethodPost, "/api/missions/import?save=true", file)

	// THEN: Rejected, and nothing was stored
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "dataInicio")
	assert.Empty(t, decode[[]MissionDTO](t, s.do(http.MethodGet, "/api/missions", nil)))
}

func TestExportAll(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/api/missions", missionRequest())
	s.do(http.MethodPost, "/api/missions", missionRequest())

	rec := s.do(http.MethodGet, "/api/missions/export", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	missions, err := diaria.UnmarshalMissions(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, missions, 2)
}

// =============================================================================
// REPORT TESTS
// =============================================================================

func TestMissionReport(t *testing.T) {
	s := newTestServer(t)
	saved := decode[MissionDTO](t, s.do(http.MethodPost, "/api/missions", missionRequest()))

	html := s.do(http.MethodGet, "/api/missions/"+saved.ID+"/report?format=html", nil)
	require.Equal(t, http.StatusOK, html.Code)
	assert.Equal(t, "text/html; charset=utf-8", html.Header().Get("Content-Type"))
	assert.Contains(t, html.Body.String(), "R$ 2.223,50")

	pdf := s.do(http.MethodGet, "/api/missions/"+saved.ID+"/report?format=pdf", nil)
	require.Equal(t, http.StatusOK, pdf.Code)
	assert.True(t, bytes.HasPrefix(pdf.Body.Bytes(), []byte("%PDF-")))
	assert.Contains(t, pdf.Header().Get("Content-Disposition"), "Operao_gata.pdf")

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/missions/"+saved.ID+"/report?format=docx", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/missions/nope/report?format=pdf", nil).Code)
}

func TestDraftReport(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/missions/report?format=xlsx", missionRequest())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	assert.Empty(t, decode[[]MissionDTO](t, s.do(http.MethodGet, "/api/missions", nil)))
}
