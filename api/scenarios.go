/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built sets of saved missions for demos and manual testing
	of the mission list, reports and exports. Every mission is saved
	through a diaria.Session, so totals come from the current rate table.

AVAILABLE SCENARIOS:

	inspection:       One short trip to Brasília, last day counted in full
	border-operation: Large troop deployment with AED
	training-year:    All of the above plus a month-long course

HOW SCENARIOS WORK:
 1. Clear saved missions (the rate table cache is kept)
 2. Build each mission in a fresh session (validated against the table)
 3. Save them with staggered creation times so the list order is stable

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "border-operation"}

NOTE:

	Scenarios delete saved missions. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Session and error helpers
  - factory/defaults.go: Group and locality keys used below
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/cadrimil/engine/diaria"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type demoMission struct {
	Name             string
	IncludeAllowance bool
	Periods          []diaria.Period
}

type scenario struct {
	ScenarioDTO
	missions []demoMission
}

var (
	inspectionMission = demoMission{
		Name: "Inspeção em Brasília",
		Periods: []diaria.Period{
			{Group: "B", Locality: "l1", Start: diaria.MustParseDate("2025-06-02"), End: diaria.MustParseDate("2025-06-04"), Headcount: 1, CountLastDayFull: true},
		},
	}

	borderMission = demoMission{
		Name:             "Operação Ágata - Fronteira Oeste",
		IncludeAllowance: true,
		Periods: []diaria.Period{
			{Group: "E", Locality: "l4", Start: diaria.MustParseDate("2025-05-05"), End: diaria.MustParseDate("2025-05-14"), Headcount: 12},
			{Group: "D", Locality: "l3", Start: diaria.MustParseDate("2025-05-05"), End: diaria.MustParseDate("2025-05-14"), Headcount: 2},
		},
	}

	courseMission = demoMission{
		Name:             "Curso de Logística - São Paulo",
		IncludeAllowance: true,
		Periods: []diaria.Period{
			{Group: "C", Locality: "l2", Start: diaria.MustParseDate("2025-08-04"), End: diaria.MustParseDate("2025-08-29"), Headcount: 3},
		},
	}
)

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "inspection",
			Name:        "Inspeção",
			Description: "One officer, three days in Brasília, last day counted in full",
		},
		missions: []demoMission{inspectionMission},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "border-operation",
			Name:        "Operação de Fronteira",
			Description: "Fourteen people across two groups for ten days, with AED",
		},
		missions: []demoMission{borderMission},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "training-year",
			Name:        "Ano de Instrução",
			Description: "Inspection, border operation and a month-long course",
		},
		missions: []demoMission{inspectionMission, borderMission, courseMission},
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
		dtos[i].Missions = len(s.missions)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the last loaded scenario, or null.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	s, ok := findScenario(current)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	dto := s.ScenarioDTO
	dto.Missions = len(s.missions)
	writeJSON(w, http.StatusOK, dto)
}

// LoadScenario replaces the saved missions with the scenario's.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	saved, err := h.loadScenario(r.Context(), s)
	if err != nil {
		writeDomainError(w, "Failed to load scenario", err)
		return
	}

	h.setScenario(s.ID)
	h.log.Info("scenario loaded", zap.String("scenario", s.ID), zap.Int("missions", len(saved)))

	dtos := make([]MissionDTO, len(saved))
	for i, m := range saved {
		dtos[i] = toMissionDTO(m)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": s.ID,
		"missions": dtos,
	})
}

// loadScenario saves the missions oldest first, one minute apart, ending at
// the current time.
func (h *Handler) loadScenario(ctx context.Context, sc scenario) ([]diaria.Mission, error) {
	if err := h.Store.Clear(ctx); err != nil {
		return nil, err
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	base := now().UTC().Add(-time.Duration(len(sc.missions)-1) * time.Minute)

	saved := make([]diaria.Mission, 0, len(sc.missions))
	for i, dm := range sc.missions {
		s, err := h.newSession()
		if err != nil {
			return nil, err
		}
		created := base.Add(time.Duration(i) * time.Minute)
		s.Now = func() time.Time { return created }

		s.SetName(dm.Name)
		s.SetIncludeAllowance(dm.IncludeAllowance)
		if err := s.SetPeriods(dm.Periods); err != nil {
			return nil, fmt.Errorf("%s: %w", dm.Name, err)
		}
		m, err := s.Save(ctx, h.Store)
		if err != nil {
			return nil, err
		}
		saved = append(saved, m)
	}
	return saved, nil
}
