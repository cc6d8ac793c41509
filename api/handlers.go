/*
handlers.go - HTTP API handlers for the per-diem calculator

PURPOSE:
  Exposes the calculation core, saved missions, reports and the rate table
  over REST. Handles HTTP request/response, JSON serialization, and
  delegates to diaria (calculation, session), report and ratesource.

ENDPOINTS:
  Rate tables:
    GET    /api/tables                   Current table and its source
    POST   /api/tables/reload            Fetch again (remote -> cache -> default)
    GET    /api/tables/default           Built-in table

  Calculation:
    POST   /api/calculate                Periods + AED flag -> breakdown

  Missions:
    GET    /api/missions                 List saved missions, newest first
    POST   /api/missions                 Save (id present = replace)
    DELETE /api/missions                 Delete every mission
    GET    /api/missions/export          All missions as one export file
    POST   /api/missions/import          Export file -> unsaved copy (?save=true stores it)
    POST   /api/missions/report          Report of an unsaved mission
    GET    /api/missions/{id}            One mission
    DELETE /api/missions/{id}            Delete
    GET    /api/missions/{id}/export     Export file
    GET    /api/missions/{id}/report     ?format=html|pdf|xlsx

  Scenarios:
    GET    /api/scenarios                List demo data sets
    POST   /api/scenarios/load           Replace saved missions with one

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: any diaria.MissionStore (sqlite, postgres, memory)
  - Rates: the rate table provider; every request reads Current() once
    and uses that table for the whole request.
  Each mutating request builds a short-lived diaria.Session, so totals are
  always recomputed by the same code path as the CLI.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unknown report format
  - 404: Mission not found
  - 503: No rate table loaded yet
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/cadrimil/engine/diaria"
	"github.com/cadrimil/engine/factory"
	"github.com/cadrimil/engine/internal/logging"
	"github.com/cadrimil/engine/ratesource"
	"github.com/cadrimil/engine/report"
)

// maxImportSize bounds uploaded export files.
const maxImportSize = 5 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store diaria.MissionStore
	Rates *ratesource.Provider

	// NewID and Now are passed to every session; tests pin them.
	NewID func() string
	Now   func() time.Time

	log *zap.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store and rate provider.
func NewHandler(store diaria.MissionStore, rates *ratesource.Provider) *Handler {
	return &Handler{
		Store: store,
		Rates: rates,
		log:   logging.Named("api"),
	}
}

// newSession returns a session bound to the current table, or an error the
// caller turns into 503.
func (h *Handler) newSession() (*diaria.Session, error) {
	table, err := h.Rates.Current()
	if err != nil {
		return nil, err
	}
	s := diaria.NewSession(table)
	if h.NewID != nil {
		s.NewID = h.NewID
	}
	if h.Now != nil {
		s.Now = h.Now
	}
	return s, nil
}

// =============================================================================
// RATE TABLE HANDLERS
// =============================================================================

// GetRateTable returns the table every calculation currently uses.
func (h *Handler) GetRateTable(w http.ResponseWriter, r *http.Request) {
	table, err := h.Rates.Current()
	if err != nil {
		writeDomainError(w, "Rate table not loaded", err)
		return
	}
	writeJSON(w, http.StatusOK, rateTableResponse(table, h.Rates.Status()))
}

// ReloadRateTable fetches the table again. A failed fetch still answers 200
// when a table is available; last_error says what went wrong.
func (h *Handler) ReloadRateTable(w http.ResponseWriter, r *http.Request) {
	if err := h.Rates.Reload(r.Context()); err != nil {
		h.log.Warn("rate table reload failed", zap.Error(err))
	}
	table, err := h.Rates.Current()
	if err != nil {
		writeDomainError(w, "Rate table unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, rateTableResponse(table, h.Rates.Status()))
}

// GetDefaultRateTable returns the built-in table.
func (h *Handler) GetDefaultRateTable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factory.ToDocument(factory.DefaultRateTable()))
}

func rateTableResponse(table diaria.RateTable, st ratesource.Status) RateTableResponse {
	resp := RateTableResponse{
		Source: string(st.Source),
		Table:  factory.ToDocument(table),
	}
	if !st.LoadedAt.IsZero() {
		resp.LoadedAt = st.LoadedAt.UTC().Format(time.RFC3339)
	}
	if st.LastErr != nil {
		resp.LastError = st.LastErr.Error()
	}
	return resp
}

// =============================================================================
// CALCULATION HANDLERS
// =============================================================================

// Calculate prices a list of periods without saving anything. Unknown keys
// and invalid headcounts are not rejected; they cost zero.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	table, err := h.Rates.Current()
	if err != nil {
		writeDomainError(w, "Rate table not loaded", err)
		return
	}

	b := diaria.Breakdown(fromPeriodDTOs(req.Periods), req.IncludeAllowance, table)
	writeJSON(w, http.StatusOK, toBreakdownDTO(b))
}

// =============================================================================
// MISSION HANDLERS
// =============================================================================

// ListMissions returns all saved missions, newest first.
func (h *Handler) ListMissions(w http.ResponseWriter, r *http.Request) {
	missions, err := h.Store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list missions", err)
		return
	}

	dtos := make([]MissionDTO, len(missions))
	for i, m := range missions {
		dtos[i] = toMissionDTO(h.repriced(m))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMission returns a single mission.
func (h *Handler) GetMission(w http.ResponseWriter, r *http.Request) {
	m, err := h.Store.Get(r.Context(), missionID(r))
	if err != nil {
		writeDomainError(w, "Failed to get mission", err)
		return
	}
	writeJSON(w, http.StatusOK, toMissionDTO(h.repriced(m)))
}

// repriced recomputes the stored total against the current table. Without
// a loaded table the stored total is returned as is.
func (h *Handler) repriced(m diaria.Mission) diaria.Mission {
	table, err := h.Rates.Current()
	if err != nil {
		return m
	}
	m.Recompute(table)
	return m
}

// SaveMission inserts a mission, or replaces it when the body carries the
// id of a stored one. Replacing keeps the original creation time; an id the
// store does not know is inserted under that id.
func (h *Handler) SaveMission(w http.ResponseWriter, r *http.Request) {
	var req SaveMissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, err := h.newSession()
	if err != nil {
		writeDomainError(w, "Rate table not loaded", err)
		return
	}

	status := http.StatusCreated
	if req.ID != "" {
		id := diaria.MissionID(req.ID)
		err := s.Edit(r.Context(), h.Store, id)
		switch {
		case err == nil:
			status = http.StatusOK
		case errors.Is(err, diaria.ErrMissionNotFound):
			s.SetID(id)
		default:
			writeDomainError(w, "Failed to load mission", err)
			return
		}
	}

	s.SetName(req.Name)
	s.SetIncludeAllowance(req.IncludeAllowance)
	if err := s.SetPeriods(fromPeriodDTOs(req.Periods)); err != nil {
		writeDomainError(w, "Invalid period", err)
		return
	}

	saved, err := s.Save(r.Context(), h.Store)
	if err != nil {
		writeDomainError(w, "Failed to save mission", err)
		return
	}

	h.log.Info("mission saved",
		zap.String("id", string(saved.ID)),
		zap.Int("periods", len(saved.Periods)),
		zap.String("total", saved.Total.String()),
	)
	writeJSON(w, status, toMissionDTO(saved))
}

// DeleteMission deletes a mission. Unknown ids are not an error.
func (h *Handler) DeleteMission(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Delete(r.Context(), missionID(r)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete mission", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// ClearMissions deletes every saved mission.
func (h *Handler) ClearMissions(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear missions", err)
		return
	}
	h.setScenario("")
	writeJSON(w, http.StatusOK, map[string]any{"status": "cleared"})
}

// =============================================================================
// IMPORT / EXPORT HANDLERS
// =============================================================================

// ExportMission returns the export file of one mission.
func (h *Handler) ExportMission(w http.ResponseWriter, r *http.Request) {
	m, err := h.Store.Get(r.Context(), missionID(r))
	if err != nil {
		writeDomainError(w, "Failed to get mission", err)
		return
	}

	data, err := diaria.MarshalMission(m)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to export mission", err)
		return
	}
	writeAttachment(w, "application/json", report.FileName(m.Name, "json"), data)
}

// ExportMissions returns every saved mission as one export file.
func (h *Handler) ExportMissions(w http.ResponseWriter, r *http.Request) {
	missions, err := h.Store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list missions", err)
		return
	}

	data, err := diaria.MarshalMissions(missions)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to export missions", err)
		return
	}
	writeAttachment(w, "application/json", "missoes.json", data)
}

// ImportMission reads an export file and returns it as a new, unsaved
// mission with a recomputed total. With ?save=true it is stored as well.
func (h *Handler) ImportMission(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}

	m, err := diaria.UnmarshalMission(data)
	if err != nil {
		writeDomainError(w, "Invalid mission file", err)
		return
	}

	s, err := h.newSession()
	if err != nil {
		writeDomainError(w, "Rate table not loaded", err)
		return
	}
	s.Import(m)

	if save, _ := strconv.ParseBool(r.URL.Query().Get("save")); save {
		saved, err := s.Save(r.Context(), h.Store)
		if err != nil {
			writeDomainError(w, "Failed to save mission", err)
			return
		}
		writeJSON(w, http.StatusCreated, toMissionDTO(saved))
		return
	}

	snap, err := s.Snapshot()
	if err != nil {
		writeDomainError(w, "Invalid mission file", err)
		return
	}
	writeJSON(w, http.StatusOK, toMissionDTO(snap))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// MissionReport renders a saved mission.
func (h *Handler) MissionReport(w http.ResponseWriter, r *http.Request) {
	renderer, err := report.ForFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown report format", err)
		return
	}

	m, err := h.Store.Get(r.Context(), missionID(r))
	if err != nil {
		writeDomainError(w, "Failed to get mission", err)
		return
	}

	h.renderReport(w, renderer, m)
}

// DraftReport renders a mission that has not been saved.
func (h *Handler) DraftReport(w http.ResponseWriter, r *http.Request) {
	renderer, err := report.ForFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown report format", err)
		return
	}

	var req SaveMissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, err := h.newSession()
	if err != nil {
		writeDomainError(w, "Rate table not loaded", err)
		return
	}
	s.SetName(req.Name)
	s.SetIncludeAllowance(req.IncludeAllowance)
	if err := s.SetPeriods(fromPeriodDTOs(req.Periods)); err != nil {
		writeDomainError(w, "Invalid period", err)
		return
	}

	m, err := s.Snapshot()
	if err != nil {
		writeDomainError(w, "Nothing to report", err)
		return
	}
	h.renderReport(w, renderer, m)
}

// renderReport buffers the whole document so a rendering error can still be
// reported as JSON.
func (h *Handler) renderReport(w http.ResponseWriter, renderer report.Renderer, m diaria.Mission) {
	table, err := h.Rates.Current()
	if err != nil {
		writeDomainError(w, "Rate table not loaded", err)
		return
	}

	var buf bytes.Buffer
	if err := renderer.Render(&buf, m, table); err != nil {
		h.log.Error("report rendering failed", zap.String("mission", string(m.ID)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to render report", err)
		return
	}

	name := report.FileName(m.Name, renderer.Extension())
	writeAttachment(w, renderer.ContentType(), name, buf.Bytes())
}

// =============================================================================
// HELPERS
// =============================================================================

func missionID(r *http.Request) diaria.MissionID {
	return diaria.MissionID(chi.URLParam(r, "id"))
}

func (h *Handler) setScenario(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = id
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error kind.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case diaria.IsNotFound(err):
		return http.StatusNotFound
	case diaria.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, diaria.ErrRateTableUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
