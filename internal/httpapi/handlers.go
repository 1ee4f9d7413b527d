// Package httpapi exposes the draft engine over REST plus the WebSocket
// event stream. Handlers are thin: decode, call the engine, map the result.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"awards-draft-backend/internal/draft/engine"
	"awards-draft-backend/internal/models"
)

// Handler holds the API's dependencies.
type Handler struct {
	engine *engine.Engine
}

// NewHandler creates the REST handler set.
func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{engine: eng}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// writeEngineError maps engine precondition codes to HTTP statuses:
// missing entities are 404, bad input is 400, violated preconditions are 409.
func writeEngineError(w http.ResponseWriter, err error) {
	code := engine.CodeOf(err)
	switch code {
	case engine.CodeDraftNotFound, engine.CodePlanNotFound, engine.CodeNominationNotFound:
		writeError(w, http.StatusNotFound, string(code), err.Error())
	case engine.CodePrereqMissingSeats, engine.CodePrereqMissingNominations, engine.CodeInvalidAutodraftConfig:
		writeError(w, http.StatusBadRequest, string(code), err.Error())
	case engine.CodeDraftNotInProgress, engine.CodeNotActiveTurn,
		engine.CodeNominationAlreadyPicked, engine.CodeInvalidTransition:
		writeError(w, http.StatusConflict, string(code), err.Error())
	default:
		log.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
		return false
	}
	return true
}

func draftIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "draftID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DRAFT_ID", "draft ID must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

type createDraftRequest struct {
	SeasonID         uuid.UUID           `json:"season_id"`
	SeatOwners       []uuid.UUID         `json:"seat_owners"`
	PicksPerSeat     int                 `json:"picks_per_seat"`
	PickTimerSeconds *int                `json:"pick_timer_seconds,omitempty"`
	Categories       []models.Category   `json:"categories"`
	Nominations      []models.Nomination `json:"nominations"`
}

// CreateDraft handles POST /api/drafts.
func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var req createDraftRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PicksPerSeat <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_PICKS_PER_SEAT", "picks_per_seat must be positive")
		return
	}

	draft, err := h.engine.CreateDraft(r.Context(), engine.CreateDraftRequest{
		SeasonID:         req.SeasonID,
		SeatOwners:       req.SeatOwners,
		PicksPerSeat:     req.PicksPerSeat,
		PickTimerSeconds: req.PickTimerSeconds,
		Categories:       req.Categories,
		Nominations:      req.Nominations,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

// GetSnapshot handles GET /api/drafts/{draftID}.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	draftID, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	snap, err := h.engine.Snapshot(r.Context(), draftID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ListEvents handles GET /api/drafts/{draftID}/events?after_version=N.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	draftID, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	var afterVersion int64
	if av := r.URL.Query().Get("after_version"); av != "" {
		var err error
		afterVersion, err = strconv.ParseInt(av, 10, 64)
		if err != nil || afterVersion < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_AFTER_VERSION", "after_version must be a non-negative integer")
			return
		}
	}
	out, err := h.engine.EventsSince(r.Context(), draftID, afterVersion)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// StartDraft handles POST /api/drafts/{draftID}/start.
func (h *Handler) StartDraft(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.Start)
}

// ResumeDraft handles POST /api/drafts/{draftID}/resume.
func (h *Handler) ResumeDraft(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.Resume)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// PauseDraft handles POST /api/drafts/{draftID}/pause.
func (h *Handler) PauseDraft(w http.ResponseWriter, r *http.Request) {
	draftID, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}
	draft, err := h.engine.Pause(r.Context(), draftID, req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// CancelDraft handles POST /api/drafts/{draftID}/cancel.
func (h *Handler) CancelDraft(w http.ResponseWriter, r *http.Request) {
	draftID, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}
	draft, err := h.engine.Cancel(r.Context(), draftID, req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// transition runs a body-less lifecycle operation and writes the draft back.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, draftID uuid.UUID) (*models.Draft, error)) {
	draftID, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	draft, err := op(r.Context(), draftID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

type submitPickRequest struct {
	SeatNumber   int       `json:"seat_number"`
	NominationID uuid.UUID `json:"nomination_id"`
	RequestID    uuid.UUID `json:"request_id"`
}

// SubmitPick handles POST /api/drafts/{draftID}/picks.
func (h *Handler) SubmitPick(w http.ResponseWriter, r *http.Request) {
	draftID, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	var req submitPickRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.RequestID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "MISSING_REQUEST_ID", "request_id is required for idempotency")
		return
	}
	if req.SeatNumber <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_SEAT_NUMBER", "seat_number must be positive")
		return
	}

	result, err := h.engine.SubmitPick(r.Context(), engine.SubmitPickRequest{
		DraftID:      draftID,
		SeatNumber:   req.SeatNumber,
		NominationID: req.NominationID,
		RequestID:    req.RequestID,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// TickDraft handles POST /api/drafts/{draftID}/tick: an operational hook that
// forces an immediate deadline check, e.g. after restoring from backup.
func (h *Handler) TickDraft(w http.ResponseWriter, r *http.Request) {
	draftID, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	result, err := h.engine.Tick(r.Context(), draftID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if result == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"expired": false})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func seatNumberParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "seatNumber"))
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_SEAT_NUMBER", "seat number must be a positive integer")
		return 0, false
	}
	return n, true
}

// GetAutodraft handles GET /api/drafts/{draftID}/seats/{seatNumber}/autodraft.
func (h *Handler) GetAutodraft(w http.ResponseWriter, r *http.Request) {
	draftID, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	seatNumber, ok := seatNumberParam(w, r)
	if !ok {
		return
	}
	cfg, err := h.engine.AutodraftConfig(r.Context(), draftID, seatNumber)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type putAutodraftRequest struct {
	Enabled  bool                     `json:"enabled"`
	Strategy models.AutodraftStrategy `json:"strategy"`
	PlanID   *uuid.UUID               `json:"plan_id,omitempty"`
}

// PutAutodraft handles PUT /api/drafts/{draftID}/seats/{seatNumber}/autodraft.
func (h *Handler) PutAutodraft(w http.ResponseWriter, r *http.Request) {
	draftID, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	seatNumber, ok := seatNumberParam(w, r)
	if !ok {
		return
	}
	var req putAutodraftRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Strategy == "" {
		req.Strategy = models.StrategyRandom
	}

	cfg, err := h.engine.SetAutodraftConfig(r.Context(), models.AutodraftConfig{
		DraftID:    draftID,
		SeatNumber: seatNumber,
		Enabled:    req.Enabled,
		Strategy:   req.Strategy,
		PlanID:     req.PlanID,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type putPlanRequest struct {
	NominationIDs []uuid.UUID `json:"nomination_ids"`
}

// CreatePlan handles POST /api/plans.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req putPlanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	plan, err := h.engine.PutPlan(r.Context(), models.AutodraftPlan{NominationIDs: req.NominationIDs})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

// GetPlan handles GET /api/plans/{planID}.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	planID, err := uuid.Parse(chi.URLParam(r, "planID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PLAN_ID", "plan ID must be a UUID")
		return
	}
	plan, err := h.engine.Plan(r.Context(), planID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
