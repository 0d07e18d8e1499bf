package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/mcdev12/auctioneer/go/internal/auction/catalog"
	"github.com/mcdev12/auctioneer/go/internal/auction/engine"
	"github.com/mcdev12/auctioneer/go/internal/auction/ledger"
	"github.com/mcdev12/auctioneer/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ActorHeader carries the caller's identity on every command.
const ActorHeader = "X-Actor-ID"

const maxBodyBytes = 1 << 20

// Auction is the engine surface the HTTP intake drives.
type Auction interface {
	StartRound(ctx context.Context) (engine.Round, error)
	PlaceBid(ctx context.Context, actorID string, amount decimal.Decimal) (engine.Round, error)
	Skip(ctx context.Context) (models.HistoryRecord, error)
	Conclude(ctx context.Context, trigger engine.Trigger) (models.HistoryRecord, error)
	ResetAll(ctx context.Context) error
	RegisterTeamWithCaptain(ctx context.Context, name string, purse decimal.Decimal, captainID string) error
	AssignCaptain(ctx context.Context, team, actorID string) error
	UpdateSettings(ctx context.Context, patch models.SettingsPatch) (models.Settings, error)
	LoadCatalog(ctx context.Context, lots []models.Lot) error
	Authorized(actorID string) bool

	State() engine.State
	CurrentRound() (engine.Round, bool)
	SuggestedBids() []decimal.Decimal
	Teams() []models.Team
	Leaderboard() []ledger.TeamStats
	History() []models.HistoryRecord
	Stats() models.AggregateStats
	Settings() models.Settings
	Catalog() []models.CatalogEntry
}

// Handler serves the auction command and query API.
type Handler struct {
	auction Auction
	now     func() time.Time
}

// NewHandler creates a handler for auction.
func NewHandler(auction Auction, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{auction: auction, now: now}
}

// RegisterRoutes registers the auction API with mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auction/start", h.admin(h.handleStart))
	mux.HandleFunc("POST /api/auction/skip", h.admin(h.handleSkip))
	mux.HandleFunc("POST /api/auction/end", h.admin(h.handleEnd))
	mux.HandleFunc("POST /api/auction/reset", h.admin(h.handleReset))
	mux.HandleFunc("POST /api/auction/teams", h.admin(h.handleRegisterTeam))
	mux.HandleFunc("POST /api/auction/captains", h.admin(h.handleAssignCaptain))
	mux.HandleFunc("POST /api/auction/settings", h.admin(h.handleSettings))
	mux.HandleFunc("POST /api/auction/catalog", h.admin(h.handleCatalog))
	mux.HandleFunc("POST /api/auction/bid", h.handleBid)

	mux.HandleFunc("GET /api/auction/state", h.handleState)
	mux.HandleFunc("GET /api/auction/teams", h.handleTeams)
	mux.HandleFunc("GET /api/auction/history", h.handleHistory)
	mux.HandleFunc("GET /api/auction/stats", h.handleStats)
}

func (h *Handler) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.auction.Authorized(r.Header.Get(ActorHeader)) {
			writeError(w, http.StatusForbidden, "admin rights required")
			return
		}
		next(w, r)
	}
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	round, err := h.auction.StartRound(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

type bidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) handleBid(w http.ResponseWriter, r *http.Request) {
	actor := r.Header.Get(ActorHeader)
	if actor == "" {
		writeError(w, http.StatusUnauthorized, ActorHeader+" header is required")
		return
	}
	var req bidRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	round, err := h.auction.PlaceBid(r.Context(), actor, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

func (h *Handler) handleSkip(w http.ResponseWriter, r *http.Request) {
	rec, err := h.auction.Skip(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	rec, err := h.auction.Conclude(r.Context(), engine.TriggerManual)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.auction.ResetAll(r.Context()); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type registerTeamRequest struct {
	Name    string          `json:"name"`
	Purse   decimal.Decimal `json:"purse"`
	Captain string          `json:"captain_id,omitempty"`
}

func (h *Handler) handleRegisterTeam(w http.ResponseWriter, r *http.Request) {
	var req registerTeamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := h.auction.RegisterTeamWithCaptain(r.Context(), req.Name, req.Purse, req.Captain); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type assignCaptainRequest struct {
	Team      string `json:"team"`
	CaptainID string `json:"captain_id"`
}

func (h *Handler) handleAssignCaptain(w http.ResponseWriter, r *http.Request) {
	var req assignCaptainRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Team == "" || req.CaptainID == "" {
		writeError(w, http.StatusBadRequest, "team and captain_id are required")
		return
	}
	if err := h.auction.AssignCaptain(r.Context(), req.Team, req.CaptainID); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type settingsRequest struct {
	TimerSec     *int             `json:"timer_sec,omitempty"`
	ReminderSec  *int             `json:"reminder_sec,omitempty"`
	MinIncrement *decimal.Decimal `json:"min_increment,omitempty"`
	AutoAdvance  *bool            `json:"auto_advance,omitempty"`
	ShowPhotos   *bool            `json:"show_photos,omitempty"`
}

func (req settingsRequest) patch() models.SettingsPatch {
	p := models.SettingsPatch{
		MinIncrement: req.MinIncrement,
		AutoAdvance:  req.AutoAdvance,
		ShowPhotos:   req.ShowPhotos,
	}
	if req.TimerSec != nil {
		d := time.Duration(*req.TimerSec) * time.Second
		p.TimerDuration = &d
	}
	if req.ReminderSec != nil {
		d := time.Duration(*req.ReminderSec) * time.Second
		p.ReminderLead = &d
	}
	return p
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := h.auction.UpdateSettings(r.Context(), req.patch())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsView(s))
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var lots []models.Lot
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/csv" {
		var err error
		lots, err = catalog.ReadCSV(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else if err := decodeJSON(r, &lots); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(lots) == 0 {
		writeError(w, http.StatusBadRequest, "catalog is empty")
		return
	}
	if err := h.auction.LoadCatalog(r.Context(), lots); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"lots": len(lots)})
}

// StateResponse is the body of GET /api/auction/state.
type StateResponse struct {
	State       engine.State  `json:"state"`
	Round       *engine.Round `json:"round,omitempty"`
	SecondsLeft *int          `json:"seconds_left,omitempty"`
	// SuggestedBids holds the quick-bid amounts while a round is open.
	SuggestedBids []decimal.Decimal `json:"suggested_bids,omitempty"`
	AvailableLots int               `json:"available_lots"`
	TotalLots     int               `json:"total_lots"`
	Settings      SettingsView      `json:"settings"`
}

// SettingsView renders settings with durations in seconds.
type SettingsView struct {
	TimerSec     int             `json:"timer_sec"`
	ReminderSec  int             `json:"reminder_sec"`
	MinIncrement decimal.Decimal `json:"min_increment"`
	AutoAdvance  bool            `json:"auto_advance"`
	ShowPhotos   bool            `json:"show_photos"`
}

func settingsView(s models.Settings) SettingsView {
	return SettingsView{
		TimerSec:     int(s.TimerDuration / time.Second),
		ReminderSec:  int(s.ReminderLead / time.Second),
		MinIncrement: s.MinIncrement,
		AutoAdvance:  s.AutoAdvance,
		ShowPhotos:   s.ShowPhotos,
	}
}

// CurrentState assembles the state response.
func (h *Handler) CurrentState() StateResponse {
	resp := StateResponse{
		State:    h.auction.State(),
		Settings: settingsView(h.auction.Settings()),
	}
	for _, e := range h.auction.Catalog() {
		resp.TotalLots++
		if e.Status == models.LotStatusAvailable {
			resp.AvailableLots++
		}
	}
	if round, ok := h.auction.CurrentRound(); ok {
		resp.Round = &round
		left := int(round.Deadline.Sub(h.now()).Seconds())
		if left < 0 {
			left = 0
		}
		resp.SecondsLeft = &left
		resp.SuggestedBids = h.auction.SuggestedBids()
	}
	return resp
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.CurrentState())
}

type teamView struct {
	models.Team
	Stats ledger.TeamStats `json:"stats"`
}

func (h *Handler) handleTeams(w http.ResponseWriter, r *http.Request) {
	teams := h.auction.Teams()
	stats := make(map[string]ledger.TeamStats)
	for _, s := range h.auction.Leaderboard() {
		stats[s.Team] = s
	}
	out := make([]teamView, 0, len(teams))
	for _, t := range teams {
		out = append(out, teamView{Team: t, Stats: stats[t.Name]})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.auction.History())
}

type statsResponse struct {
	Aggregate   models.AggregateStats `json:"aggregate"`
	Leaderboard []ledger.TeamStats    `json:"leaderboard"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Aggregate:   h.auction.Stats(),
		Leaderboard: h.auction.Leaderboard(),
	})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotCaptain):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrTeamNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrBidTooLow),
		errors.Is(err, engine.ErrInsufficientFunds),
		errors.Is(err, engine.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrRoundAlreadyOpen),
		errors.Is(err, engine.ErrRoundNotOpen),
		errors.Is(err, engine.ErrRoundInProgress),
		errors.Is(err, engine.ErrNoLotsAvailable),
		errors.Is(err, engine.ErrTeamExists),
		errors.Is(err, engine.ErrCaptainAlreadyAssigned),
		errors.Is(err, engine.ErrSettlementInvalid):
		return http.StatusConflict
	case errors.Is(err, engine.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("auction command failed")
	}
	writeError(w, status, err.Error())
}
