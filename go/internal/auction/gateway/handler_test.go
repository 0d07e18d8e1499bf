package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/auctioneer/go/internal/auction/engine"
	"github.com/mcdev12/auctioneer/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noPacer struct{}

func (noPacer) After(time.Duration, func()) {}

type testServer struct {
	clock  *clockwork.FakeClock
	engine *engine.Engine
	mux    *http.ServeMux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := clockwork.NewFakeClock()
	e := engine.New(
		engine.WithClock(clock),
		engine.WithPacer(noPacer{}),
		engine.WithRand(rand.New(rand.NewSource(3))),
	)
	mux := http.NewServeMux()
	NewHandler(e, clock.Now).RegisterRoutes(mux)
	return &testServer{clock: clock, engine: e, mux: mux}
}

func (s *testServer) do(t *testing.T, method, path, actor, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) post(t *testing.T, path, actor, body string) *httptest.ResponseRecorder {
	return s.do(t, http.MethodPost, path, actor, "application/json", body)
}

func (s *testServer) seed(t *testing.T) {
	t.Helper()
	require.Equal(t, http.StatusCreated, s.post(t, "/api/auction/teams", "", `{"name":"Kings","purse":"1000","captain_id":"u1"}`).Code)
	require.Equal(t, http.StatusCreated, s.post(t, "/api/auction/teams", "", `{"name":"Royals","purse":1000}`).Code)
	require.Equal(t, http.StatusNoContent, s.post(t, "/api/auction/captains", "", `{"team":"Royals","captain_id":"u2"}`).Code)

	csv := "name,role,base_price\nVirat,Batsman,100\n"
	rec := s.do(t, http.MethodPost, "/api/auction/catalog", "", "text/csv", csv)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestBidFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	t.Cleanup(func() { _, _ = s.engine.Skip(context.Background()) })

	rec := s.post(t, "/api/auction/bid", "u1", `{"amount":"105"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "no round open yet")

	rec = s.post(t, "/api/auction/start", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var round engine.Round
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &round))
	assert.Equal(t, "Virat", round.Lot.Name)

	assert.Equal(t, http.StatusOK, s.post(t, "/api/auction/bid", "u1", `{"amount":"105"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, s.post(t, "/api/auction/bid", "u2", `{"amount":"100"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, s.post(t, "/api/auction/bid", "u2", `{"amount":"1500"}`).Code)
	assert.Equal(t, http.StatusForbidden, s.post(t, "/api/auction/bid", "nobody", `{"amount":"200"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, s.post(t, "/api/auction/bid", "", `{"amount":"200"}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.post(t, "/api/auction/bid", "u2", `{"amount":`).Code)

	s.clock.Advance(10 * time.Second)
	rec = s.do(t, http.MethodGet, "/api/auction/state", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var state StateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, engine.StateOpen, state.State)
	require.NotNil(t, state.Round)
	assert.Equal(t, "Kings", state.Round.LeadingTeam)
	require.NotNil(t, state.SecondsLeft)
	assert.Equal(t, 20, *state.SecondsLeft)
	assert.Equal(t, 30, state.Settings.TimerSec)
	require.Len(t, state.SuggestedBids, 6)
	for i, want := range []string{"105.1", "105.2", "105.5", "115", "130", "155"} {
		assert.Equal(t, want, state.SuggestedBids[i].String())
	}

	rec = s.post(t, "/api/auction/end", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var hist models.HistoryRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Equal(t, models.SettlementSold, hist.Status)
	assert.Equal(t, "Kings", hist.Team)

	assert.Equal(t, http.StatusConflict, s.post(t, "/api/auction/end", "", "").Code)
	assert.Equal(t, http.StatusConflict, s.post(t, "/api/auction/start", "", "").Code, "catalog exhausted")

	rec = s.do(t, http.MethodGet, "/api/auction/history", "", "", "")
	var history []models.HistoryRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 1)

	rec = s.do(t, http.MethodGet, "/api/auction/stats", "", "", "")
	var stats statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Aggregate.LotsSold)
	require.Len(t, stats.Leaderboard, 2)
	assert.Equal(t, "Kings", stats.Leaderboard[0].Team)

	assert.Equal(t, http.StatusNoContent, s.post(t, "/api/auction/reset", "", "").Code)
	rec = s.do(t, http.MethodGet, "/api/auction/teams", "", "", "")
	var teams []teamView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &teams))
	require.Len(t, teams, 2)
	assert.True(t, teams[0].Purse.Equal(teams[0].OriginalPurse))
}

func TestAdminRoutesRequireAuthorization(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.engine.SetOwner(context.Background(), "owner"))

	rec := s.post(t, "/api/auction/teams", "u1", `{"name":"Kings","purse":1000}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.post(t, "/api/auction/teams", "owner", `{"name":"Kings","purse":1000}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = s.post(t, "/api/auction/teams", "owner", `{"name":"Kings","purse":1000}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.post(t, "/api/auction/teams", "owner", `{"name":"Broke","purse":0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.post(t, "/api/auction/captains", "owner", `{"team":"Nobody","captain_id":"u9"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterTeamWithTakenCaptainRegistersNothing(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.post(t, "/api/auction/teams", "", `{"name":"Kings","purse":"1000","captain_id":"u1"}`).Code)

	rec := s.post(t, "/api/auction/teams", "", `{"name":"Royals","purse":"1000","captain_id":"u1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	_, ok := s.engine.Team("Royals")
	assert.False(t, ok)

	rec = s.post(t, "/api/auction/teams", "", `{"name":"Royals","purse":"1000","captain_id":"u2"}`)
	assert.Equal(t, http.StatusCreated, rec.Code, "retry with a free captain succeeds")
	royals, ok := s.engine.Team("Royals")
	require.True(t, ok)
	assert.Equal(t, "u2", royals.CaptainID)
}

func TestSettingsEndpointClamps(t *testing.T) {
	s := newTestServer(t)
	rec := s.post(t, "/api/auction/settings", "", `{"timer_sec":5,"reminder_sec":30,"min_increment":"0.5","auto_advance":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view SettingsView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 10, view.TimerSec)
	assert.Equal(t, 10, view.ReminderSec)
	assert.Equal(t, "0.5", view.MinIncrement.String())
	assert.False(t, view.AutoAdvance)
	assert.True(t, view.ShowPhotos)
}

func TestCatalogEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auction/catalog", "", "text/csv", "name,role\nA,B\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.post(t, "/api/auction/catalog", "", `[]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, err := json.Marshal([]models.Lot{{Name: "A", Role: "Bowler"}, {Name: "B", Role: "Batsman"}})
	require.NoError(t, err)
	rec = s.do(t, http.MethodPost, "/api/auction/catalog", "", "application/json", string(bytes.TrimSpace(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, s.engine.Catalog(), 2)
}
