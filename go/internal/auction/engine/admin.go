package engine

import (
	"context"
	"fmt"

	"github.com/mcdev12/auctioneer/go/internal/auction/events"
	"github.com/mcdev12/auctioneer/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// RegisterTeam adds a team with a starting purse.
func (e *Engine) RegisterTeam(_ context.Context, name string, purse decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ledger.RegisterTeam(name, purse); err != nil {
		return err
	}
	log.Info().Str("team", name).Str("purse", purse.String()).Msg("team registered")
	e.persistLocked()
	return nil
}

// RegisterTeamWithCaptain registers a team and its captain as one command.
// On failure nothing is registered.
func (e *Engine) RegisterTeamWithCaptain(_ context.Context, name string, purse decimal.Decimal, captainID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ledger.RegisterTeamWithCaptain(name, purse, captainID); err != nil {
		return err
	}
	log.Info().Str("team", name).Str("purse", purse.String()).Str("captain_id", captainID).Msg("team registered")
	e.persistLocked()
	return nil
}

// AssignCaptain makes actorID the bidder for team.
func (e *Engine) AssignCaptain(_ context.Context, team, actorID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ledger.AssignCaptain(team, actorID); err != nil {
		return err
	}
	log.Info().Str("team", team).Str("captain_id", actorID).Msg("captain assigned")
	e.persistLocked()
	return nil
}

// LoadCatalog replaces the lot pool. Only allowed between rounds.
func (e *Engine) LoadCatalog(_ context.Context, lots []models.Lot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		return ErrRoundInProgress
	}
	if err := e.catalog.Load(lots); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	log.Info().Int("lots", len(lots)).Msg("catalog loaded")
	e.persistLocked()
	return nil
}

// UpdateSettings applies patch and returns the resulting settings. Timer
// changes take effect the next time the round timers are armed.
func (e *Engine) UpdateSettings(_ context.Context, patch models.SettingsPatch) (models.Settings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if patch.MinIncrement != nil && patch.MinIncrement.IsNegative() {
		return e.settings, fmt.Errorf("min increment %s: %w", patch.MinIncrement, ErrInvalidAmount)
	}
	e.settings = patch.Apply(e.settings)

	log.Info().
		Dur("timer", e.settings.TimerDuration).
		Dur("reminder", e.settings.ReminderLead).
		Str("min_increment", e.settings.MinIncrement.String()).
		Bool("auto_advance", e.settings.AutoAdvance).
		Msg("settings updated")

	e.emit(events.TypeSettingsChanged, e.seq, events.SettingsChangedPayload{Settings: e.settings})
	e.persistLocked()
	return e.settings, nil
}

// ResetAll refunds every team, clears history and stats and makes every lot
// available again. Only allowed between rounds.
func (e *Engine) ResetAll(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		return ErrRoundInProgress
	}
	if err := e.ledger.ResetAll(); err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}
	e.catalog.Reset()
	e.sched.CancelAll()
	e.history = nil
	e.stats = emptyStats()
	e.epoch++

	log.Info().Int("lots", e.catalog.Len()).Msg("auction reset")
	e.emit(events.TypeAuctionReset, e.seq, events.AuctionResetPayload{
		ResetAt:       e.clock.Now().UTC(),
		AvailableLots: len(e.catalog.Available()),
	})
	e.persistLocked()
	return nil
}

// SetOwner records the auction owner. The first owner also becomes an admin.
func (e *Engine) SetOwner(_ context.Context, actorID string) error {
	if actorID == "" {
		return fmt.Errorf("owner id is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ownerID = actorID
	e.admins[actorID] = struct{}{}
	e.persistLocked()
	return nil
}

// AddAdmin grants admin rights to actorID.
func (e *Engine) AddAdmin(_ context.Context, actorID string) error {
	if actorID == "" {
		return fmt.Errorf("admin id is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.admins[actorID]; ok {
		return nil
	}
	e.admins[actorID] = struct{}{}
	e.persistLocked()
	return nil
}

// Authorized reports whether actorID may run administrative commands. With
// no owner configured everyone is authorized.
func (e *Engine) Authorized(actorID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ownerID == "" {
		return true
	}
	_, ok := e.admins[actorID]
	return ok
}
