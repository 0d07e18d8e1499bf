package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/auctioneer/go/internal/auction/events"
	"github.com/mcdev12/auctioneer/go/internal/auction/scheduler"
	"github.com/mcdev12/auctioneer/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// StartRound opens a round for a random available lot.
func (e *Engine) StartRound(ctx context.Context) (Round, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startLocked(ctx)
}

func (e *Engine) startLocked(_ context.Context) (Round, error) {
	if e.closed {
		return Round{}, ErrClosed
	}
	if len(e.catalog.Available()) == 0 {
		return Round{}, ErrNoLotsAvailable
	}
	if e.state != StateIdle {
		return Round{}, ErrRoundAlreadyOpen
	}
	lot, err := e.catalog.PickRandomAvailable()
	if err != nil {
		return Round{}, err
	}

	now := e.clock.Now()
	e.seq++
	r := &Round{
		Seq:        e.seq,
		Lot:        lot,
		CurrentBid: lot.BasePrice,
		OpenedAt:   now,
	}
	e.round = r
	e.state = StateOpen
	e.armTimersLocked(now)

	log.Info().
		Uint64("round_seq", r.Seq).
		Str("lot_id", lot.ID.String()).
		Str("lot_name", lot.Name).
		Str("base_price", lot.BasePrice.String()).
		Time("deadline", r.Deadline).
		Msg("round opened")

	e.emit(events.TypeRoundOpened, r.Seq, events.RoundOpenedPayload{
		RoundSeq:   r.Seq,
		Lot:        lot,
		BasePrice:  lot.BasePrice,
		OpenedAt:   now,
		Deadline:   r.Deadline,
		TimerSec:   int(e.settings.TimerDuration / time.Second),
		ShowPhotos: e.settings.ShowPhotos,
	})
	e.persistLocked()
	return *r, nil
}

// armTimersLocked (re)arms the reminder and auto-close timers for the live
// round with the full timer duration measured from now.
func (e *Engine) armTimersLocked(now time.Time) {
	r := e.round
	d := e.settings.TimerDuration
	r.Deadline = now.Add(d)
	r.ReminderFired = false

	e.sched.CancelAll()
	if e.closed {
		return
	}
	if lead := e.settings.ReminderLead; d > lead {
		e.sched.Arm(scheduler.Reminder, r.Seq, d-lead)
	}
	e.sched.Arm(scheduler.AutoClose, r.Seq, d)
}

// PlaceBid records a bid from the team captained by actorID.
func (e *Engine) PlaceBid(_ context.Context, actorID string, amount decimal.Decimal) (Round, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return Round{}, ErrClosed
	}
	r := e.round
	if e.state != StateOpen || r == nil {
		return Round{}, ErrRoundNotOpen
	}
	team, ok := e.ledger.TeamOf(actorID)
	if !ok {
		return Round{}, fmt.Errorf("bid from %q: %w", actorID, ErrNotCaptain)
	}
	minimum := r.CurrentBid.Add(e.settings.MinIncrement)
	if amount.LessThan(minimum) {
		return Round{}, fmt.Errorf("bid %s, minimum is %s: %w", amount, minimum, ErrBidTooLow)
	}
	if amount.GreaterThan(team.Purse) {
		return Round{}, fmt.Errorf("bid %s, %s has %s left: %w", amount, team.Name, team.Purse, ErrInsufficientFunds)
	}

	prevLeader, prevBid := r.LeadingTeam, r.CurrentBid
	r.CurrentBid = amount
	r.LeadingTeam = team.Name
	e.armTimersLocked(e.clock.Now())

	log.Info().
		Uint64("round_seq", r.Seq).
		Str("lot_id", r.Lot.ID.String()).
		Str("team", team.Name).
		Str("amount", amount.String()).
		Str("previous_leader", prevLeader).
		Msg("bid accepted")

	e.emit(events.TypeBidAccepted, r.Seq, events.BidAcceptedPayload{
		RoundSeq:       r.Seq,
		Lot:            r.Lot,
		ActorID:        actorID,
		Team:           team.Name,
		Amount:         amount,
		PreviousLeader: prevLeader,
		PreviousBid:    prevBid,
		Deadline:       r.Deadline,
	})
	return *r, nil
}

// Skip closes the live round without a sale.
func (e *Engine) Skip(_ context.Context) (models.HistoryRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.round
	if e.state != StateOpen || r == nil {
		return models.HistoryRecord{}, ErrRoundNotOpen
	}
	e.state = StateSettling
	e.sched.CancelAll()

	if err := e.catalog.MarkUnsold(r.Lot.ID); err != nil {
		e.state = StateOpen
		return models.HistoryRecord{}, err
	}
	rec := e.recordLocked(r, models.SettlementSkipped, decimal.Zero, models.NoTeam)
	log.Info().Uint64("round_seq", r.Seq).Str("lot_id", r.Lot.ID.String()).Msg("round skipped")
	e.finishLocked(r, rec, "skip")
	return rec, nil
}

// Conclude settles the live round. A timeout with no live round is a no-op.
func (e *Engine) Conclude(ctx context.Context, trigger Trigger) (models.HistoryRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.concludeLocked(ctx, trigger)
}

func (e *Engine) concludeLocked(_ context.Context, trigger Trigger) (models.HistoryRecord, error) {
	r := e.round
	if e.state != StateOpen || r == nil {
		if trigger == TriggerTimeout {
			return models.HistoryRecord{}, nil
		}
		return models.HistoryRecord{}, ErrRoundNotOpen
	}
	e.state = StateSettling
	e.sched.CancelAll()
	now := e.clock.Now()

	if r.LeadingTeam == "" {
		if err := e.catalog.MarkUnsold(r.Lot.ID); err != nil {
			e.state = StateOpen
			e.armTimersLocked(now)
			return models.HistoryRecord{}, err
		}
		rec := e.recordLocked(r, models.SettlementUnsold, decimal.Zero, models.NoTeam)
		log.Info().
			Uint64("round_seq", r.Seq).
			Str("lot_id", r.Lot.ID.String()).
			Str("trigger", trigger.String()).
			Msg("round closed unsold")
		e.finishLocked(r, rec, trigger.String())
		return rec, nil
	}

	entry := models.RosterEntry{Lot: r.Lot, AcquiredAt: now, RoundNumber: r.Seq}
	if err := e.ledger.DebitForSale(r.LeadingTeam, r.CurrentBid, entry); err != nil {
		return models.HistoryRecord{}, e.rejectSettlementLocked(now, err)
	}
	if err := e.catalog.MarkSold(r.Lot.ID); err != nil {
		log.Error().Err(err).Uint64("round_seq", r.Seq).Msg("sold lot missing from catalog")
	}

	rec := e.recordLocked(r, models.SettlementSold, r.CurrentBid, r.LeadingTeam)
	e.recordSaleLocked(r)
	log.Info().
		Uint64("round_seq", r.Seq).
		Str("lot_id", r.Lot.ID.String()).
		Str("team", r.LeadingTeam).
		Str("price", r.CurrentBid.String()).
		Str("trigger", trigger.String()).
		Msg("round closed sold")
	e.finishLocked(r, rec, trigger.String())
	return rec, nil
}

// rejectSettlementLocked reopens the round after the leader failed the funds
// re-check: the leader is dropped, the bid returns to base and timers restart.
func (e *Engine) rejectSettlementLocked(now time.Time, cause error) error {
	r := e.round
	team, amount := r.LeadingTeam, r.CurrentBid

	log.Warn().
		Err(cause).
		Uint64("round_seq", r.Seq).
		Str("lot_id", r.Lot.ID.String()).
		Str("team", team).
		Str("amount", amount.String()).
		Msg("settlement rejected, leader can no longer cover the bid; reopening round")

	r.LeadingTeam = ""
	r.CurrentBid = r.Lot.BasePrice
	e.state = StateOpen
	e.armTimersLocked(now)

	e.emit(events.TypeSettlementRejected, r.Seq, events.SettlementRejectedPayload{
		RoundSeq: r.Seq,
		Lot:      r.Lot,
		Team:     team,
		Amount:   amount,
		Reason:   cause.Error(),
		Deadline: r.Deadline,
	})
	return fmt.Errorf("settle %s to %s for %s: %w: %w", r.Lot.Name, team, amount, ErrSettlementInvalid, cause)
}

func (e *Engine) recordLocked(r *Round, status models.SettlementStatus, price decimal.Decimal, team string) models.HistoryRecord {
	return models.HistoryRecord{
		Seq:       len(e.history) + 1,
		RoundSeq:  r.Seq,
		LotID:     r.Lot.ID,
		LotName:   r.Lot.Name,
		Price:     price,
		Team:      team,
		Status:    status,
		Timestamp: e.clock.Now().UTC(),
	}
}

func (e *Engine) recordSaleLocked(r *Round) {
	s := &e.stats
	s.LotsSold++
	s.TotalSpent = s.TotalSpent.Add(r.CurrentBid)
	if s.MostExpensive == nil || r.CurrentBid.GreaterThan(s.HighestSale) {
		s.HighestSale = r.CurrentBid
		s.MostExpensive = &models.SaleRecord{Lot: r.Lot, Price: r.CurrentBid, Team: r.LeadingTeam}
	}
	s.AveragePrice = s.TotalSpent.Div(decimal.NewFromInt(int64(s.LotsSold)))
}

// finishLocked commits a settlement: history, stats, state and the
// post-settlement advance policy.
func (e *Engine) finishLocked(r *Round, rec models.HistoryRecord, trigger string) {
	e.history = append(e.history, rec)
	e.stats.TotalRounds++
	e.round = nil
	e.state = StateIdle

	e.emit(events.TypeRoundClosed, r.Seq, events.RoundClosedPayload{
		RoundSeq: r.Seq,
		Status:   rec.Status,
		Lot:      r.Lot,
		Price:    rec.Price,
		Team:     rec.Team,
		Trigger:  trigger,
		ClosedAt: rec.Timestamp,
	})
	e.afterSettlementLocked()
	e.persistLocked()
}

func (e *Engine) afterSettlementLocked() {
	if len(e.catalog.Available()) == 0 {
		log.Info().
			Int("lots_sold", e.stats.LotsSold).
			Str("total_spent", e.stats.TotalSpent.String()).
			Msg("catalog exhausted")
		e.emit(events.TypeCatalogExhausted, e.seq, events.CatalogExhaustedPayload{
			FinalStats:  copyStats(e.stats),
			Leaderboard: e.ledger.Leaderboard(),
			UnsoldLots:  len(e.catalog.Unsold()),
		})
		return
	}
	if !e.settings.AutoAdvance {
		return
	}
	seq, epoch := e.seq, e.epoch
	e.pacer.After(e.settings.AdvanceDelay, func() { e.advance(seq, epoch) })
}

// advance starts the next round unless anything happened since the settlement
// that scheduled it.
func (e *Engine) advance(seq, epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.state != StateIdle || e.seq != seq || e.epoch != epoch {
		log.Debug().Uint64("scheduled_after", seq).Uint64("round_seq", e.seq).Msg("auto-advance superseded")
		return
	}
	if _, err := e.startLocked(context.Background()); err != nil {
		if errors.Is(err, ErrNoLotsAvailable) {
			return
		}
		log.Warn().Err(err).Msg("auto-advance failed to start round")
	}
}

// HandleTimer processes a timer fire. Fires for a finished round or a
// superseded arm are discarded.
func (e *Engine) HandleTimer(ctx context.Context, f scheduler.Fired) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.round
	if e.state != StateOpen || r == nil || r.Seq != f.RoundSeq {
		log.Debug().Str("timer", string(f.Name)).Uint64("round_seq", f.RoundSeq).Msg("discarding timer for closed round")
		return nil
	}
	if !e.sched.Claim(f) {
		log.Debug().Str("timer", string(f.Name)).Uint64("gen", f.Gen).Msg("discarding superseded timer")
		return nil
	}

	switch f.Name {
	case scheduler.Reminder:
		if r.ReminderFired {
			return nil
		}
		r.ReminderFired = true
		left := r.Deadline.Sub(e.clock.Now()).Round(time.Second)
		if left < 0 {
			left = 0
		}
		e.emit(events.TypeReminderDue, r.Seq, events.ReminderDuePayload{
			RoundSeq:    r.Seq,
			Lot:         r.Lot,
			CurrentBid:  r.CurrentBid,
			LeadingTeam: r.LeadingTeam,
			SecondsLeft: int(left / time.Second),
		})
		return nil
	case scheduler.AutoClose:
		_, err := e.concludeLocked(ctx, TriggerTimeout)
		return err
	default:
		return fmt.Errorf("unknown timer %q", f.Name)
	}
}

func (e *Engine) deliverTimer(f scheduler.Fired) {
	if err := e.HandleTimer(context.Background(), f); err != nil {
		log.Error().Err(err).Str("timer", string(f.Name)).Uint64("round_seq", f.RoundSeq).Msg("timer handling failed")
	}
}
