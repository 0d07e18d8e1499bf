package engine

import (
	"errors"

	"github.com/mcdev12/auctioneer/go/internal/auction/catalog"
	"github.com/mcdev12/auctioneer/go/internal/auction/ledger"
)

var (
	ErrRoundAlreadyOpen  = errors.New("a round is already open")
	ErrRoundNotOpen      = errors.New("no round is open")
	ErrRoundInProgress   = errors.New("a round is in progress")
	ErrBidTooLow         = errors.New("bid is below the minimum")
	ErrInsufficientFunds = errors.New("bid exceeds remaining purse")
	ErrNotCaptain        = errors.New("actor is not a team captain")
	ErrSettlementInvalid = errors.New("settlement failed validation")
	ErrClosed            = errors.New("auction engine is closed")

	ErrNoLotsAvailable        = catalog.ErrNoLotsAvailable
	ErrTeamNotFound           = ledger.ErrTeamNotFound
	ErrTeamExists             = ledger.ErrTeamExists
	ErrInvalidAmount          = ledger.ErrInvalidAmount
	ErrNegativePurse          = ledger.ErrNegativePurse
	ErrCaptainAlreadyAssigned = ledger.ErrCaptainAlreadyAssigned
)
