package bidding

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/auction"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/clock"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/errors"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/notification"
)

// claimAttempts bounds how often Finalize re-reads bids after losing its
// claim to a bid that landed in the same instant.
const claimAttempts = 3

// service implements the Service interface
type service struct {
	items   ItemRepository
	bids    BidRepository
	auth    AuthenticationLookup
	events  EventPublisher
	metrics MetricsCollector
	clock   clock.Clock
	logger  *zap.Logger
	cfg     Config
}

// NewService creates a new bidding service
func NewService(
	items ItemRepository,
	bids BidRepository,
	auth AuthenticationLookup,
	events EventPublisher,
	metrics MetricsCollector,
	clk clock.Clock,
	logger *zap.Logger,
	cfg Config,
) Service {
	if cfg.SweepConcurrency <= 0 {
		cfg.SweepConcurrency = 1
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = DefaultConfig().SweepBatchSize
	}
	return &service{
		items:   items,
		bids:    bids,
		auth:    auth,
		events:  events,
		metrics: metrics,
		clock:   clk,
		logger:  logger.Named("bidding"),
		cfg:     cfg,
	}
}

// PlaceBid validates and records a bid
func (s *service) PlaceBid(ctx context.Context, req *PlaceBidRequest) (*auction.Bid, error) {
	if req == nil || req.ItemID == uuid.Nil || req.BidderID == uuid.Nil {
		return nil, errors.NewValidationError("INVALID_REQUEST", "item and bidder are required")
	}
	now := s.clock.Now()

	item, err := s.getItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}

	highest, err := s.bids.HighestForItem(ctx, item.ID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load highest bid").WithCause(err)
	}

	if err := item.ValidateBid(req.BidderID, req.Amount, highest, now); err != nil {
		s.metrics.RecordBidRejected(ctx, rejectionCode(err))
		return nil, err
	}

	b := auction.NewBid(item.ID, req.BidderID, req.Amount, now)
	previous, err := s.bids.CreateIfHigher(ctx, b)
	switch {
	case errors.Is(err, auction.ErrBidNotHigher):
		s.metrics.RecordBidRejected(ctx, "OUTBID_CONCURRENTLY")
		return nil, errors.NewConflictError("OUTBID_CONCURRENTLY",
			"another bid of equal or higher amount was accepted first").WithCause(err)
	case errors.Is(err, auction.ErrAuctionClosed):
		s.metrics.RecordBidRejected(ctx, "AUCTION_CLOSED")
		return nil, errors.NewConflictError("AUCTION_CLOSED", "auction closed before the bid was recorded").WithCause(err)
	case err != nil:
		return nil, errors.NewInternalError("failed to record bid").WithCause(err)
	}

	s.metrics.RecordBidPlaced(ctx, b.Amount)
	s.logger.Debug("bid accepted",
		zap.String("item_id", item.ID.String()),
		zap.String("bid_id", b.ID.String()),
		zap.String("amount", b.Amount.String()))

	if previous != nil && previous.BidderID != b.BidderID {
		s.events.Publish(ctx, notification.Outbid(previous.BidderID, item.ID, item.Title, now))
	}
	return b, nil
}

// Finalize closes an ended auction exactly once
func (s *service) Finalize(ctx context.Context, itemID uuid.UUID) (*FinalizeResult, error) {
	for attempt := 0; attempt < claimAttempts; attempt++ {
		now := s.clock.Now()

		item, err := s.getItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if !item.ReadyToFinalize(now) {
			return &FinalizeResult{ItemID: item.ID, Outcome: OutcomeSkipped, Status: item.Status}, nil
		}

		bids, err := s.bids.ListForItem(ctx, item.ID)
		if err != nil {
			return nil, errors.NewInternalError("failed to load bids").WithCause(err)
		}
		settlement := auction.Settle(bids)

		var claimed bool
		if settlement.Sold() {
			claimed, err = s.items.ClaimWinner(ctx, item.ID, settlement.Winner.ID, now)
		} else {
			claimed, err = s.items.MarkUnsold(ctx, item.ID, now)
		}
		if err != nil {
			return nil, errors.NewInternalError("failed to finalize item").WithCause(err)
		}
		if !claimed {
			// Either another finalizer won, or a bid landed between the read
			// and the claim. The next pass tells the two apart.
			continue
		}

		result := s.settle(item, settlement, now)
		s.events.Publish(ctx, result.Events...)
		s.metrics.RecordFinalization(ctx, result.Outcome)
		s.logger.Info("auction finalized",
			zap.String("item_id", item.ID.String()),
			zap.String("outcome", result.Outcome),
			zap.Int("bids", len(bids)))
		return result, nil
	}

	return nil, errors.NewConflictError("FINALIZE_CONTENDED", "item state kept changing during finalization")
}

func (s *service) settle(item *auction.Item, settlement auction.Settlement, now time.Time) *FinalizeResult {
	if !settlement.Sold() {
		return &FinalizeResult{
			ItemID:  item.ID,
			Outcome: OutcomeUnsold,
			Status:  auction.StatusUnsold,
			Events:  []notification.Event{notification.SellerUnsold(item.SellerID, item.ID, item.Title, now)},
		}
	}

	winner := settlement.Winner
	events := make([]notification.Event, 0, len(settlement.Losers)+2)
	events = append(events, notification.Winner(winner.BidderID, item.ID, item.Title, now))
	for _, loser := range settlement.Losers {
		events = append(events, notification.Loser(loser, item.ID, item.Title, now))
	}
	events = append(events, notification.SellerSold(item.SellerID, item.ID, item.Title, winner.Amount.String(), now))

	return &FinalizeResult{
		ItemID:     item.ID,
		Outcome:    OutcomeSold,
		Status:     auction.StatusWon,
		WinningBid: winner,
		Events:     events,
	}
}

// MarkPaid records the buyer's payment for a won item
func (s *service) MarkPaid(ctx context.Context, itemID uuid.UUID, paymentRef string) (*auction.Payment, error) {
	now := s.clock.Now()

	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != auction.StatusWon || item.WinningBidID == nil {
		return nil, errors.NewConflictError("ITEM_NOT_WON",
			"item is "+item.Status.String()+", only won items can be paid")
	}

	winning, err := s.bids.GetByID(ctx, *item.WinningBidID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load winning bid").WithCause(err)
	}

	authenticated, err := s.auth.IsAuthenticated(ctx, item.ID)
	if err != nil {
		return nil, errors.NewInternalError("failed to check authentication status").WithCause(err)
	}

	payment, err := auction.NewPayment(item, winning, paymentRef, s.cfg.Fees.PercentFor(authenticated), now)
	if err != nil {
		return nil, err
	}

	if err := s.items.RecordPayment(ctx, payment); err != nil {
		if errors.Is(err, auction.ErrNotWon) {
			return nil, errors.NewConflictError("ITEM_NOT_WON", "item was paid or changed concurrently").WithCause(err)
		}
		return nil, errors.NewInternalError("failed to record payment").WithCause(err)
	}

	s.metrics.RecordPayment(ctx, payment.Amount, payment.FeeAmount)
	s.events.Publish(ctx,
		notification.PaymentSeller(item.SellerID, item.ID, item.Title, now),
		notification.PaymentBuyer(winning.BidderID, item.ID, item.Title, now),
	)
	return payment, nil
}

func (s *service) HighestBid(ctx context.Context, itemID uuid.UUID) (*auction.Bid, error) {
	if _, err := s.getItem(ctx, itemID); err != nil {
		return nil, err
	}
	b, err := s.bids.HighestForItem(ctx, itemID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load highest bid").WithCause(err)
	}
	return b, nil
}

func (s *service) ListBids(ctx context.Context, itemID uuid.UUID) ([]*auction.Bid, error) {
	if _, err := s.getItem(ctx, itemID); err != nil {
		return nil, err
	}
	bids, err := s.bids.ListForItem(ctx, itemID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list bids").WithCause(err)
	}
	return bids, nil
}

func (s *service) getItem(ctx context.Context, id uuid.UUID) (*auction.Item, error) {
	item, err := s.items.GetByID(ctx, id)
	if errors.Is(err, errors.ErrRecordNotFound) {
		return nil, errors.NewNotFoundError("item").WithCause(err)
	}
	if err != nil {
		return nil, errors.NewInternalError("failed to load item").WithCause(err)
	}
	return item, nil
}

func rejectionCode(err error) string {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}
