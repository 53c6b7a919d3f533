package bidding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/auction"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/clock"
	domainerrors "github.com/davidleathers/vintage-vault-backend/internal/domain/errors"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/notification"
	"github.com/davidleathers/vintage-vault-backend/internal/testutil/fixtures"
	"github.com/davidleathers/vintage-vault-backend/internal/testutil/memstore"
	"github.com/davidleathers/vintage-vault-backend/internal/testutil/mocks"
)

func TestService_Finalize_SingleBid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	buyer := uuid.New()

	bid, err := h.bid(t, buyer, "500.00")
	require.NoError(t, err)

	h.clock.Set(h.item.AuctionEnd.Add(time.Second))
	res, err := h.svc.Finalize(ctx, h.item.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSold, res.Outcome)
	assert.Equal(t, auction.StatusWon, res.Status)
	require.NotNil(t, res.WinningBid)
	assert.Equal(t, bid.ID, res.WinningBid.ID)

	item, _ := h.store.Item(h.item.ID)
	assert.Equal(t, auction.StatusWon, item.Status)
	require.NotNil(t, item.WinningBidID)
	assert.Equal(t, bid.ID, *item.WinningBidID)

	sold := h.events.OfType(notification.TypeSellerSold)
	require.Len(t, sold, 1)
	assert.Equal(t, h.seller.ID, sold[0].UserID)
	assert.Contains(t, sold[0].Message, "£500.00")

	winners := h.events.OfType(notification.TypeWinner)
	require.Len(t, winners, 1)
	assert.Equal(t, buyer, winners[0].UserID)
	assert.Empty(t, h.events.OfType(notification.TypeLoser))
}

func TestService_Finalize_WinnerAndLosers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()

	for _, b := range []struct {
		bidder uuid.UUID
		amount string
	}{
		{alice, "120"},
		{bob, "130"},
		{alice, "140"},
		{carol, "150"},
	} {
		_, err := h.bid(t, b.bidder, b.amount)
		require.NoError(t, err)
	}
	h.events.Reset()

	h.clock.Set(h.item.AuctionEnd)
	res, err := h.svc.Finalize(ctx, h.item.ID)
	require.NoError(t, err)
	assert.Equal(t, carol, res.WinningBid.BidderID)

	winners := h.events.OfType(notification.TypeWinner)
	require.Len(t, winners, 1)
	assert.Equal(t, carol, winners[0].UserID)

	losers := h.events.OfType(notification.TypeLoser)
	require.Len(t, losers, 2)
	assert.Equal(t, alice, losers[0].UserID)
	assert.Equal(t, bob, losers[1].UserID)
}

func TestService_Finalize_NoBids(t *testing.T) {
	h := newHarness(t)
	h.clock.Set(h.item.AuctionEnd.Add(time.Hour))

	res, err := h.svc.Finalize(context.Background(), h.item.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnsold, res.Outcome)
	assert.Nil(t, res.WinningBid)

	item, _ := h.store.Item(h.item.ID)
	assert.Equal(t, auction.StatusUnsold, item.Status)
	assert.Nil(t, item.WinningBidID)

	events := h.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, notification.TypeSellerUnsold, events[0].Type)
	assert.Equal(t, h.seller.ID, events[0].UserID)
}

func TestService_Finalize_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.bid(t, uuid.New(), "250")
	require.NoError(t, err)
	h.events.Reset()
	h.clock.Set(h.item.AuctionEnd)

	first, err := h.svc.Finalize(ctx, h.item.ID)
	require.NoError(t, err)
	assert.True(t, first.Finalized())

	second, err := h.svc.Finalize(ctx, h.item.ID)
	require.NoError(t, err)
	assert.False(t, second.Finalized())
	assert.Equal(t, OutcomeSkipped, second.Outcome)
	assert.Equal(t, auction.StatusWon, second.Status)

	assert.Len(t, h.events.OfType(notification.TypeWinner), 1)
	assert.Len(t, h.events.OfType(notification.TypeSellerSold), 1)
}

func TestService_Finalize_BeforeEndIsSkipped(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.Finalize(context.Background(), h.item.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Equal(t, auction.StatusOpen, res.Status)
	assert.Empty(t, h.events.Events())
}

func TestService_Finalize_Contended(t *testing.T) {
	ctx := context.Background()
	item := fixtures.NewItemBuilder(uuid.New()).EndingAt(fixtures.Now.Add(-time.Minute)).Build()
	bid := auction.NewBid(item.ID, uuid.New(), fixtures.GBP("300"), fixtures.Now.Add(-time.Hour))

	items := new(mocks.ItemRepository)
	bids := new(mocks.BidRepository)
	items.On("GetByID", ctx, item.ID).Return(item, nil)
	bids.On("ListForItem", ctx, item.ID).Return([]*auction.Bid{bid}, nil)
	items.On("ClaimWinner", ctx, item.ID, bid.ID, mock.AnythingOfType("time.Time")).Return(false, nil)

	events := mocks.NewEventRecorder()
	svc := NewService(items, bids, new(mocks.AuthenticationLookup), events, mocks.NewNoopMetrics(),
		clock.NewMock(fixtures.Now), zaptest.NewLogger(t), DefaultConfig())

	_, err := svc.Finalize(ctx, item.ID)
	require.Error(t, err)
	assert.True(t, domainerrors.IsConflict(err))
	assert.Empty(t, events.Events())
	items.AssertNumberOfCalls(t, "ClaimWinner", claimAttempts)
}

func TestService_FinalizeExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.bid(t, uuid.New(), "180")
	require.NoError(t, err)

	unsold := fixtures.NewItemBuilder(h.seller.ID).WithTitle("Brass Telescope").Build()
	h.store.AddItem(unsold)
	later := fixtures.NewItemBuilder(h.seller.ID).EndingAt(h.item.AuctionEnd.Add(24 * time.Hour)).Build()
	h.store.AddItem(later)
	h.events.Reset()

	h.clock.Set(h.item.AuctionEnd.Add(time.Minute))
	res, err := h.svc.FinalizeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, 1, res.Sold)
	assert.Equal(t, 1, res.Unsold)
	assert.Zero(t, res.Failed)

	open, _ := h.store.Item(later.ID)
	assert.Equal(t, auction.StatusOpen, open.Status)

	again, err := h.svc.FinalizeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Scanned)
}

// stuckItems fails every attempt to close the listed items
type stuckItems struct {
	*memstore.Items
	stuck map[uuid.UUID]bool
}

func (s stuckItems) MarkUnsold(ctx context.Context, itemID uuid.UUID, at time.Time) (bool, error) {
	if s.stuck[itemID] {
		return false, errors.New("connection reset")
	}
	return s.Items.MarkUnsold(ctx, itemID, at)
}

func TestService_FinalizeExpired_FailuresDoNotStarveLaterItems(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seller := uuid.New()

	items := stuckItems{Items: store.Items(), stuck: map[uuid.UUID]bool{}}
	var healthy []uuid.UUID
	for i := 4; i >= 1; i-- {
		item := fixtures.NewItemBuilder(seller).EndingAt(fixtures.Now.Add(-time.Duration(i) * time.Hour)).Build()
		store.AddItem(item)
		if i > 2 {
			items.stuck[item.ID] = true
		} else {
			healthy = append(healthy, item.ID)
		}
	}

	cfg := DefaultConfig()
	cfg.SweepBatchSize = 2
	events := mocks.NewEventRecorder()
	svc := NewService(items, store.Bids(), store.Requests(), events, mocks.NewNoopMetrics(),
		clock.NewMock(fixtures.Now), zaptest.NewLogger(t), cfg)

	res, err := svc.FinalizeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Scanned)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 2, res.Unsold)
	for _, id := range healthy {
		got, _ := store.Item(id)
		assert.Equal(t, auction.StatusUnsold, got.Status)
	}
	assert.Len(t, events.OfType(notification.TypeSellerUnsold), 2)

	// the stuck items are retried on the next sweep
	again, err := svc.FinalizeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Scanned)
	assert.Equal(t, 2, again.Failed)
}

func TestService_FinalizeExpired_ListFailure(t *testing.T) {
	ctx := context.Background()
	items := new(mocks.ItemRepository)
	items.On("ListExpiredOpen", ctx, mock.AnythingOfType("time.Time"), auction.SweepCursor{}, DefaultConfig().SweepBatchSize).
		Return(nil, errors.New("connection refused"))

	svc := NewService(items, new(mocks.BidRepository), new(mocks.AuthenticationLookup), mocks.NewEventRecorder(),
		mocks.NewNoopMetrics(), clock.NewMock(fixtures.Now), zaptest.NewLogger(t), DefaultConfig())

	res, err := svc.FinalizeExpired(ctx)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeInternal))
	assert.ErrorContains(t, err, "connection refused")
	items.AssertExpectations(t)
}

func TestService_Finalize_ConcurrentSweepsFinalizeOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		item := fixtures.NewItemBuilder(h.seller.ID).Build()
		h.store.AddItem(item)
		_, err := h.svc.PlaceBid(ctx, &PlaceBidRequest{ItemID: item.ID, BidderID: uuid.New(), Amount: fixtures.GBP("150")})
		require.NoError(t, err)
		_, err = h.svc.PlaceBid(ctx, &PlaceBidRequest{ItemID: item.ID, BidderID: uuid.New(), Amount: fixtures.GBP("175")})
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}
	h.events.Reset()
	h.clock.Set(h.item.AuctionEnd.Add(time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.svc.FinalizeExpired(ctx)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			for _, id := range ids {
				_, err := h.svc.Finalize(ctx, id)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	winners := make(map[uuid.UUID]int)
	for _, e := range h.events.OfType(notification.TypeWinner) {
		winners[*e.ItemID]++
	}
	for _, id := range ids {
		assert.Equal(t, 1, winners[id], "item %s", id)
	}
	assert.Len(t, h.events.OfType(notification.TypeSellerSold), len(ids))
	assert.Len(t, h.events.OfType(notification.TypeSellerUnsold), 1)
}

func TestFinalizer_RunSweepsAndRunsHooks(t *testing.T) {
	h := newHarness(t)
	_, err := h.bid(t, uuid.New(), "220")
	require.NoError(t, err)
	h.clock.Set(h.item.AuctionEnd)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var hookRuns atomic.Int32
	hook := Hook{Name: "cancel-expired", Run: func(context.Context) error {
		if hookRuns.Add(1) >= 2 {
			cancel()
		}
		return nil
	}}

	f := NewFinalizer(h.svc, 10*time.Millisecond, zaptest.NewLogger(t), hook)
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("finalizer did not stop")
	}

	assert.GreaterOrEqual(t, hookRuns.Load(), int32(2))
	item, _ := h.store.Item(h.item.ID)
	assert.Equal(t, auction.StatusWon, item.Status)
	assert.Len(t, h.events.OfType(notification.TypeWinner), 1)
}
