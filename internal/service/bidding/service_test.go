package bidding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/account"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/auction"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/authentication"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/clock"
	domainerrors "github.com/davidleathers/vintage-vault-backend/internal/domain/errors"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/notification"
	"github.com/davidleathers/vintage-vault-backend/internal/testutil/fixtures"
	"github.com/davidleathers/vintage-vault-backend/internal/testutil/memstore"
	"github.com/davidleathers/vintage-vault-backend/internal/testutil/mocks"
)

type harness struct {
	store  *memstore.Store
	clock  *clock.MockClock
	events *mocks.EventRecorder
	svc    Service
	seller *account.User
	item   *auction.Item
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memstore.New()
	clk := clock.NewMock(fixtures.Now)
	events := mocks.NewEventRecorder()

	seller := fixtures.NewUser("seller", account.RoleUser)
	store.AddUser(seller)
	item := fixtures.NewItemBuilder(seller.ID).WithMinimum("100").Build()
	store.AddItem(item)

	svc := NewService(store.Items(), store.Bids(), store.Requests(), events, mocks.NewNoopMetrics(),
		clk, zaptest.NewLogger(t), DefaultConfig())

	return &harness{store: store, clock: clk, events: events, svc: svc, seller: seller, item: item}
}

func (h *harness) bid(t *testing.T, bidder uuid.UUID, amount string) (*auction.Bid, error) {
	t.Helper()
	return h.svc.PlaceBid(context.Background(), &PlaceBidRequest{
		ItemID:   h.item.ID,
		BidderID: bidder,
		Amount:   fixtures.GBP(amount),
	})
}

func TestService_PlaceBid_Sequence(t *testing.T) {
	h := newHarness(t)
	alice, bob := uuid.New(), uuid.New()

	first, err := h.bid(t, alice, "120.00")
	require.NoError(t, err)
	assert.Empty(t, h.events.Events())

	_, err = h.bid(t, bob, "110.00")
	require.Error(t, err)
	assert.True(t, domainerrors.IsValidation(err))

	second, err := h.bid(t, bob, "130.00")
	require.NoError(t, err)

	outbid := h.events.OfType(notification.TypeOutbid)
	require.Len(t, outbid, 1)
	assert.Equal(t, alice, outbid[0].UserID)
	assert.Equal(t, h.item.ID, *outbid[0].ItemID)

	highest, err := h.svc.HighestBid(context.Background(), h.item.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, highest.ID)

	bids, err := h.svc.ListBids(context.Background(), h.item.ID)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.Equal(t, first.ID, bids[0].ID)
}

func TestService_PlaceBid_RaisingOwnBidDoesNotNotify(t *testing.T) {
	h := newHarness(t)
	alice := uuid.New()

	_, err := h.bid(t, alice, "120")
	require.NoError(t, err)
	_, err = h.bid(t, alice, "150")
	require.NoError(t, err)

	assert.Empty(t, h.events.OfType(notification.TypeOutbid))
}

func TestService_PlaceBid_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, h *harness) (bidder uuid.UUID, amount string)
		check   func(t *testing.T, err error)
	}{
		{
			name:    "seller",
			prepare: func(t *testing.T, h *harness) (uuid.UUID, string) { return h.seller.ID, "500" },
			check:   func(t *testing.T, err error) { assert.True(t, domainerrors.IsValidation(err)) },
		},
		{
			name:    "below minimum",
			prepare: func(t *testing.T, h *harness) (uuid.UUID, string) { return uuid.New(), "99.99" },
			check:   func(t *testing.T, err error) { assert.True(t, domainerrors.IsValidation(err)) },
		},
		{
			name:    "non-positive",
			prepare: func(t *testing.T, h *harness) (uuid.UUID, string) { return uuid.New(), "-5" },
			check:   func(t *testing.T, err error) { assert.True(t, domainerrors.IsValidation(err)) },
		},
		{
			name: "at auction end",
			prepare: func(t *testing.T, h *harness) (uuid.UUID, string) {
				h.clock.Set(h.item.AuctionEnd)
				return uuid.New(), "500"
			},
			check: func(t *testing.T, err error) { assert.True(t, domainerrors.IsValidation(err)) },
		},
		{
			name: "equal to highest",
			prepare: func(t *testing.T, h *harness) (uuid.UUID, string) {
				_, err := h.bid(t, uuid.New(), "200")
				require.NoError(t, err)
				return uuid.New(), "200"
			},
			check: func(t *testing.T, err error) { assert.True(t, domainerrors.IsValidation(err)) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			bidder, amount := tt.prepare(t, h)

			_, err := h.bid(t, bidder, amount)
			require.Error(t, err)
			tt.check(t, err)

			bids, _ := h.store.Bids().ListForItem(context.Background(), h.item.ID)
			for _, b := range bids {
				assert.NotEqual(t, bidder, b.BidderID)
			}
		})
	}
}

func TestService_PlaceBid_UnknownItem(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.PlaceBid(context.Background(), &PlaceBidRequest{
		ItemID:   uuid.New(),
		BidderID: uuid.New(),
		Amount:   fixtures.GBP("150"),
	})
	assert.True(t, domainerrors.IsNotFound(err))
}

func TestService_PlaceBid_StoreOutcomes(t *testing.T) {
	ctx := context.Background()
	seller := uuid.New()
	item := fixtures.NewItemBuilder(seller).Build()

	tests := []struct {
		name      string
		setupMock func(*mocks.BidRepository)
		check     func(t *testing.T, err error)
	}{
		{
			name: "lost race to a higher bid",
			setupMock: func(br *mocks.BidRepository) {
				br.On("CreateIfHigher", ctx, mock.AnythingOfType("*auction.Bid")).Return(nil, auction.ErrBidNotHigher)
			},
			check: func(t *testing.T, err error) { assert.True(t, domainerrors.IsConflict(err)) },
		},
		{
			name: "auction closed underneath",
			setupMock: func(br *mocks.BidRepository) {
				br.On("CreateIfHigher", ctx, mock.AnythingOfType("*auction.Bid")).Return(nil, auction.ErrAuctionClosed)
			},
			check: func(t *testing.T, err error) { assert.True(t, domainerrors.IsConflict(err)) },
		},
		{
			name: "storage failure",
			setupMock: func(br *mocks.BidRepository) {
				br.On("CreateIfHigher", ctx, mock.AnythingOfType("*auction.Bid")).Return(nil, errors.New("connection reset"))
			},
			check: func(t *testing.T, err error) { assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeInternal)) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := new(mocks.ItemRepository)
			bids := new(mocks.BidRepository)
			items.On("GetByID", ctx, item.ID).Return(item, nil)
			bids.On("HighestForItem", ctx, item.ID).Return(nil, nil)
			tt.setupMock(bids)

			events := mocks.NewEventRecorder()
			svc := NewService(items, bids, new(mocks.AuthenticationLookup), events, mocks.NewNoopMetrics(),
				clock.NewMock(fixtures.Now), zaptest.NewLogger(t), DefaultConfig())

			_, err := svc.PlaceBid(ctx, &PlaceBidRequest{ItemID: item.ID, BidderID: uuid.New(), Amount: fixtures.GBP("150")})
			require.Error(t, err)
			tt.check(t, err)
			assert.Empty(t, events.Events())

			items.AssertExpectations(t)
			bids.AssertExpectations(t)
		})
	}
}

func TestService_PlaceBid_ConcurrentBidsStayStrictlyIncreasing(t *testing.T) {
	h := newHarness(t)
	const bidders = 40

	var wg sync.WaitGroup
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := fixtures.GBP("100").Amount().Add(decimalFromInt(i % 10))
			_, err := h.svc.PlaceBid(context.Background(), &PlaceBidRequest{
				ItemID:   h.item.ID,
				BidderID: uuid.New(),
				Amount:   mustMoney(amount.String()),
			})
			if err != nil {
				assert.True(t, domainerrors.IsValidation(err) || domainerrors.IsConflict(err), "unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	bids, err := h.svc.ListBids(context.Background(), h.item.ID)
	require.NoError(t, err)
	require.NotEmpty(t, bids)
	for i := 1; i < len(bids); i++ {
		assert.True(t, bids[i].Amount.Amount().GreaterThan(bids[i-1].Amount.Amount()),
			"bid %d (%s) does not exceed bid %d (%s)", i, bids[i].Amount, i-1, bids[i-1].Amount)
	}
}

func TestService_MarkPaid(t *testing.T) {
	ctx := context.Background()

	t.Run("base fee", func(t *testing.T) {
		h := newHarness(t)
		buyer := uuid.New()
		_, err := h.bid(t, buyer, "200")
		require.NoError(t, err)

		h.clock.Set(h.item.AuctionEnd)
		_, err = h.svc.Finalize(ctx, h.item.ID)
		require.NoError(t, err)
		h.events.Reset()

		payment, err := h.svc.MarkPaid(ctx, h.item.ID, "pay_123")
		require.NoError(t, err)
		assert.Equal(t, buyer, payment.PayerID)
		assert.Equal(t, "£2.00", payment.FeeAmount.String())

		item, _ := h.store.Item(h.item.ID)
		assert.Equal(t, auction.StatusPaid, item.Status)

		assert.Len(t, h.events.OfType(notification.TypePaymentSeller), 1)
		assert.Len(t, h.events.OfType(notification.TypePaymentBuyer), 1)
		assert.Equal(t, h.seller.ID, h.events.OfType(notification.TypePaymentSeller)[0].UserID)
		assert.Equal(t, buyer, h.events.OfType(notification.TypePaymentBuyer)[0].UserID)

		_, err = h.svc.MarkPaid(ctx, h.item.ID, "pay_123")
		assert.True(t, domainerrors.IsConflict(err))
	})

	t.Run("authenticated fee", func(t *testing.T) {
		h := newHarness(t)
		req := fixtures.NewRequest(h.item.ID, h.seller.ID)
		req.Status = authentication.RequestApproved
		h.store.AddRequest(req)

		_, err := h.bid(t, uuid.New(), "200")
		require.NoError(t, err)
		h.clock.Set(h.item.AuctionEnd.Add(time.Minute))
		_, err = h.svc.Finalize(ctx, h.item.ID)
		require.NoError(t, err)

		payment, err := h.svc.MarkPaid(ctx, h.item.ID, "pay_456")
		require.NoError(t, err)
		assert.Equal(t, "£10.00", payment.FeeAmount.String())
	})

	t.Run("open item", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.MarkPaid(ctx, h.item.ID, "pay_789")
		assert.True(t, domainerrors.IsConflict(err))
		assert.Empty(t, h.events.Events())
	})
}
