package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/account"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/auction"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/authentication"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/clock"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/notification"
	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/events"
	"github.com/davidleathers/vintage-vault-backend/internal/service/bidding"
	"github.com/davidleathers/vintage-vault-backend/internal/service/expertise"
	"github.com/davidleathers/vintage-vault-backend/internal/testutil/fixtures"
	"github.com/davidleathers/vintage-vault-backend/internal/testutil/memstore"
	"github.com/davidleathers/vintage-vault-backend/internal/testutil/mocks"
)

const (
	testJWTSecret     = "test-signing-secret"
	testWebhookSecret = "test-webhook-secret"
)

type apiHarness struct {
	store    *memstore.Store
	clock    *clock.MockClock
	events   *mocks.EventRecorder
	hub      *events.Hub
	registry *prometheus.Registry
	handler  http.Handler

	seller   *account.User
	bidder   *account.User
	rival    *account.User
	manager  *account.User
	expert   *account.User
	item     *auction.Item
	authItem *auction.Item
	authReq  *authentication.Request
	checkers []HealthChecker
}

func newAPIHarness(t *testing.T, checkers ...HealthChecker) *apiHarness {
	t.Helper()
	store := memstore.New()
	clk := clock.NewMock(fixtures.Now)
	recorder := mocks.NewEventRecorder()
	logger := zaptest.NewLogger(t)

	h := &apiHarness{
		store:    store,
		clock:    clk,
		events:   recorder,
		hub:      events.NewHub(logger, events.DefaultHubConfig()),
		registry: prometheus.NewRegistry(),
		seller:   fixtures.NewUser("sam", account.RoleUser),
		bidder:   fixtures.NewUser("bea", account.RoleUser),
		rival:    fixtures.NewUser("rory", account.RoleUser),
		manager:  fixtures.NewUser("morgan", account.RoleManager),
		expert:   fixtures.NewUser("ellis", account.RoleExpert),
		checkers: checkers,
	}
	t.Cleanup(h.hub.Close)
	for _, u := range []*account.User{h.seller, h.bidder, h.rival, h.manager, h.expert} {
		store.AddUser(u)
	}

	h.item = fixtures.NewItemBuilder(h.seller.ID).WithTitle("Brass telescope").Build()
	store.AddItem(h.item)

	h.authItem = fixtures.NewItemBuilder(h.seller.ID).WithTitle("Art deco lamp").Build()
	store.AddItem(h.authItem)
	h.authReq = fixtures.NewRequest(h.authItem.ID, h.seller.ID)
	store.AddRequest(h.authReq)
	store.AddAvailability(fixtures.Slot(h.expert.ID, fixtures.Now, 12, 17))

	bids := bidding.NewService(store.Items(), store.Bids(), store.Requests(), recorder, mocks.NewNoopMetrics(),
		clk, logger, bidding.DefaultConfig())
	alloc := expertise.NewAllocator(store.Users(), store.Items(), store.Requests(), store.Assignments(), store.Profiles(),
		recorder, mocks.NewNoopMetrics(), mocks.NewSequenceRand(0), clk, logger, expertise.DefaultConfig())

	handler, err := NewRouter(&Dependencies{
		Bidding:         bids,
		Allocator:       alloc,
		Notifications:   store.Notifications(),
		Hub:             h.hub,
		HealthCheckers:  checkers,
		Registry:        h.registry,
		Version:         "test",
		JWTSecret:       testJWTSecret,
		WebhookSecret:   testWebhookSecret,
		AllowedOrigins:  []string{"https://vintagevault.test"},
		DefaultCurrency: "GBP",
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	h.handler = handler
	return h
}

func signToken(t *testing.T, secret string, userID uuid.UUID, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

type testResponse struct {
	Code int
	Body ResponseEnvelope
	Raw  []byte
	Data json.RawMessage
}

// do sends body (marshalled to JSON unless nil) as user, or anonymously
// when user is nil.
func (h *apiHarness) do(t *testing.T, method, path string, user *account.User, body any) testResponse {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+signToken(t, testJWTSecret, user.ID, time.Hour))
	}
	return h.serve(t, req)
}

func (h *apiHarness) serve(t *testing.T, req *http.Request) testResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	res := testResponse{Code: rec.Code, Raw: rec.Body.Bytes()}
	var envelope struct {
		ResponseEnvelope
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(res.Raw, &envelope) == nil {
		res.Body = envelope.ResponseEnvelope
		res.Data = envelope.Data
	}
	return res
}

func decodeData[T any](t *testing.T, res testResponse) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(res.Data, &v), string(res.Raw))
	return v
}

func TestAuthentication(t *testing.T) {
	h := newAPIHarness(t)
	path := "/api/v1/items/" + h.item.ID.String() + "/bids"

	tests := []struct {
		name   string
		header string
	}{
		{"missing token", ""},
		{"wrong scheme", "Basic abc"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", h.bidder.ID, time.Hour)},
		{"expired", "Bearer " + signToken(t, testJWTSecret, h.bidder.ID, -time.Minute)},
		{"garbage", "Bearer not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			res := h.serve(t, req)
			assert.Equal(t, http.StatusUnauthorized, res.Code)
			require.NotNil(t, res.Body.Error)
			assert.Equal(t, "UNAUTHORIZED", res.Body.Error.Code)
		})
	}

	t.Run("non uuid subject", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "bea",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}})
		signed, err := token.SignedString([]byte(testJWTSecret))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		assert.Equal(t, http.StatusUnauthorized, h.serve(t, req).Code)
	})

	t.Run("unauthorized response advertises bearer", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, `Bearer realm="api"`, rec.Header().Get("WWW-Authenticate"))
	})
}

func TestPlaceBid(t *testing.T) {
	h := newAPIHarness(t)
	path := "/api/v1/items/" + h.item.ID.String() + "/bids"

	res := h.do(t, http.MethodPost, path, h.bidder, PlaceBidRequest{Amount: "150.00"})
	require.Equal(t, http.StatusCreated, res.Code, string(res.Raw))
	assert.True(t, res.Body.Success)
	assert.NotEmpty(t, res.Body.Meta.RequestID)

	first := decodeData[auction.Bid](t, res)
	assert.Equal(t, h.bidder.ID, first.BidderID)
	assert.Equal(t, "£150.00", first.Amount.String())

	res = h.do(t, http.MethodPost, path, h.rival, PlaceBidRequest{Amount: "160", Currency: "GBP"})
	require.Equal(t, http.StatusCreated, res.Code, string(res.Raw))

	outbid := h.events.OfType(notification.TypeOutbid)
	require.Len(t, outbid, 1)
	assert.Equal(t, h.bidder.ID, outbid[0].UserID)

	res = h.do(t, http.MethodGet, path, h.bidder, nil)
	require.Equal(t, http.StatusOK, res.Code)
	list := decodeData[[]auction.Bid](t, res)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, h.rival.ID, list[1].BidderID)
}

func TestPlaceBid_Rejections(t *testing.T) {
	h := newAPIHarness(t)
	path := "/api/v1/items/" + h.item.ID.String() + "/bids"

	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, path, h.rival, PlaceBidRequest{Amount: "200"}).Code)

	tests := []struct {
		name   string
		user   *account.User
		path   string
		body   any
		status int
		code   string
	}{
		{"not higher", h.bidder, path, PlaceBidRequest{Amount: "200.00"}, http.StatusBadRequest, "BID_TOO_LOW"},
		{"seller", h.seller, path, PlaceBidRequest{Amount: "500"}, http.StatusBadRequest, "SELLER_CANNOT_BID"},
		{"currency mismatch", h.bidder, path, PlaceBidRequest{Amount: "500", Currency: "EUR"}, http.StatusBadRequest, "CURRENCY_MISMATCH"},
		{"malformed amount", h.bidder, path, PlaceBidRequest{Amount: "lots"}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"too many decimals", h.bidder, path, PlaceBidRequest{Amount: "300.001"}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"negative", h.bidder, path, PlaceBidRequest{Amount: "-5"}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"unknown field", h.bidder, path, map[string]string{"amount": "300", "max": "400"}, http.StatusBadRequest, "INVALID_JSON"},
		{"bad item id", h.bidder, "/api/v1/items/nope/bids", PlaceBidRequest{Amount: "300"}, http.StatusBadRequest, "INVALID_ID"},
		{"unknown item", h.bidder, "/api/v1/items/" + uuid.NewString() + "/bids", PlaceBidRequest{Amount: "300"}, http.StatusNotFound, "RESOURCE_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := h.do(t, http.MethodPost, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, res.Code, string(res.Raw))
			require.NotNil(t, res.Body.Error, string(res.Raw))
			assert.Equal(t, tt.code, res.Body.Error.Code)
			assert.False(t, res.Body.Success)
		})
	}

	t.Run("field errors use json names", func(t *testing.T) {
		res := h.do(t, http.MethodPost, path, h.bidder, PlaceBidRequest{Amount: "", Currency: "JPY"})
		require.Equal(t, http.StatusBadRequest, res.Code)
		assert.Contains(t, res.Body.Error.Fields, "amount")
		assert.Contains(t, res.Body.Error.Fields, "currency")
	})

	list := h.do(t, http.MethodGet, path, h.bidder, nil)
	assert.Len(t, decodeData[[]auction.Bid](t, list), 1)
}

func TestFinalizeAndPaymentConfirmation(t *testing.T) {
	h := newAPIHarness(t)
	itemPath := "/api/v1/items/" + h.item.ID.String()

	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, itemPath+"/bids", h.bidder, PlaceBidRequest{Amount: "250"}).Code)

	res := h.do(t, http.MethodPost, itemPath+"/finalize", h.seller, nil)
	require.Equal(t, http.StatusOK, res.Code, string(res.Raw))
	early := decodeData[bidding.FinalizeResult](t, res)
	assert.Equal(t, bidding.OutcomeSkipped, early.Outcome)
	assert.Equal(t, auction.StatusOpen, early.Status)

	h.clock.Advance(49 * time.Hour)

	res = h.do(t, http.MethodPost, itemPath+"/finalize", h.seller, nil)
	require.Equal(t, http.StatusOK, res.Code, string(res.Raw))
	result := decodeData[bidding.FinalizeResult](t, res)
	assert.Equal(t, bidding.OutcomeSold, result.Outcome)
	assert.Equal(t, auction.StatusWon, result.Status)

	res = h.do(t, http.MethodPost, itemPath+"/finalize", h.seller, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, bidding.OutcomeSkipped, decodeData[bidding.FinalizeResult](t, res).Outcome)
	assert.Len(t, h.events.OfType(notification.TypeWinner), 1)

	confirm := PaymentConfirmation{ItemID: h.item.ID.String(), PaymentReference: "pi_3Nk"}
	confirmReq := func(secret string) *http.Request {
		b, _ := json.Marshal(confirm)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/confirmations", bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
		if secret != "" {
			req.Header.Set(WebhookSecretHeader, secret)
		}
		return req
	}

	assert.Equal(t, http.StatusUnauthorized, h.serve(t, confirmReq("")).Code)
	assert.Equal(t, http.StatusUnauthorized, h.serve(t, confirmReq("guess")).Code)

	res = h.serve(t, confirmReq(testWebhookSecret))
	require.Equal(t, http.StatusOK, res.Code, string(res.Raw))
	payment := decodeData[auction.Payment](t, res)
	assert.Equal(t, "pi_3Nk", payment.Reference)
	assert.Equal(t, "£2.50", payment.FeeAmount.String())

	stored, ok := h.store.Item(h.item.ID)
	require.True(t, ok)
	assert.Equal(t, auction.StatusPaid, stored.Status)

	res = h.serve(t, confirmReq(testWebhookSecret))
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "ITEM_NOT_WON", res.Body.Error.Code)
}

func TestWebhookDisabledWithoutSecret(t *testing.T) {
	handler := RequireWebhookSecret("")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(WebhookSecretHeader, "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExpertAssignmentFlow(t *testing.T) {
	h := newAPIHarness(t)
	reqPath := "/api/v1/requests/" + h.authReq.ID.String()

	res := h.do(t, http.MethodGet, reqPath+"/experts", h.bidder, nil)
	assert.Equal(t, http.StatusForbidden, res.Code, string(res.Raw))

	res = h.do(t, http.MethodGet, reqPath+"/experts", h.manager, nil)
	require.Equal(t, http.StatusOK, res.Code, string(res.Raw))
	scores := decodeData[[]expertise.Score](t, res)
	require.Len(t, scores, 1)
	assert.Equal(t, h.expert.ID, scores[0].ExpertID)

	res = h.do(t, http.MethodPost, reqPath+"/assignments", h.manager, AssignExpertRequest{ExpertID: h.expert.ID.String()})
	require.Equal(t, http.StatusCreated, res.Code, string(res.Raw))
	assignment := decodeData[authentication.Assignment](t, res)
	assert.Equal(t, authentication.AssignmentNotified, assignment.Status)
	assert.Contains(t, string(res.Data), `"status":"notified"`)

	res = h.do(t, http.MethodPost, reqPath+"/assignments", h.manager, AssignExpertRequest{ExpertID: h.expert.ID.String()})
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "ALREADY_ASSIGNED", res.Body.Error.Code)

	assignPath := "/api/v1/assignments/" + assignment.ID.String()
	res = h.do(t, http.MethodPost, assignPath+"/respond", h.bidder, RespondRequest{Decision: "approve"})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = h.do(t, http.MethodPost, assignPath+"/respond", h.expert, RespondRequest{Decision: "maybe"})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = h.do(t, http.MethodPost, assignPath+"/respond", h.expert, RespondRequest{Decision: "accept"})
	require.Equal(t, http.StatusOK, res.Code, string(res.Raw))
	assert.Equal(t, authentication.AssignmentCompleted, decodeData[authentication.Assignment](t, res).Status)

	req, ok := h.store.Request(h.authReq.ID)
	require.True(t, ok)
	assert.Equal(t, authentication.RequestApproved, req.Status)
	assert.Len(t, h.events.OfType(notification.TypeAuthDecision), 1)

	res = h.do(t, http.MethodPost, assignPath+"/reassign", h.manager, nil)
	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestAutoAssignAndReassign(t *testing.T) {
	h := newAPIHarness(t)
	reqPath := "/api/v1/requests/" + h.authReq.ID.String()

	res := h.do(t, http.MethodPost, reqPath+"/auto-assign", h.manager, nil)
	require.Equal(t, http.StatusCreated, res.Code, string(res.Raw))
	first := decodeData[authentication.Assignment](t, res)
	assert.Equal(t, h.expert.ID, first.ExpertID)

	res = h.do(t, http.MethodPost, "/api/v1/assignments/"+first.ID.String()+"/reassign", h.expert, nil)
	require.Equal(t, http.StatusOK, res.Code, string(res.Raw))
	assert.Equal(t, authentication.AssignmentReassigned, decodeData[authentication.Assignment](t, res).Status)

	// The only expert was already tried for this request.
	res = h.do(t, http.MethodPost, reqPath+"/auto-assign", h.manager,
		AutoAssignRequest{PreferredExpertID: h.expert.ID.String()})
	assert.Equal(t, http.StatusNotFound, res.Code, string(res.Raw))

	res = h.do(t, http.MethodPost, reqPath+"/auto-assign", h.manager, AutoAssignRequest{PreferredExpertID: "someone"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.Error.Fields, "preferred_expert_id")
}

func TestBulkAutoAssign(t *testing.T) {
	h := newAPIHarness(t)

	other := fixtures.NewItemBuilder(h.seller.ID).WithTitle("Tin robot").Build()
	h.store.AddItem(other)
	second := fixtures.NewRequest(other.ID, h.seller.ID)
	h.store.AddRequest(second)
	missing := uuid.New()

	res := h.do(t, http.MethodPost, "/api/v1/requests/auto-assign", h.manager, BulkAutoAssignRequest{
		RequestIDs: []string{h.authReq.ID.String(), second.ID.String(), missing.String()},
	})
	require.Equal(t, http.StatusOK, res.Code, string(res.Raw))

	results := decodeData[[]struct {
		RequestID  string                     `json:"request_id"`
		Assignment *authentication.Assignment `json:"assignment"`
		Error      string                     `json:"error"`
		Code       string                     `json:"code"`
	}](t, res)
	require.Len(t, results, 3)

	assigned := 0
	for _, r := range results {
		if r.Assignment != nil {
			assigned++
			assert.Equal(t, h.expert.ID, r.Assignment.ExpertID)
			continue
		}
		assert.NotEmpty(t, r.Code, r.RequestID)
	}
	assert.Equal(t, 2, assigned)
	assert.Equal(t, missing.String(), results[2].RequestID)
	assert.Equal(t, "RESOURCE_NOT_FOUND", results[2].Code)

	res = h.do(t, http.MethodPost, "/api/v1/requests/auto-assign", h.manager, BulkAutoAssignRequest{})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	res = h.do(t, http.MethodPost, "/api/v1/requests/auto-assign", h.manager,
		BulkAutoAssignRequest{RequestIDs: []string{"x"}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestListNotifications(t *testing.T) {
	h := newAPIHarness(t)
	ctx := context.Background()

	for i := range 3 {
		e := notification.Outbid(h.bidder.ID, h.item.ID, h.item.Title, fixtures.Now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, h.store.Notifications().Save(ctx, notification.FromEvent(e)))
	}
	require.NoError(t, h.store.Notifications().Save(ctx,
		notification.FromEvent(notification.Winner(h.rival.ID, h.item.ID, h.item.Title, fixtures.Now))))

	res := h.do(t, http.MethodGet, "/api/v1/notifications?limit=2", h.bidder, nil)
	require.Equal(t, http.StatusOK, res.Code, string(res.Raw))
	list := decodeData[[]notification.Notification](t, res)
	require.Len(t, list, 2)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
	for _, n := range list {
		assert.Equal(t, h.bidder.ID, n.UserID)
	}

	res = h.do(t, http.MethodGet, "/api/v1/notifications", h.manager, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `[]`, string(res.Data))

	res = h.do(t, http.MethodGet, "/api/v1/notifications?limit=0", h.bidder, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newAPIHarness(t)
	h.do(t, http.MethodGet, "/api/v1/items/"+h.item.ID.String()+"/bids", h.bidder, nil)

	res := h.serve(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, res.Code)
	body := string(res.Raw)
	assert.Contains(t, body, "vintage_vault_http_requests_total")
	assert.Contains(t, body, `route="GET /api/v1/items/{id}/bids"`)
}

func TestHealthz(t *testing.T) {
	ok := CheckFunc{CheckName: "database", Critical: true, Probe: func(context.Context) (map[string]any, error) {
		return map[string]any{"open": 3}, nil
	}}
	degraded := CheckFunc{CheckName: "redis", Probe: func(context.Context) (map[string]any, error) {
		return nil, errors.New("connection refused")
	}}
	down := CheckFunc{CheckName: "database", Critical: true, Probe: func(context.Context) (map[string]any, error) {
		return nil, errors.New("ping timeout")
	}}

	tests := []struct {
		name     string
		checkers []HealthChecker
		code     int
		status   HealthStatus
	}{
		{"healthy", []HealthChecker{ok}, http.StatusOK, HealthStatusPass},
		{"degraded", []HealthChecker{ok, degraded}, http.StatusOK, HealthStatusWarn},
		{"down", []HealthChecker{down, degraded}, http.StatusServiceUnavailable, HealthStatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAPIHarness(t, tt.checkers...)
			res := h.serve(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, tt.code, res.Code)

			var rep HealthReport
			require.NoError(t, json.Unmarshal(res.Raw, &rep))
			assert.Equal(t, tt.status, rep.Status)
			assert.Len(t, rep.Checks, len(tt.checkers))
			assert.Equal(t, "test", rep.Version)
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), RecoveryMiddleware(logger), RequestIDMiddleware())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDPropagation(t *testing.T) {
	h := newAPIHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testJWTSecret, h.bidder.ID, time.Hour))
	req.Header.Set("X-Request-ID", "req-42")

	res := h.serve(t, req)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "req-42", res.Body.Meta.RequestID)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://vintagevault.test"})

	req := httptest.NewRequest(http.MethodGet, "http://api.vintagevault.test/api/v1/ws", nil)
	assert.True(t, check(req), "no origin")

	req.Header.Set("Origin", "https://vintagevault.test")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://api.vintagevault.test")
	assert.True(t, check(req), "same host")

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}

func TestExtractToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws?token=from-query", nil)
	assert.Equal(t, "from-query", extractToken(req))

	req.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", extractToken(req))

	req.Header.Set("Authorization", "Token nope")
	assert.Empty(t, extractToken(req))
}

func TestParseAndValidate_ContentType(t *testing.T) {
	base := NewBaseHandler("v1", slog.New(slog.NewTextHandler(io.Discard, nil)))
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`amount=5`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var body PlaceBidRequest
	err := base.ParseAndValidate(req, &body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "application/json")
}
