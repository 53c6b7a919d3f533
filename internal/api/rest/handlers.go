package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/auction"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/authentication"
	domainerrors "github.com/davidleathers/vintage-vault-backend/internal/domain/errors"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/notification"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/values"
	"github.com/davidleathers/vintage-vault-backend/internal/service/bidding"
	"github.com/davidleathers/vintage-vault-backend/internal/service/expertise"
)

// NotificationReader lists a user's stored notifications
type NotificationReader interface {
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*notification.Notification, error)
}

// ConnectionRegistrar takes ownership of an upgraded websocket
type ConnectionRegistrar interface {
	Register(userID uuid.UUID, conn *websocket.Conn)
}

// Handlers serves the marketplace API
type Handlers struct {
	*BaseHandler

	bidding         bidding.Service
	allocator       expertise.Allocator
	notifications   NotificationReader
	hub             ConnectionRegistrar
	upgrader        websocket.Upgrader
	defaultCurrency string
}

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

func NewHandlers(base *BaseHandler, deps *Dependencies) *Handlers {
	h := &Handlers{
		BaseHandler:     base,
		bidding:         deps.Bidding,
		allocator:       deps.Allocator,
		notifications:   deps.Notifications,
		hub:             deps.Hub,
		defaultCurrency: deps.DefaultCurrency,
	}
	if h.defaultCurrency == "" {
		h.defaultCurrency = "GBP"
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(deps.AllowedOrigins),
	}
	return h
}

func (h *Handlers) placeBid(ctx context.Context, r *http.Request) (any, error) {
	actorID, itemID, err := actorAndPathID(r, "id")
	if err != nil {
		return nil, err
	}

	var req PlaceBidRequest
	if err := h.ParseAndValidate(r, &req); err != nil {
		return nil, err
	}
	currency := req.Currency
	if currency == "" {
		currency = h.defaultCurrency
	}
	amount, err := values.NewMoneyFromString(req.Amount, currency)
	if err != nil {
		return nil, domainerrors.NewValidationError("INVALID_AMOUNT", err.Error())
	}

	return h.bidding.PlaceBid(ctx, &bidding.PlaceBidRequest{
		ItemID:   itemID,
		BidderID: actorID,
		Amount:   amount,
	})
}

func (h *Handlers) listBids(ctx context.Context, r *http.Request) (any, error) {
	itemID, err := PathUUID(r, "id")
	if err != nil {
		return nil, err
	}
	bids, err := h.bidding.ListBids(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if bids == nil {
		bids = []*auction.Bid{}
	}
	return bids, nil
}

func (h *Handlers) finalize(ctx context.Context, r *http.Request) (any, error) {
	itemID, err := PathUUID(r, "id")
	if err != nil {
		return nil, err
	}
	return h.bidding.Finalize(ctx, itemID)
}

func (h *Handlers) confirmPayment(ctx context.Context, r *http.Request) (any, error) {
	var req PaymentConfirmation
	if err := h.ParseAndValidate(r, &req); err != nil {
		return nil, err
	}
	return h.bidding.MarkPaid(ctx, uuid.MustParse(req.ItemID), req.PaymentReference)
}

func (h *Handlers) rankExperts(ctx context.Context, r *http.Request) (any, error) {
	actorID, requestID, err := actorAndPathID(r, "id")
	if err != nil {
		return nil, err
	}
	scores, err := h.allocator.RankExperts(ctx, requestID, actorID)
	if err != nil {
		return nil, err
	}
	if scores == nil {
		scores = []expertise.Score{}
	}
	return scores, nil
}

func (h *Handlers) assignExpert(ctx context.Context, r *http.Request) (any, error) {
	actorID, requestID, err := actorAndPathID(r, "id")
	if err != nil {
		return nil, err
	}
	var req AssignExpertRequest
	if err := h.ParseAndValidate(r, &req); err != nil {
		return nil, err
	}
	return h.allocator.Assign(ctx, requestID, uuid.MustParse(req.ExpertID), actorID)
}

func (h *Handlers) autoAssign(ctx context.Context, r *http.Request) (any, error) {
	actorID, requestID, err := actorAndPathID(r, "id")
	if err != nil {
		return nil, err
	}

	var req AutoAssignRequest
	if r.ContentLength != 0 {
		if err := h.ParseAndValidate(r, &req); err != nil {
			return nil, err
		}
	}
	var preferred *uuid.UUID
	if req.PreferredExpertID != "" {
		id := uuid.MustParse(req.PreferredExpertID)
		preferred = &id
	}
	return h.allocator.AutoAssign(ctx, requestID, actorID, preferred)
}

func (h *Handlers) bulkAutoAssign(ctx context.Context, r *http.Request) (any, error) {
	actorID, ok := ActorFromContext(ctx)
	if !ok {
		return nil, errMissingActor
	}
	var req BulkAutoAssignRequest
	if err := h.ParseAndValidate(r, &req); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(req.RequestIDs))
	for i, s := range req.RequestIDs {
		ids[i] = uuid.MustParse(s)
	}

	results, err := h.allocator.BulkAutoAssign(ctx, ids, actorID)
	if err != nil {
		return nil, err
	}

	out := make([]BulkAssignResult, len(results))
	for i, res := range results {
		out[i] = BulkAssignResult{RequestID: res.RequestID.String()}
		if res.Err != nil {
			out[i].Error = res.Err.Error()
			var appErr *domainerrors.AppError
			if errors.As(res.Err, &appErr) {
				out[i].Error = appErr.Message
				out[i].Code = appErr.Code
			}
			continue
		}
		out[i].Assignment = res.Assignment
	}
	return out, nil
}

func (h *Handlers) respond(ctx context.Context, r *http.Request) (any, error) {
	actorID, assignmentID, err := actorAndPathID(r, "id")
	if err != nil {
		return nil, err
	}
	var req RespondRequest
	if err := h.ParseAndValidate(r, &req); err != nil {
		return nil, err
	}
	decision, err := authentication.ParseDecision(req.Decision)
	if err != nil {
		return nil, domainerrors.NewValidationError("INVALID_DECISION", err.Error())
	}
	return h.allocator.Respond(ctx, assignmentID, actorID, decision)
}

func (h *Handlers) reassign(ctx context.Context, r *http.Request) (any, error) {
	actorID, assignmentID, err := actorAndPathID(r, "id")
	if err != nil {
		return nil, err
	}
	return h.allocator.Reassign(ctx, assignmentID, actorID)
}

func (h *Handlers) listNotifications(ctx context.Context, r *http.Request) (any, error) {
	actorID, ok := ActorFromContext(ctx)
	if !ok {
		return nil, errMissingActor
	}

	limit := defaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxNotificationLimit {
			return nil, domainerrors.NewValidationError("INVALID_LIMIT", "limit must be between 1 and 200")
		}
		limit = n
	}

	list, err := h.notifications.ListForUser(ctx, actorID, limit)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to list notifications").WithCause(err)
	}
	if list == nil {
		list = []*notification.Notification{}
	}
	return list, nil
}

// serveWebsocket upgrades the connection and hands it to the hub, which
// pushes every notification for the caller from then on.
func (h *Handlers) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	actorID, ok := ActorFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "missing authentication token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	h.hub.Register(actorID, conn)
	h.logger.DebugContext(r.Context(), "websocket connected", slog.String("user_id", actorID.String()))
}

var errMissingActor = domainerrors.NewAuthorizationError("UNAUTHENTICATED", "no authenticated user")

func actorAndPathID(r *http.Request, name string) (actorID, id uuid.UUID, err error) {
	actorID, ok := ActorFromContext(r.Context())
	if !ok {
		return uuid.Nil, uuid.Nil, errMissingActor
	}
	id, err = PathUUID(r, name)
	return actorID, id, err
}

// originChecker allows same-origin handshakes and any listed origin. "*"
// allows everything.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}
