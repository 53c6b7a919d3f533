package expertise

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/account"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/auction"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/authentication"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/clock"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/errors"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/notification"
)

// Assignment modes reported to metrics
const (
	modeManual = "manual"
	modeAuto   = "auto"
	modeBulk   = "bulk"
)

type allocator struct {
	users       UserRepository
	items       ItemReader
	requests    RequestRepository
	assignments AssignmentRepository
	profiles    ExpertProfileRepository
	events      EventPublisher
	metrics     MetricsCollector
	scorer      *Scorer
	rng         Rand
	clock       clock.Clock
	logger      *zap.Logger
	cfg         Config
}

// NewAllocator creates a new assignment allocator
func NewAllocator(
	users UserRepository,
	items ItemReader,
	requests RequestRepository,
	assignments AssignmentRepository,
	profiles ExpertProfileRepository,
	events EventPublisher,
	metrics MetricsCollector,
	rng Rand,
	clk clock.Clock,
	logger *zap.Logger,
	cfg Config,
) Allocator {
	return &allocator{
		users:       users,
		items:       items,
		requests:    requests,
		assignments: assignments,
		profiles:    profiles,
		events:      events,
		metrics:     metrics,
		scorer:      NewScorer(cfg.MaxWorkload),
		rng:         rng,
		clock:       clk,
		logger:      logger.Named("expertise"),
		cfg:         cfg,
	}
}

// requestContext is a request with the item it is about.
type requestContext struct {
	request *authentication.Request
	item    *auction.Item
	// assigned holds every expert that ever held an assignment for the request.
	assigned map[uuid.UUID]bool
	active   bool
}

// Assign binds a specific expert to a pending request
func (a *allocator) Assign(ctx context.Context, requestID, expertID, actorID uuid.UUID) (*authentication.Assignment, error) {
	if _, err := a.requireManager(ctx, actorID); err != nil {
		return nil, err
	}
	rc, err := a.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return a.assign(ctx, rc, expertID, actorID, modeManual)
}

func (a *allocator) assign(ctx context.Context, rc *requestContext, expertID, actorID uuid.UUID, mode string) (*authentication.Assignment, error) {
	now := a.clock.Now()

	if !rc.request.IsPending() {
		return nil, a.reject(ctx, errors.NewConflictError("REQUEST_NOT_PENDING",
			"request is "+rc.request.Status.String()))
	}
	if rc.active {
		return nil, a.reject(ctx, errors.NewConflictError("ALREADY_ASSIGNED",
			"request already has an active expert assignment"))
	}

	expert, err := a.getUser(ctx, expertID, "expert")
	if err != nil {
		return nil, err
	}
	switch {
	case !expert.IsExpert():
		return nil, a.reject(ctx, errors.NewAuthorizationError("NOT_AN_EXPERT", "user does not have the expert role"))
	case expert.ID == rc.request.RequesterID:
		return nil, a.reject(ctx, errors.NewAuthorizationError("EXPERT_IS_REQUESTER", "experts cannot authenticate their own items"))
	case expert.ID == actorID:
		return nil, a.reject(ctx, errors.NewAuthorizationError("SELF_ASSIGNMENT", "managers cannot assign themselves"))
	}

	slots, err := a.profiles.ListAvailability(ctx, []uuid.UUID{expert.ID}, auction.TruncateDay(now), rc.item.EndDate())
	if err != nil {
		return nil, errors.NewInternalError("failed to load expert availability").WithCause(err)
	}
	if !authentication.HasSlotBeforeCutoff(slots[expert.ID], now, rc.item.AuctionEnd) {
		return nil, a.reject(ctx, errors.NewConflictError("EXPERT_UNAVAILABLE",
			"expert has no availability before the final hours of the auction"))
	}

	assignment := authentication.NewAssignment(rc.request.ID, expert.ID, now)
	opening := authentication.NewOpeningMessage(rc.request.ID, expert.ID, now)
	if err := a.assignments.Create(ctx, assignment, opening); err != nil {
		if errors.Is(err, authentication.ErrActiveAssignmentExists) {
			return nil, a.reject(ctx, errors.NewConflictError("ALREADY_ASSIGNED",
				"request was assigned concurrently").WithCause(err))
		}
		if errors.Is(err, authentication.ErrStaleState) {
			return nil, a.reject(ctx, errors.NewConflictError("REQUEST_NOT_PENDING",
				"request left pending while assigning").WithCause(err))
		}
		return nil, errors.NewInternalError("failed to create assignment").WithCause(err)
	}

	a.metrics.RecordAssignment(ctx, mode)
	a.logger.Info("expert assigned",
		zap.String("request_id", rc.request.ID.String()),
		zap.String("expert_id", expert.ID.String()),
		zap.String("mode", mode))

	a.events.Publish(ctx,
		notification.ExpertAssigned(expert.ID, rc.item.ID, rc.item.Title, now),
		notification.RequesterAssigned(rc.request.RequesterID, rc.item.ID, rc.item.Title, now),
	)
	return assignment, nil
}

// AutoAssign assigns the best-scoring eligible expert
func (a *allocator) AutoAssign(ctx context.Context, requestID, actorID uuid.UUID, preferred *uuid.UUID) (*authentication.Assignment, error) {
	if _, err := a.requireManager(ctx, actorID); err != nil {
		return nil, err
	}
	rc, err := a.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	pool, err := a.loadPool(ctx, rc.item, a.cfg.AutoAssignPolicy)
	if err != nil {
		return nil, err
	}

	best, ok := a.pick(rc, pool, preferred)
	if !ok {
		return nil, a.reject(ctx, errors.NewNotFoundError("eligible expert"))
	}
	return a.assign(ctx, rc, best.ExpertID, actorID, modeAuto)
}

// BulkAutoAssign auto-assigns each request independently. Workload counts
// are read once and bumped in memory after every success so later picks in
// the batch see the new load.
func (a *allocator) BulkAutoAssign(ctx context.Context, requestIDs []uuid.UUID, actorID uuid.UUID) ([]BulkResult, error) {
	if _, err := a.requireManager(ctx, actorID); err != nil {
		return nil, err
	}

	var pool *expertPool
	results := make([]BulkResult, 0, len(requestIDs))
	for _, id := range requestIDs {
		res := BulkResult{RequestID: id}

		rc, err := a.loadRequest(ctx, id)
		if err == nil && pool == nil {
			pool, err = a.loadPool(ctx, rc.item, a.cfg.AutoAssignPolicy)
		}
		if err == nil {
			if pool.horizon.Before(rc.item.EndDate()) {
				err = a.extendPool(ctx, pool, rc.item.EndDate())
			}
		}
		if err == nil {
			best, ok := a.pick(rc, pool, nil)
			if !ok {
				err = a.reject(ctx, errors.NewNotFoundError("eligible expert"))
			} else {
				res.Assignment, err = a.assign(ctx, rc, best.ExpertID, actorID, modeBulk)
				if err == nil {
					pool.workload[best.ExpertID]++
				}
			}
		}

		res.Err = err
		results = append(results, res)
		if ctx.Err() != nil {
			break
		}
	}
	return results, nil
}

// Respond records the assigned expert's verdict
func (a *allocator) Respond(ctx context.Context, assignmentID, actorID uuid.UUID, decision authentication.Decision) (*authentication.Assignment, error) {
	now := a.clock.Now()

	assignment, err := a.getAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.ExpertID != actorID {
		return nil, a.reject(ctx, errors.NewAuthorizationError("NOT_ASSIGNED_EXPERT",
			"only the assigned expert can respond"))
	}
	if assignment.Status != authentication.AssignmentNotified {
		return nil, a.reject(ctx, errors.NewConflictError("ASSIGNMENT_NOT_OPEN",
			"assignment is "+assignment.Status.String()))
	}

	rc, err := a.loadRequest(ctx, assignment.RequestID)
	if err != nil {
		return nil, err
	}
	if !rc.request.IsPending() {
		return nil, a.reject(ctx, errors.NewConflictError("REQUEST_NOT_PENDING",
			"request is "+rc.request.Status.String()))
	}

	outcome := decision.RequestStatus()
	if err := a.assignments.Complete(ctx, assignment.ID, rc.request.ID, outcome, now); err != nil {
		if errors.Is(err, authentication.ErrStaleState) {
			return nil, a.reject(ctx, errors.NewConflictError("ASSIGNMENT_NOT_OPEN",
				"assignment changed concurrently").WithCause(err))
		}
		return nil, errors.NewInternalError("failed to record decision").WithCause(err)
	}

	assignment.Status = authentication.AssignmentCompleted
	assignment.UpdatedAt = now

	a.metrics.RecordDecision(ctx, decision.String())
	a.events.Publish(ctx, notification.AuthDecision(
		rc.request.RequesterID, rc.item.ID, rc.item.Title, decision == authentication.DecisionApprove, now))
	return assignment, nil
}

// Reassign releases a notified assignment. The request stays pending.
func (a *allocator) Reassign(ctx context.Context, assignmentID, actorID uuid.UUID) (*authentication.Assignment, error) {
	now := a.clock.Now()

	assignment, err := a.getAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.ExpertID != actorID {
		actor, err := a.getUser(ctx, actorID, "actor")
		if err != nil {
			return nil, err
		}
		if !actor.IsManager() {
			return nil, a.reject(ctx, errors.NewAuthorizationError("NOT_ASSIGNED_EXPERT",
				"only the assigned expert or a manager can reassign"))
		}
	}
	if assignment.Status != authentication.AssignmentNotified {
		return nil, a.reject(ctx, errors.NewConflictError("ASSIGNMENT_NOT_OPEN",
			"assignment is "+assignment.Status.String()))
	}

	if err := a.assignments.MarkReassigned(ctx, assignment.ID, now); err != nil {
		if errors.Is(err, authentication.ErrStaleState) {
			return nil, a.reject(ctx, errors.NewConflictError("ASSIGNMENT_NOT_OPEN",
				"assignment changed concurrently").WithCause(err))
		}
		return nil, errors.NewInternalError("failed to reassign").WithCause(err)
	}

	assignment.Status = authentication.AssignmentReassigned
	assignment.UpdatedAt = now
	a.logger.Info("assignment released",
		zap.String("assignment_id", assignment.ID.String()),
		zap.String("actor_id", actorID.String()))
	return assignment, nil
}

// RankExperts scores every eligible expert, counting all active
// assignments as workload.
func (a *allocator) RankExperts(ctx context.Context, requestID, actorID uuid.UUID) ([]Score, error) {
	if _, err := a.requireManager(ctx, actorID); err != nil {
		return nil, err
	}
	rc, err := a.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	pool, err := a.loadPool(ctx, rc.item, WorkloadActive)
	if err != nil {
		return nil, err
	}

	scores := a.scoreEligible(rc, pool)
	Rank(scores)
	return scores, nil
}

// CancelExpired cancels pending requests whose auction has ended
func (a *allocator) CancelExpired(ctx context.Context) (int, error) {
	now := a.clock.Now()

	pending, err := a.requests.ListPendingEnded(ctx, now)
	if err != nil {
		return 0, errors.NewInternalError("failed to list expired requests").WithCause(err)
	}

	cancelled := 0
	for _, req := range pending {
		ok, err := a.requests.CancelPending(ctx, req.ID, now)
		if err != nil {
			return cancelled, errors.NewInternalError("failed to cancel request").WithCause(err)
		}
		if ok {
			cancelled++
		}
	}
	if cancelled > 0 {
		a.logger.Info("cancelled expired authentication requests", zap.Int("count", cancelled))
	}
	return cancelled, nil
}

// expertPool is a snapshot of every expert with availability, expertise and
// workload, shared by all scoring in one call.
type expertPool struct {
	experts      []*account.User
	availability map[uuid.UUID][]authentication.Availability
	categories   map[uuid.UUID][]uuid.UUID
	workload     map[uuid.UUID]int
	today        time.Time
	horizon      time.Time
	now          time.Time
}

func (a *allocator) loadPool(ctx context.Context, item *auction.Item, policy WorkloadPolicy) (*expertPool, error) {
	now := a.clock.Now()

	experts, err := a.users.ListByRole(ctx, account.RoleExpert)
	if err != nil {
		return nil, errors.NewInternalError("failed to list experts").WithCause(err)
	}
	ids := make([]uuid.UUID, len(experts))
	for i, e := range experts {
		ids[i] = e.ID
	}

	pool := &expertPool{
		experts: experts,
		today:   auction.TruncateDay(now),
		horizon: item.EndDate(),
		now:     now,
	}
	if pool.availability, err = a.profiles.ListAvailability(ctx, ids, pool.today, pool.horizon); err != nil {
		return nil, errors.NewInternalError("failed to load availability").WithCause(err)
	}
	if pool.categories, err = a.profiles.ListCategories(ctx, ids); err != nil {
		return nil, errors.NewInternalError("failed to load expertise").WithCause(err)
	}
	if pool.workload, err = a.assignments.CountByExpert(ctx, policy.Statuses()); err != nil {
		return nil, errors.NewInternalError("failed to count workload").WithCause(err)
	}
	return pool, nil
}

// extendPool widens the availability window of a bulk snapshot for an item
// ending later than any seen so far.
func (a *allocator) extendPool(ctx context.Context, pool *expertPool, horizon time.Time) error {
	ids := make([]uuid.UUID, len(pool.experts))
	for i, e := range pool.experts {
		ids[i] = e.ID
	}
	availability, err := a.profiles.ListAvailability(ctx, ids, pool.today, horizon)
	if err != nil {
		return errors.NewInternalError("failed to load availability").WithCause(err)
	}
	pool.availability = availability
	pool.horizon = horizon
	return nil
}

func (a *allocator) scoreEligible(rc *requestContext, pool *expertPool) []Score {
	var scores []Score
	for _, e := range pool.experts {
		if !Eligible(e, rc.request, rc.assigned) {
			continue
		}
		scores = append(scores, a.scorer.Score(Candidate{
			Expert:       e,
			Availability: pool.availability[e.ID],
			Workload:     pool.workload[e.ID],
			Categories:   pool.categories[e.ID],
		}, rc.item, pool.now))
	}
	return scores
}

// pick chooses among the experts that could actually take the request. An
// expert with no slot before the cutoff may still rank well, so it is
// filtered here rather than left for assign to reject.
func (a *allocator) pick(rc *requestContext, pool *expertPool, preferred *uuid.UUID) (Score, bool) {
	scores := a.scoreEligible(rc, pool)
	assignable := scores[:0]
	for _, s := range scores {
		if authentication.HasSlotBeforeCutoff(pool.availability[s.ExpertID], pool.now, rc.item.AuctionEnd) {
			assignable = append(assignable, s)
		}
	}
	return SelectBest(assignable, preferred, a.rng)
}

func (a *allocator) loadRequest(ctx context.Context, id uuid.UUID) (*requestContext, error) {
	req, err := a.requests.GetByID(ctx, id)
	if errors.Is(err, errors.ErrRecordNotFound) {
		return nil, errors.NewNotFoundError("authentication request").WithCause(err)
	}
	if err != nil {
		return nil, errors.NewInternalError("failed to load request").WithCause(err)
	}

	item, err := a.items.GetByID(ctx, req.ItemID)
	if errors.Is(err, errors.ErrRecordNotFound) {
		return nil, errors.NewNotFoundError("item").WithCause(err)
	}
	if err != nil {
		return nil, errors.NewInternalError("failed to load item").WithCause(err)
	}

	history, err := a.assignments.ListByRequest(ctx, req.ID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load assignments").WithCause(err)
	}
	rc := &requestContext{request: req, item: item, assigned: make(map[uuid.UUID]bool, len(history))}
	for _, h := range history {
		rc.assigned[h.ExpertID] = true
		if h.Status.IsActive() {
			rc.active = true
		}
	}
	return rc, nil
}

func (a *allocator) requireManager(ctx context.Context, actorID uuid.UUID) (*account.User, error) {
	actor, err := a.getUser(ctx, actorID, "actor")
	if err != nil {
		return nil, err
	}
	if !actor.IsManager() {
		return nil, a.reject(ctx, errors.NewAuthorizationError("MANAGER_REQUIRED", "only managers can assign experts"))
	}
	return actor, nil
}

func (a *allocator) getUser(ctx context.Context, id uuid.UUID, what string) (*account.User, error) {
	u, err := a.users.GetByID(ctx, id)
	if errors.Is(err, errors.ErrRecordNotFound) {
		return nil, errors.NewNotFoundError(what).WithCause(err)
	}
	if err != nil {
		return nil, errors.NewInternalError("failed to load user").WithCause(err)
	}
	return u, nil
}

func (a *allocator) getAssignment(ctx context.Context, id uuid.UUID) (*authentication.Assignment, error) {
	as, err := a.assignments.GetByID(ctx, id)
	if errors.Is(err, errors.ErrRecordNotFound) {
		return nil, errors.NewNotFoundError("assignment").WithCause(err)
	}
	if err != nil {
		return nil, errors.NewInternalError("failed to load assignment").WithCause(err)
	}
	return as, nil
}

func (a *allocator) reject(ctx context.Context, err *errors.AppError) error {
	a.metrics.RecordAssignmentRejected(ctx, err.Code)
	return err
}
