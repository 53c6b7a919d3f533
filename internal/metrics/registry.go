package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/values"
)

// Registry holds the domain metrics of the marketplace. It satisfies the
// metrics collector interfaces of the bidding, expertise and notification
// services.
type Registry struct {
	meter metric.Meter

	// Auction metrics
	BidsPlaced    metric.Int64Counter
	BidAmount     metric.Float64Histogram
	BidsRejected  metric.Int64Counter
	Finalizations metric.Int64Counter
	Payments      metric.Int64Counter
	PlatformFees  metric.Float64Counter

	// Authentication metrics
	Assignments         metric.Int64Counter
	AssignmentsRejected metric.Int64Counter
	Decisions           metric.Int64Counter

	// Notification metrics
	Deliveries       metric.Int64Counter
	DeliveryFailures metric.Int64Counter
	DispatchQueue    metric.Int64ObservableGauge

	mu         sync.RWMutex
	queueDepth func() int64
}

// NewRegistry creates the registry on the global meter provider.
func NewRegistry(meterName string) (*Registry, error) {
	return NewRegistryWithMeter(otel.Meter(meterName))
}

// NewRegistryWithMeter creates the registry on a specific meter.
func NewRegistryWithMeter(meter metric.Meter) (*Registry, error) {
	r := &Registry{meter: meter}

	if err := r.initAuctionMetrics(); err != nil {
		return nil, err
	}
	if err := r.initAuthenticationMetrics(); err != nil {
		return nil, err
	}
	if err := r.initNotificationMetrics(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) initAuctionMetrics() error {
	var err error

	if r.BidsPlaced, err = r.meter.Int64Counter(
		"vv.bid.placed",
		metric.WithDescription("Number of accepted bids"),
	); err != nil {
		return err
	}

	if r.BidAmount, err = r.meter.Float64Histogram(
		"vv.bid.amount",
		metric.WithDescription("Amount of accepted bids"),
		metric.WithExplicitBucketBoundaries(10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
	); err != nil {
		return err
	}

	if r.BidsRejected, err = r.meter.Int64Counter(
		"vv.bid.rejected",
		metric.WithDescription("Number of rejected bids by reason"),
	); err != nil {
		return err
	}

	if r.Finalizations, err = r.meter.Int64Counter(
		"vv.auction.finalized",
		metric.WithDescription("Number of auctions finalized by outcome"),
	); err != nil {
		return err
	}

	if r.Payments, err = r.meter.Int64Counter(
		"vv.payment.recorded",
		metric.WithDescription("Number of payments recorded"),
	); err != nil {
		return err
	}

	r.PlatformFees, err = r.meter.Float64Counter(
		"vv.payment.platform_fees",
		metric.WithDescription("Platform fees collected"),
	)
	return err
}

func (r *Registry) initAuthenticationMetrics() error {
	var err error

	if r.Assignments, err = r.meter.Int64Counter(
		"vv.assignment.created",
		metric.WithDescription("Number of expert assignments by mode"),
	); err != nil {
		return err
	}

	if r.AssignmentsRejected, err = r.meter.Int64Counter(
		"vv.assignment.rejected",
		metric.WithDescription("Number of rejected assignment operations by reason"),
	); err != nil {
		return err
	}

	r.Decisions, err = r.meter.Int64Counter(
		"vv.authentication.decisions",
		metric.WithDescription("Number of expert verdicts by decision"),
	)
	return err
}

func (r *Registry) initNotificationMetrics() error {
	var err error

	if r.Deliveries, err = r.meter.Int64Counter(
		"vv.notification.deliveries",
		metric.WithDescription("Notification channel deliveries attempted"),
	); err != nil {
		return err
	}

	if r.DeliveryFailures, err = r.meter.Int64Counter(
		"vv.notification.delivery_failures",
		metric.WithDescription("Notification channel deliveries that failed"),
	); err != nil {
		return err
	}

	r.DispatchQueue, err = r.meter.Int64ObservableGauge(
		"vv.notification.queue_depth",
		metric.WithDescription("Events waiting in the dispatch queue"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			fn := r.queueDepth
			r.mu.RUnlock()
			if fn != nil {
				o.Observe(fn())
			}
			return nil
		}),
	)
	return err
}

// ObserveQueueDepth registers the source of the dispatch queue gauge.
func (r *Registry) ObserveQueueDepth(fn func() int64) {
	r.mu.Lock()
	r.queueDepth = fn
	r.mu.Unlock()
}

func (r *Registry) RecordBidPlaced(ctx context.Context, amount values.Money) {
	attrs := metric.WithAttributes(attribute.String("currency", amount.Currency()))
	r.BidsPlaced.Add(ctx, 1, attrs)
	r.BidAmount.Record(ctx, amount.Amount().InexactFloat64(), attrs)
}

func (r *Registry) RecordBidRejected(ctx context.Context, reason string) {
	r.BidsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (r *Registry) RecordFinalization(ctx context.Context, outcome string) {
	r.Finalizations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (r *Registry) RecordPayment(ctx context.Context, amount, fee values.Money) {
	attrs := metric.WithAttributes(attribute.String("currency", amount.Currency()))
	r.Payments.Add(ctx, 1, attrs)
	r.PlatformFees.Add(ctx, fee.Amount().InexactFloat64(), attrs)
}

func (r *Registry) RecordAssignment(ctx context.Context, mode string) {
	r.Assignments.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

func (r *Registry) RecordAssignmentRejected(ctx context.Context, reason string) {
	r.AssignmentsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (r *Registry) RecordDecision(ctx context.Context, decision string) {
	r.Decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
}

func (r *Registry) RecordDelivery(ctx context.Context, channel string, err error) {
	attrs := metric.WithAttributes(attribute.String("channel", channel))
	r.Deliveries.Add(ctx, 1, attrs)
	if err != nil {
		r.DeliveryFailures.Add(ctx, 1, attrs)
	}
}
