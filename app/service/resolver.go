package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/entity"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/factory"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/provider"
)

type bookingRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.Booking, error)
	FindBySquareOrderID(ctx context.Context, squareOrderID string) (*entity.Booking, error)
}

type productOrderRepository interface {
	FindBySquareOrderID(ctx context.Context, squareOrderID string) (*entity.ProductOrder, error)
}

type orderFetcher interface {
	GetOrder(ctx context.Context, orderID string) (*provider.Order, error)
}

// Resolver maps a processor order id to a local booking or product order.
type Resolver struct {
	bookings      bookingRepository
	productOrders productOrderRepository
	orders        orderFetcher
	logger        logrus.FieldLogger
}

// NewResolver builds a resolver. orders may be nil when remote order lookup is not configured.
func NewResolver(bookings bookingRepository, productOrders productOrderRepository, orders orderFetcher) *Resolver {
	return &Resolver{
		bookings:      bookings,
		productOrders: productOrders,
		orders:        orders,
		logger:        factory.NewModuleLogger("entity-resolver"),
	}
}

func (r *Resolver) ResolveBooking(ctx context.Context, orderID *string) (*entity.Booking, error) {
	id := trimmedValue(orderID)
	if id == "" {
		return nil, nil
	}

	booking, err := r.bookings.FindBySquareOrderID(ctx, id)
	if err != nil || booking != nil {
		return booking, err
	}

	return r.resolveBookingRemotely(ctx, id), nil
}

// resolveBookingRemotely never fails; every error is treated as no match.
func (r *Resolver) resolveBookingRemotely(ctx context.Context, orderID string) *entity.Booking {
	if r.orders == nil {
		return nil
	}
	l := r.logger.WithField("order_id", orderID)

	order, err := r.orders.GetOrder(ctx, orderID)
	if err != nil {
		l.WithError(err).Warn("remote order lookup failed")
		return nil
	}
	if order == nil || strings.TrimSpace(order.ReferenceID) == "" {
		l.Debug("remote order has no reference id")
		return nil
	}

	bookingID, err := strconv.ParseUint(strings.TrimSpace(order.ReferenceID), 10, 64)
	if err != nil || bookingID == 0 {
		l.WithField("reference_id", order.ReferenceID).Debug("remote order reference is not a booking id")
		return nil
	}

	booking, err := r.bookings.FindByID(ctx, bookingID)
	if err != nil {
		l.WithError(err).WithField("booking_id", bookingID).Warn("booking lookup by order reference failed")
		return nil
	}
	if booking == nil {
		l.WithField("booking_id", bookingID).Debug("order reference does not match a booking")
	}
	return booking
}

func (r *Resolver) ResolveProductOrder(ctx context.Context, orderID *string) (*entity.ProductOrder, error) {
	id := trimmedValue(orderID)
	if id == "" {
		return nil, nil
	}
	return r.productOrders.FindBySquareOrderID(ctx, id)
}

func trimmedValue(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
