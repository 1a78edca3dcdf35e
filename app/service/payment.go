package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/accounting"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/entity"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/factory"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/notifier"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/provider"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/repository"
)

const depositMarker = "(deposit)"

const receiptSubject = "Your payment receipt"

type paymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	CreateWithDeposit(ctx context.Context, payment *entity.Payment, deposit repository.BookingDeposit) error
	ModifyBySquarePaymentID(ctx context.Context, squarePaymentID string, modify func(payment *entity.Payment) error) (*entity.Payment, error)
	FindBySquarePaymentID(ctx context.Context, squarePaymentID string) (*entity.Payment, error)
}

type clientRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.Client, error)
}

type productOrderStatusRepository interface {
	UpdateStatus(ctx context.Context, id uint64, status string, now time.Time) error
}

type entityResolver interface {
	ResolveBooking(ctx context.Context, orderID *string) (*entity.Booking, error)
	ResolveProductOrder(ctx context.Context, orderID *string) (*entity.ProductOrder, error)
}

type sideEffects interface {
	EnqueueNotification(ctx context.Context, message notifier.Message)
	EnqueueAccountingRecord(ctx context.Context, record accounting.PaymentRecord)
}

// PaymentService applies payment and refund facts to local payment, booking and order records.
type PaymentService struct {
	paymentRepo      paymentRepository
	clientRepo       clientRepository
	productOrderRepo productOrderStatusRepository
	resolver         entityResolver
	sideEffects      sideEffects
	logger           logrus.FieldLogger
}

func NewPaymentService(
	paymentRepo paymentRepository,
	clientRepo clientRepository,
	productOrderRepo productOrderStatusRepository,
	resolver entityResolver,
	sideEffects sideEffects,
) *PaymentService {
	return &PaymentService{
		paymentRepo:      paymentRepo,
		clientRepo:       clientRepo,
		productOrderRepo: productOrderRepo,
		resolver:         resolver,
		sideEffects:      sideEffects,
		logger:           factory.NewModuleLogger("payment-state"),
	}
}

func (s *PaymentService) HandlePaymentCompleted(ctx context.Context, event *provider.Event) (*Outcome, error) {
	data, err := requirePayment(event)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	existing, err := s.paymentRepo.FindBySquarePaymentID(ctx, data.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.markPaid(ctx, data, now)
	}

	booking, err := s.resolver.ResolveBooking(ctx, data.OrderID)
	if err != nil {
		return nil, err
	}
	if booking != nil {
		return s.recordBookingPayment(ctx, booking, data, now)
	}

	order, err := s.resolver.ResolveProductOrder(ctx, data.OrderID)
	if err != nil {
		return nil, err
	}
	if order != nil {
		return s.recordProductOrderPayment(ctx, order, data, now)
	}

	outcome := skippedOutcome(data.ID, "Payment %s (order %s, amount %d) needs manual linking",
		data.ID, orderLabel(data.OrderID), data.AmountInCents)
	outcome.Snapshot = map[string]interface{}{
		"paymentId":     data.ID,
		"orderId":       trimmedValue(data.OrderID),
		"amountInCents": data.AmountInCents,
	}
	return outcome, nil
}

func (s *PaymentService) HandlePaymentUpdated(ctx context.Context, event *provider.Event) (*Outcome, error) {
	data, err := requirePayment(event)
	if err != nil {
		return nil, err
	}

	payment, err := s.paymentRepo.ModifyBySquarePaymentID(ctx, data.ID, func(payment *entity.Payment) error {
		if data.ReceiptURL != nil {
			payment.SquareReceiptURL = data.ReceiptURL
		}
		if data.OrderID != nil {
			payment.SquareOrderID = data.OrderID
		}
		if data.HasTenders {
			payment.Method = paymentMethodFromTender(data.TenderType)
		}
		payment.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return skippedOutcome(data.ID, "No matching local payment found for %s", data.ID), nil
	}

	return successOutcome(data.ID, "Payment %s updated", data.ID), nil
}

func (s *PaymentService) HandleRefund(ctx context.Context, event *provider.Event) (*Outcome, error) {
	refund := event.Refund
	if refund == nil || refund.PaymentID == "" {
		return nil, errors.New("refund event has no refund payment id")
	}

	now := time.Now().UTC()
	var reported int64
	anomaly := false
	payment, err := s.paymentRepo.ModifyBySquarePaymentID(ctx, refund.PaymentID, func(payment *entity.Payment) error {
		reported = payment.RefundedInCents + refund.AmountInCents
		payment.RefundedInCents = reported
		if payment.RefundedInCents > payment.AmountInCents {
			payment.RefundedInCents = payment.AmountInCents
			anomaly = true
		}
		if payment.RefundedInCents < 0 {
			payment.RefundedInCents = 0
			anomaly = true
		}
		payment.Status = statusForRefunds(payment)
		payment.RefundedAt = &now
		payment.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return skippedOutcome(refund.ID, "No matching local payment found for refund %s (payment %s)", refund.ID, refund.PaymentID), nil
	}

	outcome := successOutcome(refund.ID, "Refund %s applied to payment %s: refunded %d of %d",
		refund.ID, payment.SquarePaymentID, payment.RefundedInCents, payment.AmountInCents)
	if anomaly {
		s.logger.WithFields(logrus.Fields{
			"square_payment_id": payment.SquarePaymentID,
			"refund_id":         refund.ID,
			"reported_total":    reported,
			"amount_in_cents":   payment.AmountInCents,
		}).Warn("refund total outside payment amount, clamped")
		outcome.Message += fmt.Sprintf("; refund anomaly: reported total %d clamped", reported)
		outcome.Snapshot = map[string]interface{}{
			"paymentId":      payment.SquarePaymentID,
			"refundId":       refund.ID,
			"reportedTotal":  reported,
			"amountInCents":  payment.AmountInCents,
			"refundedAmount": refund.AmountInCents,
		}
	}
	return outcome, nil
}

// HandlePaymentFailed records a declined payment that resolves to a booking or order.
// It never touches an existing payment.
func (s *PaymentService) HandlePaymentFailed(ctx context.Context, event *provider.Event) (*Outcome, error) {
	data, err := requirePayment(event)
	if err != nil {
		return nil, err
	}

	existing, err := s.paymentRepo.FindBySquarePaymentID(ctx, data.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return skippedOutcome(data.ID, "Payment %s already recorded with status %s", data.ID, existing.Status), nil
	}

	now := time.Now().UTC()
	payment := newPaymentFromEvent(data, entity.PaymentStatusFailed, now)

	booking, err := s.resolver.ResolveBooking(ctx, data.OrderID)
	if err != nil {
		return nil, err
	}
	if booking != nil {
		payment.BookingID = &booking.ID
		payment.ClientID = &booking.ClientID
	} else {
		order, err := s.resolver.ResolveProductOrder(ctx, data.OrderID)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return skippedOutcome(data.ID, "Failed payment %s (order %s) has no matching booking or order", data.ID, orderLabel(data.OrderID)), nil
		}
		payment.ProductOrderID = &order.ID
		payment.ClientID = order.ClientID
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrPaymentAlreadyExists) {
			return skippedOutcome(data.ID, "Payment %s already recorded", data.ID), nil
		}
		return nil, err
	}

	return successOutcome(data.ID, "Failed payment %s recorded", data.ID), nil
}

func (s *PaymentService) markPaid(ctx context.Context, data *provider.PaymentData, now time.Time) (*Outcome, error) {
	payment, err := s.paymentRepo.ModifyBySquarePaymentID(ctx, data.ID, func(payment *entity.Payment) error {
		payment.Status = statusForRefunds(payment)
		payment.PaidAt = &now
		if data.ReceiptURL != nil {
			payment.SquareReceiptURL = data.ReceiptURL
		}
		if data.OrderID != nil {
			payment.SquareOrderID = data.OrderID
		}
		payment.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("payment %s reported as existing but not found", data.ID)
	}
	return successOutcome(data.ID, "Payment %s updated", data.ID), nil
}

func (s *PaymentService) recordBookingPayment(ctx context.Context, booking *entity.Booking, data *provider.PaymentData, now time.Time) (*Outcome, error) {
	deposit := strings.Contains(data.Note, depositMarker)

	payment := newPaymentFromEvent(data, entity.PaymentStatusPaid, now)
	payment.BookingID = &booking.ID
	payment.ClientID = &booking.ClientID

	create := s.paymentRepo.Create
	if deposit {
		create = func(ctx context.Context, payment *entity.Payment) error {
			return s.paymentRepo.CreateWithDeposit(ctx, payment, repository.BookingDeposit{
				BookingID:     booking.ID,
				AmountInCents: data.AmountInCents,
				PaidAt:        now,
			})
		}
	}

	created, outcome, err := s.createOrReconcile(ctx, create, payment, data, now)
	if err != nil || !created {
		return outcome, err
	}

	var email *string
	var clientName string
	if client := s.findClient(ctx, booking.ClientID); client != nil {
		email = client.Email
		clientName = client.Name
	}
	s.enqueueSideEffects(ctx, payment, email, clientName, booking.AccountingInvoiceID, "booking", booking.ID)

	if deposit {
		return successOutcome(data.ID, "Payment %s recorded for booking %d (deposit)", data.ID, booking.ID), nil
	}
	return successOutcome(data.ID, "Payment %s recorded for booking %d", data.ID, booking.ID), nil
}

func (s *PaymentService) recordProductOrderPayment(ctx context.Context, order *entity.ProductOrder, data *provider.PaymentData, now time.Time) (*Outcome, error) {
	if err := s.productOrderRepo.UpdateStatus(ctx, order.ID, entity.ProductOrderStatusInProgress, now); err != nil {
		return nil, err
	}

	payment := newPaymentFromEvent(data, entity.PaymentStatusPaid, now)
	payment.ProductOrderID = &order.ID
	payment.ClientID = order.ClientID

	created, outcome, err := s.createOrReconcile(ctx, s.paymentRepo.Create, payment, data, now)
	if err != nil || !created {
		return outcome, err
	}

	email := order.CustomerEmail
	var clientName string
	if order.ClientID != nil {
		if client := s.findClient(ctx, *order.ClientID); client != nil {
			clientName = client.Name
			if trimmedValue(email) == "" {
				email = client.Email
			}
		}
	}
	s.enqueueSideEffects(ctx, payment, email, clientName, order.AccountingInvoiceID, "productOrder", order.ID)

	return successOutcome(data.ID, "Payment %s recorded for product order %d", data.ID, order.ID), nil
}

// createOrReconcile inserts the payment with create. If a concurrent delivery
// created it first, the existing row is reconciled instead and created is false.
func (s *PaymentService) createOrReconcile(
	ctx context.Context,
	create func(ctx context.Context, payment *entity.Payment) error,
	payment *entity.Payment,
	data *provider.PaymentData,
	now time.Time,
) (bool, *Outcome, error) {
	err := create(ctx, payment)
	if err == nil {
		return true, nil, nil
	}
	if !errors.Is(err, repository.ErrPaymentAlreadyExists) {
		return false, nil, err
	}

	outcome, err := s.markPaid(ctx, data, now)
	return false, outcome, err
}

func (s *PaymentService) findClient(ctx context.Context, clientID uint64) *entity.Client {
	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		s.logger.WithError(err).WithField("client_id", clientID).Warn("client lookup for receipt failed")
		return nil
	}
	return client
}

func (s *PaymentService) enqueueSideEffects(
	ctx context.Context,
	payment *entity.Payment,
	email *string,
	clientName string,
	invoiceID *string,
	ownerKey string,
	ownerID uint64,
) {
	if to := trimmedValue(email); to != "" {
		templateData := map[string]interface{}{
			"clientName":      clientName,
			"amountInCents":   payment.AmountInCents,
			"tipInCents":      payment.TipInCents,
			"method":          payment.Method,
			"squarePaymentId": payment.SquarePaymentID,
			ownerKey + "Id":   ownerID,
		}
		if payment.SquareReceiptURL != nil {
			templateData["receiptUrl"] = *payment.SquareReceiptURL
		}
		s.sideEffects.EnqueueNotification(ctx, notifier.Message{
			To:           to,
			Subject:      receiptSubject,
			TemplateData: templateData,
		})
	}

	if invoice := trimmedValue(invoiceID); invoice != "" {
		s.sideEffects.EnqueueAccountingRecord(ctx, accounting.PaymentRecord{
			InvoiceID:         invoice,
			AmountInCents:     payment.AmountInCents,
			ExternalPaymentID: payment.SquarePaymentID,
			Description:       "Square payment " + payment.SquarePaymentID + " for " + ownerKey + " " + strconv.FormatUint(ownerID, 10),
		})
	}
}

func newPaymentFromEvent(data *provider.PaymentData, status string, now time.Time) *entity.Payment {
	payment := &entity.Payment{
		AmountInCents:    data.AmountInCents,
		TipInCents:       data.TipInCents,
		Method:           paymentMethodFromTender(data.TenderType),
		Status:           status,
		SquarePaymentID:  data.ID,
		SquareOrderID:    data.OrderID,
		SquareReceiptURL: data.ReceiptURL,
		Notes:            optionalString(data.Note),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if status == entity.PaymentStatusPaid {
		payment.PaidAt = &now
	}
	return payment
}

func requirePayment(event *provider.Event) (*provider.PaymentData, error) {
	if event.Payment == nil || strings.TrimSpace(event.Payment.ID) == "" {
		return nil, fmt.Errorf("%s event has no payment id", event.Type)
	}
	return event.Payment, nil
}

func paymentMethodFromTender(tenderType string) string {
	switch tenderType {
	case "CARD":
		return entity.PaymentMethodCard
	case "CASH":
		return entity.PaymentMethodCash
	case "WALLET":
		return entity.PaymentMethodWallet
	case "SQUARE_GIFT_CARD":
		return entity.PaymentMethodGiftCard
	default:
		return entity.PaymentMethodOther
	}
}

func statusForRefunds(payment *entity.Payment) string {
	switch {
	case payment.RefundedInCents <= 0:
		return entity.PaymentStatusPaid
	case payment.RefundedInCents >= payment.AmountInCents:
		return entity.PaymentStatusRefunded
	default:
		return entity.PaymentStatusPartiallyRefunded
	}
}

func orderLabel(orderID *string) string {
	if id := trimmedValue(orderID); id != "" {
		return id
	}
	return "none"
}
