// Package payments implements the settlement workflow around gateway
// callbacks. Every callback is idempotent per notification id; orders
// for deferred checkouts are created only once payment is confirmed.
package payments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/internal/checkout"
	"github.com/lucasfarre/ordercore-backend/internal/orders"
	"github.com/lucasfarre/ordercore-backend/pkg/config"
	"github.com/lucasfarre/ordercore-backend/pkg/db"
	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/enums"
	"github.com/lucasfarre/ordercore-backend/pkg/errors"
	"github.com/lucasfarre/ordercore-backend/pkg/logger"
	"github.com/lucasfarre/ordercore-backend/pkg/outbox"
	"github.com/lucasfarre/ordercore-backend/pkg/outbox/payloads"
	"github.com/lucasfarre/ordercore-backend/pkg/redis"
	"github.com/lucasfarre/ordercore-backend/pkg/square"
)

// paymentSessionTTL bounds how long an initiated transaction may settle.
const paymentSessionTTL = 30 * time.Minute

// Callback outcomes surfaced to the gateway controller.
const (
	OutcomeSettled          = "settled"
	OutcomePaymentFailed    = "payment_failed"
	OutcomeSignatureInvalid = "signature_invalid"
	OutcomeAmountMismatch   = "amount_mismatch"
	OutcomeUnknownGateway   = "unknown_gateway_error"
)

// InitiatePaymentInput opens a gateway session for a deferred checkout.
type InitiatePaymentInput struct {
	UserID     uuid.UUID
	CartIDs    []uuid.UUID
	Location   checkout.Location
	SplitOrder bool
	// SourceID is the tokenized payment source produced by the client SDK.
	SourceID string
	SaveCard bool
}

// PaymentSession is the response to an initiated payment.
type PaymentSession struct {
	PaymentReference string              `json:"payment_reference"`
	GatewayPaymentID string              `json:"gateway_payment_id,omitempty"`
	AmountCents      int64               `json:"amount_cents"`
	Status           enums.PaymentStatus `json:"status"`
	ExpiresAt        time.Time           `json:"expires_at"`
	Preview          *checkout.Preview   `json:"preview"`
}

// Callback is one gateway notification after transport decoding.
type Callback struct {
	NotificationID   string
	PaymentReference string
	// GatewayStatus is the gateway-reported payment outcome.
	GatewayStatus   string
	AmountCents     int64
	Signature       string
	NotificationURL string
	RawBody         []byte
	Reason          string
}

// CallbackResult is stored on the notification ledger and returned
// verbatim on replay.
type CallbackResult struct {
	NotificationID   string      `json:"notification_id"`
	PaymentReference string      `json:"payment_reference"`
	Outcome          string      `json:"outcome"`
	OrderIDs         []uuid.UUID `json:"order_ids,omitempty"`
	Replayed         bool        `json:"replayed,omitempty"`
}

// Service is the settlement workflow.
type Service interface {
	InitiatePayment(ctx context.Context, input InitiatePaymentInput) (*PaymentSession, error)
	// ProcessCallback settles a gateway notification. Signature failures
	// and gateway-reported payment failures return a structured result,
	// not an error; errors are reserved for unexpected internal failures
	// and leave the notification unprocessed so a replay can retry.
	ProcessCallback(ctx context.Context, callback Callback) (*CallbackResult, error)
}

// paymentGateway is the slice of the Square client this workflow uses.
type paymentGateway interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	VerifyWebhookSignature(signature, notificationURL string, body []byte) bool
	LocationID() string
}

// resultCache is the redis surface used for the replay fast path.
type resultCache interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// erpDispatcher hands confirmed orders to the sync worker.
type erpDispatcher interface {
	Enqueue(orderID uuid.UUID) bool
}

type service struct {
	db       *db.Client
	repo     Repository
	orders   orders.Service
	orderRep orders.Repository
	checkout checkout.Service
	gateway  paymentGateway
	cache    resultCache
	erp      erpDispatcher
	emitter  outbox.Emitter
	logger   *logger.Logger

	idempotencyTTL time.Duration
}

// NewService wires the settlement workflow.
func NewService(
	client *db.Client,
	repo Repository,
	orderSvc orders.Service,
	orderRepo orders.Repository,
	checkoutSvc checkout.Service,
	gateway paymentGateway,
	cache resultCache,
	erp erpDispatcher,
	emitter outbox.Emitter,
	cfg config.EventingConfig,
	logg *logger.Logger,
) (Service, error) {
	switch {
	case client == nil:
		return nil, errors.New(errors.CodeInternal, "payments: db client is required")
	case repo == nil:
		return nil, errors.New(errors.CodeInternal, "payments: repository is required")
	case orderSvc == nil:
		return nil, errors.New(errors.CodeInternal, "payments: order service is required")
	case orderRepo == nil:
		return nil, errors.New(errors.CodeInternal, "payments: order repository is required")
	case checkoutSvc == nil:
		return nil, errors.New(errors.CodeInternal, "payments: checkout service is required")
	case gateway == nil:
		return nil, errors.New(errors.CodeInternal, "payments: payment gateway is required")
	case erp == nil:
		return nil, errors.New(errors.CodeInternal, "payments: erp dispatcher is required")
	case emitter == nil:
		return nil, errors.New(errors.CodeInternal, "payments: outbox emitter is required")
	case logg == nil:
		return nil, errors.New(errors.CodeInternal, "payments: logger is required")
	}

	ttl := cfg.WebhookIdempotencyTTL
	if ttl <= 0 {
		ttl = 720 * time.Hour
	}

	return &service{
		db:             client,
		repo:           repo,
		orders:         orderSvc,
		orderRep:       orderRepo,
		checkout:       checkoutSvc,
		gateway:        gateway,
		cache:          cache,
		erp:            erp,
		emitter:        emitter,
		logger:         logg,
		idempotencyTTL: ttl,
	}, nil
}

func (s *service) InitiatePayment(ctx context.Context, input InitiatePaymentInput) (*PaymentSession, error) {
	ctx = s.logger.WithUserID(ctx, input.UserID.String())

	preview, err := s.checkout.Preview(ctx, checkout.PreviewInput{
		UserID:   input.UserID,
		CartIDs:  input.CartIDs,
		Location: input.Location,
	})
	if err != nil {
		return nil, err
	}
	if len(preview.UnavailableItems) > 0 {
		return nil, errors.New(errors.CodeValidation, "some items are not available at any store").
			WithDetails(preview.UnavailableItems)
	}
	if preview.TotalCents <= 0 {
		return nil, errors.New(errors.CodeValidation, "checkout total must be positive")
	}

	paymentReference := uuid.NewString()
	deferred, err := json.Marshal(checkout.CreateOrderInput{
		UserID:           input.UserID,
		CartIDs:          input.CartIDs,
		Location:         input.Location,
		SplitOrder:       input.SplitOrder,
		PaymentReference: paymentReference,
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "payments: marshal deferred checkout")
	}

	cartIDs := make([]string, 0, len(input.CartIDs))
	for _, id := range input.CartIDs {
		cartIDs = append(cartIDs, id.String())
	}

	expiresAt := time.Now().UTC().Add(paymentSessionTTL)
	transaction := &models.PaymentTransaction{
		ID:               uuid.New(),
		PaymentReference: paymentReference,
		CartIDs:          cartIDs,
		AmountCents:      int(preview.TotalCents),
		Status:           enums.PaymentStatusInitiated,
		SaveCard:         input.SaveCard,
		DeferredCheckout: deferred,
		ExpiresAt:        expiresAt,
	}
	if err := s.repo.CreateTransaction(ctx, transaction); err != nil {
		return nil, err
	}

	ctx = s.logger.WithPaymentReference(ctx, paymentReference)

	payment, err := s.gateway.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    preview.TotalCents,
		LocationID:     s.gateway.LocationID(),
		SourceID:       input.SourceID,
		IdempotencyKey: paymentReference,
		ReferenceID:    paymentReference,
	})
	if err != nil {
		// The session never opened; close the transaction so a stray
		// callback cannot settle it later.
		if settleErr := s.repo.SettleTransaction(ctx, paymentReference, enums.PaymentStatusFailed, time.Now().UTC()); settleErr != nil {
			s.logger.Error(ctx, "failed to close transaction after gateway error", settleErr)
		}
		return nil, err
	}

	s.logger.Info(ctx, "payment session initiated")

	session := &PaymentSession{
		PaymentReference: paymentReference,
		AmountCents:      preview.TotalCents,
		Status:           enums.PaymentStatusInitiated,
		ExpiresAt:        expiresAt,
		Preview:          preview,
	}
	if payment != nil {
		session.GatewayPaymentID = stringValue(payment.GetID())
	}
	return session, nil
}

func (s *service) ProcessCallback(ctx context.Context, callback Callback) (*CallbackResult, error) {
	if callback.NotificationID == "" {
		return nil, errors.New(errors.CodeValidation, "notification id is required")
	}
	if callback.PaymentReference == "" {
		return nil, errors.New(errors.CodeValidation, "payment reference is required")
	}

	ctx = s.logger.WithPaymentReference(ctx, callback.PaymentReference)

	if cached := s.cachedResult(ctx, callback.NotificationID); cached != nil {
		return cached, nil
	}

	notification, replay, err := s.loadOrCreateNotification(ctx, callback)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		return replay, nil
	}

	if !s.gateway.VerifyWebhookSignature(callback.Signature, callback.NotificationURL, callback.RawBody) {
		result := &CallbackResult{
			NotificationID:   callback.NotificationID,
			PaymentReference: callback.PaymentReference,
			Outcome:          OutcomeSignatureInvalid,
		}
		raw, _ := json.Marshal(result)
		if err := s.repo.MarkNotificationFailed(ctx, notification.NotificationID, raw); err != nil {
			return nil, err
		}
		s.logger.Warn(ctx, "webhook signature verification failed")
		return result, nil
	}

	transaction, err := s.repo.FindTransactionByReference(ctx, callback.PaymentReference)
	if err != nil {
		return nil, err
	}
	if transaction.Status.IsTerminal() {
		return nil, errors.New(errors.CodeConflict, "payment transaction already settled")
	}

	if callback.AmountCents > 0 && callback.AmountCents != int64(transaction.AmountCents) {
		result := &CallbackResult{
			NotificationID:   callback.NotificationID,
			PaymentReference: callback.PaymentReference,
			Outcome:          OutcomeAmountMismatch,
		}
		raw, _ := json.Marshal(result)
		if err := s.repo.MarkNotificationFailed(ctx, notification.NotificationID, raw); err != nil {
			return nil, err
		}
		s.logger.Warn(ctx, "gateway amount does not match transaction amount")
		return result, nil
	}

	result, err := s.settle(ctx, callback, transaction)
	if err != nil {
		// The notification stays unprocessed so the gateway retry can
		// run the settlement again.
		return nil, err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "payments: marshal callback result")
	}
	if err := s.repo.MarkNotificationProcessed(ctx, callback.NotificationID, raw, time.Now().UTC()); err != nil {
		return nil, err
	}
	s.cacheResult(ctx, callback.NotificationID, raw)

	s.logger.Info(ctx, "webhook processed")
	return result, nil
}

func (s *service) settle(ctx context.Context, callback Callback, transaction *models.PaymentTransaction) (*CallbackResult, error) {
	switch callback.GatewayStatus {
	case "success":
		return s.settleSuccess(ctx, callback, transaction)
	case "failed":
		return s.settleFailure(ctx, callback, transaction)
	default:
		if err := s.settleTerminal(ctx, callback, enums.PaymentStatusUnknownGatewayError, nil); err != nil {
			return nil, err
		}
		s.logger.Warn(ctx, "gateway reported unknown payment status")
		return &CallbackResult{
			NotificationID:   callback.NotificationID,
			PaymentReference: callback.PaymentReference,
			Outcome:          OutcomeUnknownGateway,
		}, nil
	}
}

func (s *service) settleSuccess(ctx context.Context, callback Callback, transaction *models.PaymentTransaction) (*CallbackResult, error) {
	// A prior attempt may have executed the deferred checkout and failed
	// on a later step; its orders already carry the payment reference.
	// The replay must reuse them, not re-run checkout against carts that
	// are no longer active.
	existing, err := s.orderRep.ListByPaymentReference(ctx, callback.PaymentReference)
	if err != nil {
		return nil, err
	}

	var orderIDs []uuid.UUID
	for _, order := range existing {
		orderIDs = append(orderIDs, order.ID)
	}

	if len(orderIDs) == 0 && len(transaction.DeferredCheckout) > 0 {
		var input checkout.CreateOrderInput
		if err := json.Unmarshal(transaction.DeferredCheckout, &input); err != nil {
			return nil, errors.Wrap(errors.CodeInternal, err, "payments: decode deferred checkout")
		}
		input.PaymentReference = callback.PaymentReference

		created, err := s.checkout.CreateOrder(ctx, input)
		if err != nil {
			return nil, err
		}
		for _, order := range created.Orders {
			orderIDs = append(orderIDs, order.ID)
		}
	}

	actor := orders.Actor{Role: enums.RoleOperator}
	for _, orderID := range orderIDs {
		if _, err := s.orders.UpdateStatus(ctx, orderID, enums.OrderStatusConfirmed, actor); err != nil {
			return nil, err
		}
	}

	settledAt := time.Now().UTC()
	if err := s.settleTerminal(ctx, callback, enums.PaymentStatusSuccess, func(tx *gorm.DB) error {
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentSettled,
			AggregateType: enums.AggregatePaymentTransaction,
			AggregateID:   transaction.ID,
			Payload: payloads.PaymentSettledEvent{
				PaymentReference: callback.PaymentReference,
				NotificationID:   callback.NotificationID,
				AmountCents:      int64(transaction.AmountCents),
				OrderIDs:         orderIDs,
				SettledAt:        settledAt,
			},
		})
	}); err != nil {
		return nil, err
	}

	for _, orderID := range orderIDs {
		s.erp.Enqueue(orderID)
	}

	return &CallbackResult{
		NotificationID:   callback.NotificationID,
		PaymentReference: callback.PaymentReference,
		Outcome:          OutcomeSettled,
		OrderIDs:         orderIDs,
	}, nil
}

func (s *service) settleFailure(ctx context.Context, callback Callback, transaction *models.PaymentTransaction) (*CallbackResult, error) {
	existing, err := s.orderRep.ListByPaymentReference(ctx, callback.PaymentReference)
	if err != nil {
		return nil, err
	}

	actor := orders.Actor{Role: enums.RoleOperator}
	var cancelled []uuid.UUID
	for _, order := range existing {
		if order.Status != enums.OrderStatusPending {
			continue
		}
		if _, err := s.orders.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled, actor); err != nil {
			return nil, err
		}
		cancelled = append(cancelled, order.ID)
	}

	if err := s.settleTerminal(ctx, callback, enums.PaymentStatusFailed, func(tx *gorm.DB) error {
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePaymentTransaction,
			AggregateID:   transaction.ID,
			Payload: payloads.PaymentFailedEvent{
				PaymentReference: callback.PaymentReference,
				NotificationID:   callback.NotificationID,
				Reason:           callback.Reason,
			},
		})
	}); err != nil {
		return nil, err
	}

	return &CallbackResult{
		NotificationID:   callback.NotificationID,
		PaymentReference: callback.PaymentReference,
		Outcome:          OutcomePaymentFailed,
		OrderIDs:         cancelled,
	}, nil
}

// settleTerminal writes the single terminal payment status, running the
// optional emit hook inside the same transaction.
func (s *service) settleTerminal(ctx context.Context, callback Callback, status enums.PaymentStatus, emit func(tx *gorm.DB) error) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).SettleTransaction(ctx, callback.PaymentReference, status, time.Now().UTC()); err != nil {
			return err
		}
		if emit != nil {
			return emit(tx)
		}
		return nil
	})
}

func (s *service) loadOrCreateNotification(ctx context.Context, callback Callback) (*models.WebhookNotification, *CallbackResult, error) {
	notification, err := s.repo.FindNotification(ctx, callback.NotificationID)
	if err == nil {
		if notification.Status == enums.WebhookStatusProcessed {
			var result CallbackResult
			if len(notification.Result) > 0 {
				if err := json.Unmarshal(notification.Result, &result); err != nil {
					return nil, nil, errors.Wrap(errors.CodeInternal, err, "payments: decode stored result")
				}
			}
			result.Replayed = true
			return nil, &result, nil
		}
		if err := s.repo.IncrementNotificationAttempt(ctx, callback.NotificationID); err != nil {
			return nil, nil, err
		}
		return notification, nil, nil
	}
	if !errors.IsCode(err, errors.CodeNotFound) {
		return nil, nil, err
	}

	notification = &models.WebhookNotification{
		ID:               uuid.New(),
		NotificationID:   callback.NotificationID,
		PaymentReference: callback.PaymentReference,
		AttemptNumber:    1,
		Status:           enums.WebhookStatusReceived,
	}
	if err := s.repo.CreateNotification(ctx, notification); err != nil {
		if db.IsUniqueViolation(err, "ux_webhook_notifications_notification_id") {
			// Concurrent delivery of the same notification; reload and let
			// the replay path decide.
			return s.loadOrCreateNotification(ctx, callback)
		}
		return nil, nil, err
	}
	return notification, nil, nil
}

func (s *service) cachedResult(ctx context.Context, notificationID string) *CallbackResult {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, s.cache.IdempotencyKey("webhook", notificationID))
	if err != nil {
		if !redis.IsNil(err) {
			s.logger.Warn(ctx, "webhook idempotency cache read failed")
		}
		return nil
	}
	var result CallbackResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil
	}
	result.Replayed = true
	return &result
}

func (s *service) cacheResult(ctx context.Context, notificationID string, raw json.RawMessage) {
	if s.cache == nil {
		return
	}
	key := s.cache.IdempotencyKey("webhook", notificationID)
	if _, err := s.cache.SetNX(ctx, key, string(raw), s.idempotencyTTL); err != nil {
		s.logger.Warn(ctx, "webhook idempotency cache write failed")
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
