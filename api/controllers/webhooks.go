package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/lucasfarre/ordercore-backend/api/responses"
	"github.com/lucasfarre/ordercore-backend/internal/payments"
	pkgerrors "github.com/lucasfarre/ordercore-backend/pkg/errors"
	"github.com/lucasfarre/ordercore-backend/pkg/logger"
	"github.com/lucasfarre/ordercore-backend/pkg/square"
)

// squarePaymentEvent is the slice of Square's payment.updated webhook
// body this endpoint reads.
type squarePaymentEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Data    struct {
		ID     string `json:"id"`
		Object struct {
			Payment struct {
				ID          string `json:"id"`
				Status      string `json:"status"`
				ReferenceID string `json:"reference_id"`
				AmountMoney struct {
					Amount int64 `json:"amount"`
				} `json:"amount_money"`
			} `json:"payment"`
		} `json:"object"`
	} `json:"data"`
}

// gatewayStatus normalizes Square payment states onto the settlement
// workflow's success/failed vocabulary. Unknown states pass through and
// settle the transaction as an unknown gateway error.
func gatewayStatus(squareStatus string) string {
	switch strings.ToUpper(strings.TrimSpace(squareStatus)) {
	case "COMPLETED", "APPROVED":
		return "success"
	case "FAILED", "CANCELED":
		return "failed"
	default:
		return strings.ToLower(strings.TrimSpace(squareStatus))
	}
}

// notificationURL rebuilds the externally visible URL Square signed.
func notificationURL(r *http.Request) string {
	scheme := "https"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.Path
}

// SquareWebhook receives payment gateway notifications. Signature
// verification and idempotent settlement happen in the payments
// service; this handler only decodes the wire shape.
func SquareWebhook(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		var event squarePaymentEvent
		if err := json.Unmarshal(body, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook event"))
			return
		}

		notificationID := strings.TrimSpace(event.EventID)
		if notificationID == "" {
			notificationID = strings.TrimSpace(event.Data.ID)
		}

		payment := event.Data.Object.Payment
		result, err := svc.ProcessCallback(ctx, payments.Callback{
			NotificationID:   notificationID,
			PaymentReference: strings.TrimSpace(payment.ReferenceID),
			GatewayStatus:    gatewayStatus(payment.Status),
			AmountCents:      payment.AmountMoney.Amount,
			Signature:        r.Header.Get(square.SignatureHeader),
			NotificationURL:  notificationURL(r),
			RawBody:          body,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if result.Outcome == payments.OutcomeSignatureInvalid {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}
		responses.WriteSuccess(w, result)
	}
}
