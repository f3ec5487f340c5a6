package controllers

import (
	"net/http"

	"github.com/lucasfarre/ordercore-backend/api/responses"
	"github.com/lucasfarre/ordercore-backend/api/validators"
	"github.com/lucasfarre/ordercore-backend/internal/payments"
	"github.com/lucasfarre/ordercore-backend/pkg/logger"
)

type initiatePaymentRequest struct {
	CartIDs    []string                `json:"cart_ids" validate:"required,min=1,dive,uuid"`
	Location   checkoutLocationRequest `json:"location" validate:"required"`
	SplitOrder bool                    `json:"split_order"`
	SourceID   string                  `json:"source_id" validate:"required"`
	SaveCard   bool                    `json:"save_card"`
}

// InitiatePayment opens a gateway session; the checkout commits only
// once the gateway confirms payment.
func InitiatePayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req initiatePaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		cartIDs, err := parseCartIDs(req.CartIDs)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		location, err := req.Location.toLocation()
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		session, err := svc.InitiatePayment(ctx, payments.InitiatePaymentInput{
			UserID:     userID,
			CartIDs:    cartIDs,
			Location:   location,
			SplitOrder: req.SplitOrder,
			SourceID:   req.SourceID,
			SaveCard:   req.SaveCard,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}
