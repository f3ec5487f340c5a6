package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/lucasfarre/ordercore-backend/api/middleware"
	"github.com/lucasfarre/ordercore-backend/api/responses"
	"github.com/lucasfarre/ordercore-backend/api/validators"
	"github.com/lucasfarre/ordercore-backend/internal/checkout"
	"github.com/lucasfarre/ordercore-backend/pkg/enums"
	pkgerrors "github.com/lucasfarre/ordercore-backend/pkg/errors"
	"github.com/lucasfarre/ordercore-backend/pkg/logger"
)

type checkoutLocationRequest struct {
	Mode         string  `json:"fulfillment_mode" validate:"required,oneof=pickup delivery"`
	AddressID    *string `json:"address_id,omitempty" validate:"omitempty,uuid"`
	StoreID      *string `json:"store_id,omitempty" validate:"omitempty,uuid"`
	ServiceLevel string  `json:"service_level,omitempty" validate:"omitempty,oneof=standard premium priority"`
}

type checkoutPreviewRequest struct {
	CartIDs  []string                `json:"cart_ids" validate:"required,min=1,dive,uuid"`
	Location checkoutLocationRequest `json:"location" validate:"required"`
}

type checkoutCreateRequest struct {
	CartIDs    []string                `json:"cart_ids" validate:"required,min=1,dive,uuid"`
	Location   checkoutLocationRequest `json:"location" validate:"required"`
	SplitOrder bool                    `json:"split_order"`
}

func (r checkoutLocationRequest) toLocation() (checkout.Location, error) {
	location := checkout.Location{
		Mode:         enums.FulfillmentMode(r.Mode),
		ServiceLevel: enums.ServiceLevel(r.ServiceLevel),
	}
	if r.AddressID != nil {
		id, err := uuid.Parse(*r.AddressID)
		if err != nil {
			return checkout.Location{}, pkgerrors.New(pkgerrors.CodeValidation, "address_id must be a uuid")
		}
		location.AddressID = &id
	}
	if r.StoreID != nil {
		id, err := uuid.Parse(*r.StoreID)
		if err != nil {
			return checkout.Location{}, pkgerrors.New(pkgerrors.CodeValidation, "store_id must be a uuid")
		}
		location.StoreID = &id
	}
	return location, nil
}

func parseCartIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, value := range raw {
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart_ids must be uuids")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func callerID(r *http.Request) (uuid.UUID, error) {
	userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return userID, nil
}

// CheckoutPreview quotes a checkout without mutating anything.
func CheckoutPreview(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req checkoutPreviewRequest
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

		preview, err := svc.Preview(ctx, checkout.PreviewInput{
			UserID:   userID,
			CartIDs:  cartIDs,
			Location: location,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, preview)
	}
}

// CheckoutCreateOrder commits a checkout into one order per store.
func CheckoutCreateOrder(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req checkoutCreateRequest
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

		result, err := svc.CreateOrder(ctx, checkout.CreateOrderInput{
			UserID:     userID,
			CartIDs:    cartIDs,
			Location:   location,
			SplitOrder: req.SplitOrder,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
