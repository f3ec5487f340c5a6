package controllers

import (
	"net/http"

	"github.com/lucasfarre/ordercore-backend/api/middleware"
	"github.com/lucasfarre/ordercore-backend/api/responses"
	"github.com/lucasfarre/ordercore-backend/api/validators"
	"github.com/lucasfarre/ordercore-backend/internal/erpsync"
	"github.com/lucasfarre/ordercore-backend/internal/orders"
	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/enums"
	pkgerrors "github.com/lucasfarre/ordercore-backend/pkg/errors"
	"github.com/lucasfarre/ordercore-backend/pkg/logger"
	"github.com/lucasfarre/ordercore-backend/pkg/pagination"
)

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type orderListResponse struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func callerActor(r *http.Request) (orders.Actor, error) {
	userID, err := callerID(r)
	if err != nil {
		return orders.Actor{}, err
	}
	role, err := enums.ParseActorRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return orders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid actor role")
	}
	return orders.Actor{UserID: userID, Role: role}, nil
}

// ListOrders pages through the caller's orders, newest first.
func ListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actor, err := callerActor(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		list, nextCursor, err := svc.ListUserOrders(ctx, actor.UserID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderListResponse{Orders: list, NextCursor: nextCursor})
	}
}

func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actor, err := callerActor(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		orderID, err := validators.PathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := svc.GetOrder(ctx, orderID, actor)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// UpdateOrderStatus drives the order state machine. Role rules live in
// the service; customers can only cancel their own orders.
func UpdateOrderStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actor, err := callerActor(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		orderID, err := validators.PathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req updateStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		next, err := enums.ParseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status"))
			return
		}

		order, err := svc.UpdateStatus(ctx, orderID, next, actor)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// RetryOrderErpSync re-runs the ERP sync for one order. Operator only.
func RetryOrderErpSync(svc erpsync.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actor, err := callerActor(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if actor.Role != enums.RoleOperator {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "operator role required"))
			return
		}

		orderID, err := validators.PathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.Sync(ctx, orderID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "synced"})
	}
}
