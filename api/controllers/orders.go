package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tiendly/tiendly-backend/api/middleware"
	"github.com/tiendly/tiendly-backend/api/responses"
	"github.com/tiendly/tiendly-backend/api/validators"
	internalorders "github.com/tiendly/tiendly-backend/internal/orders"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	pkgerrors "github.com/tiendly/tiendly-backend/pkg/errors"
	"github.com/tiendly/tiendly-backend/pkg/logger"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

type lineItemRequest struct {
	Name        string            `json:"name" validate:"required"`
	ProductType string            `json:"product_type" validate:"required"`
	Category    string            `json:"category" validate:"required"`
	UnitPrice   decimal.Decimal   `json:"unit_price" validate:"required"`
	Qty         int               `json:"qty" validate:"required,min=1"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type paymentRequest struct {
	Method        string  `json:"method" validate:"required,oneof=bank points mixed"`
	BankReference *string `json:"bank_reference,omitempty"`
	ProofURL      *string `json:"proof_url,omitempty"`
	PointsAmount  int64   `json:"points_amount,omitempty" validate:"min=0"`
}

type createOrderRequest struct {
	GuestEmail     string            `json:"guest_email,omitempty" validate:"omitempty,email"`
	GuestFirstName string            `json:"guest_first_name,omitempty"`
	GuestLastName  string            `json:"guest_last_name,omitempty"`
	Currency       string            `json:"currency" validate:"required,oneof=MXN USD"`
	Total          decimal.Decimal   `json:"total" validate:"required"`
	TotalUSD       decimal.Decimal   `json:"total_usd" validate:"required"`
	Items          []lineItemRequest `json:"items" validate:"required,min=1,dive"`
	Payment        paymentRequest    `json:"payment" validate:"required"`
	ReceiptNumber  string            `json:"receipt_number,omitempty"`
}

// CreateOrder places a new order for the authenticated caller, or provisions a
// guest account when the request carries only an email.
func CreateOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalorders.CreateOrderInput{
			Actor:          actorFromContext(r),
			GuestEmail:     strings.TrimSpace(req.GuestEmail),
			GuestFirstName: req.GuestFirstName,
			GuestLastName:  req.GuestLastName,
			Currency:       enums.Currency(req.Currency),
			Total:          req.Total,
			TotalUSD:       req.TotalUSD,
			Payment: internalorders.PaymentInput{
				Method:        enums.PaymentMethod(req.Payment.Method),
				BankReference: req.Payment.BankReference,
				ProofURL:      req.Payment.ProofURL,
				PointsAmount:  req.Payment.PointsAmount,
			},
			ReceiptNumber: strings.TrimSpace(req.ReceiptNumber),
		}
		for _, item := range req.Items {
			input.Items = append(input.Items, internalorders.LineItemInput{
				Name:        item.Name,
				ProductType: item.ProductType,
				Category:    item.Category,
				UnitPrice:   item.UnitPrice,
				Qty:         item.Qty,
				Metadata:    item.Metadata,
			})
		}

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalorders.FromModel(order))
	}
}

// OrderDetail returns the full order graph. Non-admin callers only see their
// own orders.
func OrderDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := actorFromContext(r)
		if !actor.Admin && order.UserID != actor.UserID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}
		responses.WriteSuccess(w, internalorders.FromModel(order))
	}
}

// ListOrders pages through the caller's own orders.
func ListOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor := actorFromContext(r)
		if actor.UserID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListForUser(r.Context(), actor.UserID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type transitionRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved rejected fulfilled"`
}

// TransitionOrder applies an admin status decision to the order.
func TransitionOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req transitionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Transition(r.Context(), internalorders.TransitionInput{
			OrderID:   orderID,
			NewStatus: enums.OrderStatus(req.Status),
			Actor:     actorFromContext(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.FromModel(order))
	}
}

type assignCodesRequest struct {
	Codes []string `json:"codes" validate:"required,min=1,dive,required"`
}

// AssignRedemptionCodes attaches fulfillment codes to a line item.
func AssignRedemptionCodes(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lineItemID, err := parseUUIDParam(r, "lineItemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req assignCodesRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.AssignRedemptionCodes(r.Context(), internalorders.AssignCodesInput{
			OrderID:    orderID,
			LineItemID: lineItemID,
			Codes:      req.Codes,
			Actor:      actorFromContext(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func actorFromContext(r *http.Request) internalorders.ActorIdentity {
	actor := internalorders.ActorIdentity{
		Email: middleware.EmailFromContext(r.Context()),
		Admin: middleware.IsAdminFromContext(r.Context()),
	}
	if raw := middleware.UserIDFromContext(r.Context()); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			actor.UserID = id
		}
	}
	return actor
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
