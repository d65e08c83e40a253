package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Noobiez16/SubliGraphic/internal/payment"
	"github.com/Noobiez16/SubliGraphic/internal/service"
	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"
	"github.com/Noobiez16/SubliGraphic/pkg/httputil"
	"github.com/Noobiez16/SubliGraphic/pkg/middleware"
	"github.com/Noobiez16/SubliGraphic/pkg/validator"
)

func init() {
	err := validator.RegisterValidation("payment_method", func(v string) bool {
		_, ok := payment.KindOf(payment.Method(v))
		return ok
	})
	if err != nil {
		panic(err)
	}
}

// StorefrontHandler handles HTTP requests for cart and checkout endpoints.
type StorefrontHandler struct {
	service        *service.StorefrontService
	logger         *slog.Logger
	maxDesignBytes int
}

// NewStorefrontHandler creates a new storefront HTTP handler.
func NewStorefrontHandler(svc *service.StorefrontService, logger *slog.Logger, maxDesignBytes int) *StorefrontHandler {
	return &StorefrontHandler{
		service:        svc,
		logger:         logger,
		maxDesignBytes: maxDesignBytes,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding a catalog product.
type AddItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

// AddCustomItemRequest is the JSON request body for adding a custom design.
type AddCustomItemRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Design    string `json:"design" validate:"required,datauri"`
}

// UpdateQuantityRequest is the JSON request body for updating an item's quantity.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

// PayRequest is the JSON request body for selecting a payment method.
type PayRequest struct {
	Method string `json:"method" validate:"required,payment_method"`
}

func (h *StorefrontHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, err, h.logger)
}

// --- Catalog ---

// ListProducts handles GET /api/v1/catalog
func (h *StorefrontHandler) ListProducts(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.service.Products()})
}

// ListPaymentMethods handles GET /api/v1/payment-methods
func (h *StorefrontHandler) ListPaymentMethods(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.service.Methods()})
}

// --- Cart ---

// GetCart handles GET /api/v1/cart
func (h *StorefrontHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.GetCart(r.Context(), middleware.ShopperIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// AddItem handles POST /api/v1/cart/items
func (h *StorefrontHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	cart, err := h.service.AddStandard(r.Context(), middleware.ShopperIDFromContext(r.Context()), req.ProductID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// AddCustomItem handles POST /api/v1/cart/items/custom
func (h *StorefrontHandler) AddCustomItem(w http.ResponseWriter, r *http.Request) {
	var req AddCustomItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	if err := validateDesign(req.Design, h.maxDesignBytes); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "request validation failed",
				Fields:  map[string]string{"design": err.Error()},
			},
		})
		return
	}

	cart, err := h.service.AddCustom(r.Context(), middleware.ShopperIDFromContext(r.Context()), req.ProductID, req.Design)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// UpdateItemQuantity handles PUT /api/v1/cart/items/{identity}
func (h *StorefrontHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	cart, err := h.service.SetQuantity(r.Context(), middleware.ShopperIDFromContext(r.Context()), chi.URLParam(r, "identity"), *req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// RemoveItem handles DELETE /api/v1/cart/items/{identity}
func (h *StorefrontHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.RemoveItem(r.Context(), middleware.ShopperIDFromContext(r.Context()), chi.URLParam(r, "identity"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// ClearCart handles DELETE /api/v1/cart
func (h *StorefrontHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.ClearCart(r.Context(), middleware.ShopperIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// --- Checkout ---

// BeginCheckout handles POST /api/v1/checkout
func (h *StorefrontHandler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.BeginCheckout(r.Context(), middleware.ShopperIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: view})
}

// GetCheckout handles GET /api/v1/checkout
func (h *StorefrontHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetCheckout(r.Context(), middleware.ShopperIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: view})
}

// Pay handles POST /api/v1/checkout/payment
func (h *StorefrontHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var req PayRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	view, err := h.service.Pay(r.Context(), middleware.ShopperIDFromContext(r.Context()), payment.Method(req.Method))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: view})
}

// ConfirmPayment handles POST /api/v1/checkout/payment/confirm
func (h *StorefrontHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ConfirmManual(r.Context(), middleware.ShopperIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: view})
}

// RetryCheckout handles POST /api/v1/checkout/retry
func (h *StorefrontHandler) RetryCheckout(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.RetryCheckout(r.Context(), middleware.ShopperIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: view})
}

// ExitCheckout handles DELETE /api/v1/checkout
func (h *StorefrontHandler) ExitCheckout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ExitCheckout(r.Context(), middleware.ShopperIDFromContext(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NotFound handles unknown routes with the standard envelope.
func (h *StorefrontHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, apperrors.NotFound("route", r.URL.Path))
}
