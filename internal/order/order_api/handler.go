package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-raffle/internal/auth"
	"ms-raffle/internal/httpx"
	"ms-raffle/internal/logger"
	"ms-raffle/internal/order"
)

type Handler struct {
	OrderService *order.OrderService
	Logger       *logger.Logger
}

func NewHandler(orderService *order.OrderService, log *logger.Logger) *Handler {
	return &Handler{OrderService: orderService, Logger: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.CreateOrder)
	r.Get("/{orderId}", h.GetOrder)
	r.Post("/{orderId}/complete", h.CompleteOrder)
	r.Post("/{orderId}/cancel", h.CancelOrder)
	r.Post("/{orderId}/refund", h.RefundOrder)
	r.Post("/{orderId}/unpaid", h.SetOrderUnpaid)
	r.Put("/{orderId}/comment", h.AddComment)
	r.Delete("/{orderId}/comment", h.DeleteComment)
}

type createOrderRequest struct {
	CartID        string              `json:"cart_id"`
	RaffleID      string              `json:"raffle_id"`
	TicketIDs     []string            `json:"ticket_ids"`
	AssociationID string              `json:"association_id"`
	Customer      order.CustomerInput `json:"customer"`
	Comment       string              `json:"comment,omitempty"`
}

type completeOrderRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type commentRequest struct {
	Comment string `json:"comment"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.OrderService.Create(r.Context(), userID, order.CreateOrderInput{
		CartID:        req.CartID,
		RaffleID:      req.RaffleID,
		TicketIDs:     req.TicketIDs,
		AssociationID: req.AssociationID,
		Customer:      req.Customer,
		Comment:       req.Comment,
	})
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: cart %s: %v", req.CartID, err))
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	orderData, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderData)
}

func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req completeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	completed, err := h.OrderService.Complete(r.Context(), orderID, req.PaymentMethod)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CompleteOrder: %s: %v", orderID, err))
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, completed)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	cancelled, err := h.OrderService.Cancel(r.Context(), orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CancelOrder: %s: %v", orderID, err))
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cancelled)
}

func (h *Handler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	refunded, err := h.OrderService.Refund(r.Context(), orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("RefundOrder: %s: %v", orderID, err))
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, refunded)
}

func (h *Handler) SetOrderUnpaid(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	unpaid, err := h.OrderService.SetUnpaid(r.Context(), orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("SetOrderUnpaid: %s: %v", orderID, err))
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, unpaid)
}

func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := h.OrderService.AddComment(r.Context(), orderID, req.Comment)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	updated, err := h.OrderService.DeleteComment(r.Context(), orderID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}
