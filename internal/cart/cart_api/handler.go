package cart_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-raffle/internal/auth"
	"ms-raffle/internal/cart"
	"ms-raffle/internal/httpx"
	"ms-raffle/internal/logger"
)

type Handler struct {
	CartService *cart.CartService
	Logger      *logger.Logger
}

func NewHandler(cartService *cart.CartService, log *logger.Logger) *Handler {
	return &Handler{CartService: cartService, Logger: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.CreateCart)
	r.Get("/active", h.GetActiveCart)
	r.Get("/{cartId}", h.GetCart)
	r.Post("/{cartId}/reserve", h.Reserve)
	r.Post("/{cartId}/release", h.Release)
}

type reservationRequest struct {
	TicketIDs     []string `json:"ticket_ids"`
	AssociationID string   `json:"association_id"`
}

func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
		return
	}

	newCart, err := h.CartService.CreateCart(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateCart: %v", err))
		httpx.WriteError(w, err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateCart: cart %s for user %s", newCart.CartID, userID))
	httpx.WriteJSON(w, http.StatusCreated, newCart)
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartId")

	cartData, err := h.CartService.GetCart(r.Context(), cartID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cartData)
}

func (h *Handler) GetActiveCart(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
		return
	}

	cartData, err := h.CartService.GetActiveCart(r.Context(), userID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cartData)
}

func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartId")

	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
		return
	}

	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.TicketIDs) == 0 {
		http.Error(w, "ticket_ids cannot be empty", http.StatusBadRequest)
		return
	}

	if err := h.CartService.Reserve(r.Context(), userID, cartID, req.TicketIDs, req.AssociationID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Reserve: cart %s: %v", cartID, err))
		httpx.WriteError(w, err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("Reserve: %d tickets on cart %s", len(req.TicketIDs), cartID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartId")

	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
		return
	}

	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.CartService.Release(r.Context(), userID, cartID, req.TicketIDs, req.AssociationID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Release: cart %s: %v", cartID, err))
		httpx.WriteError(w, err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("Release: %d tickets off cart %s", len(req.TicketIDs), cartID))
	w.WriteHeader(http.StatusNoContent)
}
