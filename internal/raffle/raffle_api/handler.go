package raffle_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-raffle/internal/httpx"
	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	"ms-raffle/internal/raffle"
)

type Handler struct {
	RaffleService *raffle.RaffleService
	Logger        *logger.Logger
}

func NewHandler(raffleService *raffle.RaffleService, log *logger.Logger) *Handler {
	return &Handler{RaffleService: raffleService, Logger: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.CreateRaffle)
	r.Get("/{raffleId}", h.GetRaffle)
	r.Get("/{raffleId}/statistics", h.GetStatistics)
	r.Patch("/{raffleId}/status", h.UpdateStatus)
	r.Patch("/{raffleId}/end-date", h.UpdateEndDate)
	r.Delete("/{raffleId}", h.DeleteRaffle)
}

type updateStatusRequest struct {
	Status models.RaffleStatus `json:"status"`
}

type updateEndDateRequest struct {
	EndDate time.Time `json:"end_date"`
}

func (h *Handler) CreateRaffle(w http.ResponseWriter, r *http.Request) {
	var input raffle.CreateRaffleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.RaffleService.CreateRaffle(r.Context(), input)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateRaffle: %v", err))
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetRaffle(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleId")

	raffleData, err := h.RaffleService.GetRaffle(r.Context(), raffleID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, raffleData)
}

func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleId")

	stats, err := h.RaffleService.GetStatistics(r.Context(), raffleID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleId")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := h.RaffleService.UpdateStatus(r.Context(), raffleID, req.Status)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateStatus: %s -> %s: %v", raffleID, req.Status, err))
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) UpdateEndDate(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleId")

	var req updateEndDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := h.RaffleService.UpdateEndDate(r.Context(), raffleID, req.EndDate)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateEndDate: %s: %v", raffleID, err))
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteRaffle(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleId")

	if err := h.RaffleService.Delete(r.Context(), raffleID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("DeleteRaffle: %s: %v", raffleID, err))
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
