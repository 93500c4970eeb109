package httpx

import (
	"encoding/json"
	"net/http"

	"ms-raffle/internal/apperrors"
)

type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps an application error to its stable status/code pair.
func WriteError(w http.ResponseWriter, err error) {
	appErr := apperrors.FromError(err)
	WriteJSON(w, appErr.HTTPStatus(), errorBody{
		Error:   appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	})
}
