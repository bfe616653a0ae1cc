package gateway

import (
	"encoding/json"
	"net/http"
)

// statusResponse is the common success/failure envelope. Status is the
// authoritative success indicator; HTTP codes exist for proxies and logs.
type statusResponse struct {
	Status   bool   `json:"status"`
	ClientID string `json:"clientId,omitempty"`
	Message  any    `json:"message,omitempty"`
	Response any    `json:"response,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeFieldErrors reports missing or invalid request fields as a
// field-to-message map under the standard envelope.
func writeFieldErrors(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusUnprocessableEntity, statusResponse{
		Status:  false,
		Message: fields,
	})
}

func writeFailure(w http.ResponseWriter, code int, message any) {
	writeJSON(w, code, statusResponse{Status: false, Message: message})
}
